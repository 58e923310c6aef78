// Package storage defines the Storage interface — the contract any database
// backend of the students service must satisfy.
//
// Handlers depend only on this interface, never on a concrete database, so
// tests and alternative backends plug in without handler changes.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/students-sync/internal/types"
)

// ErrNotFound is returned (possibly wrapped) when no student has the
// requested id. Handlers translate it into 404 Not Found.
var ErrNotFound = errors.New("student not found")

// Storage is the database contract.
type Storage interface {
	// CreateStudent inserts a new student and returns the stored record,
	// including its generated id.
	CreateStudent(ctx context.Context, name, email string, age int) (types.Student, error)

	// GetStudentByID fetches a single student by primary key.
	GetStudentByID(ctx context.Context, id int64) (types.Student, error)

	// GetStudents returns every student in insertion order.
	// Returns an empty slice (not nil) if there are none.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// UpdateStudentByID replaces name, email and age of an existing student
	// and returns the stored record.
	UpdateStudentByID(ctx context.Context, id int64, student types.Student) (types.Student, error)

	// DeleteStudentByID removes a student permanently.
	DeleteStudentByID(ctx context.Context, id int64) error
}
