// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface on top of database/sql.
//
// Queries are assembled with squirrel so column lists live in one place and
// every value travels as a placeholder argument, never as SQL text.
//
// The blank import registers the "sqlite3" driver with database/sql; nothing
// from the driver package is called directly.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/students-sync/internal/storage"
	"github.com/aanand-mishra/students-sync/internal/types"
)

const table = "students"

var columns = []string{"id", "name", "email", "age"}

// SQLite is the concrete implementation of storage.Storage.
// *sql.DB is a connection pool and is safe for concurrent use.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the database at path and creates the students table if it does
// not exist yet. CREATE TABLE IF NOT EXISTS is idempotent, so this is safe on
// every startup.
func New(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite.New: create dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT    NOT NULL,
			email TEXT    NOT NULL,
			age   INTEGER NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// CreateStudent inserts a row and reads it back so the caller gets exactly
// what was stored.
func (s *SQLite) CreateStudent(ctx context.Context, name, email string, age int) (types.Student, error) {
	query, args, err := sq.Insert(table).
		Columns("name", "email", "age").
		Values(name, email, age).
		ToSql()
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: build: %w", err)
	}

	result, err := s.Db.ExecContext(ctx, query, args...)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: exec: %w", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: last insert id: %w", err)
	}

	return s.GetStudentByID(ctx, lastID)
}

// GetStudentByID fetches exactly one row by primary key. A missing row
// surfaces as storage.ErrNotFound.
func (s *SQLite) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	query, args, err := sq.Select(columns...).
		From(table).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: build: %w", err)
	}

	var student types.Student
	// Scan order must match the columns slice.
	err = s.Db.QueryRowContext(ctx, query, args...).Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&student.Age,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

// GetStudents returns all rows ordered by id, which for an AUTOINCREMENT key
// is insertion order.
func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	query, args, err := sq.Select(columns...).
		From(table).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("GetStudents: build: %w", err)
	}

	rows, err := s.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: query: %w", err)
	}
	defer rows.Close()

	// Non-nil so the JSON encoding is [] rather than null.
	students := make([]types.Student, 0)

	for rows.Next() {
		var student types.Student
		if err := rows.Scan(
			&student.ID,
			&student.Name,
			&student.Email,
			&student.Age,
		); err != nil {
			return nil, fmt.Errorf("GetStudents: scan row: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStudents: rows iteration: %w", err)
	}

	return students, nil
}

// UpdateStudentByID replaces a student's fields and returns the stored row.
// Updating an id that does not exist yields storage.ErrNotFound.
func (s *SQLite) UpdateStudentByID(ctx context.Context, id int64, student types.Student) (types.Student, error) {
	query, args, err := sq.Update(table).
		Set("name", student.Name).
		Set("email", student.Email).
		Set("age", student.Age).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: build: %w", err)
	}

	result, err := s.Db.ExecContext(ctx, query, args...)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: %w", err)
	}

	return s.GetStudentByID(ctx, id)
}

// DeleteStudentByID removes a row by primary key. Deleting an id that does
// not exist yields storage.ErrNotFound.
func (s *SQLite) DeleteStudentByID(ctx context.Context, id int64) error {
	query, args, err := sq.Delete(table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: build: %w", err)
	}

	result, err := s.Db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return fmt.Errorf("DeleteStudentByID: %w", err)
	}

	return nil
}

func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no student found with id %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
