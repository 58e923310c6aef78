// Package student contains the HTTP handlers for the Student resource.
//
// HANDLER PATTERN — CLOSURE / FACTORY:
// ────────────────────────────────────
// A router wants func(http.ResponseWriter, *http.Request), which leaves no
// room for dependencies. Each factory below takes its dependencies once at
// startup and returns the handler that closes over them:
//
//	r.Post("/students", student.New(storage))
//	//                    ^^^^^^^^^^^^^^^^^^^^
//	//   New(storage) runs ONCE when routes are registered; the returned
//	//   handler runs on EVERY request.
package student

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-sync/internal/storage"
	"github.com/aanand-mishra/students-sync/internal/summary"
	"github.com/aanand-mishra/students-sync/internal/types"
	"github.com/aanand-mishra/students-sync/internal/utils/response"
)

var validate = validator.New()

// SummaryResponse is the body of GET /students/{id}/summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /students
//
// Request body (JSON, keys matched case-insensitively):
//
//	{ "Name": "Rakesh", "Age": 35, "Email": "rakesh@test.com" }
//
// Success response (201 Created) — the stored record:
//
//	{ "id": 1, "name": "Rakesh", "email": "rakesh@test.com", "age": 35 }
//
// Error responses:
//
//	400 Bad Request  — empty body, malformed JSON, or failed validation
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		student, ok := decodeStudent(w, r)
		if !ok {
			return
		}

		created, err := storage.CreateStudent(r.Context(), student.Name, student.Email, student.Age)
		if err != nil {
			slog.Error("error creating student", slog.String("error", err.Error()))
			_ = response.WriteError(w, http.StatusInternalServerError, err)
			return
		}

		slog.Info("student created", slog.Int64("id", created.ID))
		_ = response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /students/{id}
//
//	200 OK           — the student
//	400 Bad Request  — id is not an integer
//	404 Not Found    — no such student
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("getting a student", slog.Int64("id", id))

		student, err := storage.GetStudentByID(r.Context(), id)
		if err != nil {
			writeStorageError(w, "error getting student", id, err)
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, student)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /students
//
// Returns a JSON array of every student, [] (not null) when there are none.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all students")

		students, err := storage.GetStudents(r.Context())
		if err != nil {
			slog.Error("error getting students", slog.String("error", err.Error()))
			_ = response.WriteError(w, http.StatusInternalServerError, err)
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, students)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /students/{id}
// Replaces name, email and age; same body and validation as New.
//
//	200 OK           — the updated student
//	400 Bad Request  — invalid id, empty body, or validation failure
//	404 Not Found    — no such student
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("updating a student", slog.Int64("id", id))

		student, ok := decodeStudent(w, r)
		if !ok {
			return
		}

		updated, err := storage.UpdateStudentByID(r.Context(), id, student)
		if err != nil {
			writeStorageError(w, "error updating student", id, err)
			return
		}

		slog.Info("student updated", slog.Int64("id", id))
		_ = response.WriteJSON(w, http.StatusOK, updated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /students/{id}
//
//	204 No Content   — deleted, no body
//	400 Bad Request  — invalid id
//	404 Not Found    — no such student
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("deleting a student", slog.Int64("id", id))

		if err := storage.DeleteStudentByID(r.Context(), id); err != nil {
			writeStorageError(w, "error deleting student", id, err)
			return
		}

		slog.Info("student deleted", slog.Int64("id", id))
		response.NoContent(w)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Summary handles GET /students/{id}/summary
// Loads the student and asks the generator for a summary. This is the slow
// route: model backends can take seconds.
//
//	200 OK           — { "summary": "..." }
//	400 Bad Request  — invalid id
//	404 Not Found    — no such student
//	500 Internal     — database or generator error
//
// ─────────────────────────────────────────────────────────────────────────────
func Summary(storage storage.Storage, gen summary.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("generating summary", slog.Int64("id", id))

		student, err := storage.GetStudentByID(r.Context(), id)
		if err != nil {
			writeStorageError(w, "error loading student for summary", id, err)
			return
		}

		text, err := gen.Summarize(r.Context(), student)
		if err != nil {
			slog.Error("error generating summary",
				slog.Int64("id", id),
				slog.String("error", err.Error()))
			_ = response.WriteError(w, http.StatusInternalServerError,
				errors.New("summary generation failed"))
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, SummaryResponse{Summary: text})
	}
}

// pathID extracts {id} and writes 400 when it is not an integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		_ = response.WriteError(w, http.StatusBadRequest,
			fmt.Errorf("invalid id %q: must be an integer", raw))
		return 0, false
	}
	return id, true
}

// decodeStudent reads and validates the request body, writing 400 on failure.
func decodeStudent(w http.ResponseWriter, r *http.Request) (types.Student, bool) {
	var student types.Student

	err := json.NewDecoder(r.Body).Decode(&student)
	if errors.Is(err, io.EOF) {
		_ = response.WriteError(w, http.StatusBadRequest, errors.New("request body is empty"))
		return types.Student{}, false
	}
	if err != nil {
		_ = response.WriteError(w, http.StatusBadRequest, err)
		return types.Student{}, false
	}

	if err := validate.Struct(student); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			_ = response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
		} else {
			_ = response.WriteError(w, http.StatusBadRequest, err)
		}
		return types.Student{}, false
	}

	return student, true
}

func writeStorageError(w http.ResponseWriter, msg string, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		_ = response.WriteError(w, http.StatusNotFound, err)
		return
	}
	slog.Error(msg, slog.Int64("id", id), slog.String("error", err.Error()))
	_ = response.WriteError(w, http.StatusInternalServerError, err)
}
