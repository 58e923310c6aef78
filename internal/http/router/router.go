// Package router assembles the chi router for the students service.
//
// Route table:
//
//	GET    /students               → list all students
//	POST   /students               → create a new student
//	GET    /students/{id}          → get one student by ID
//	PUT    /students/{id}          → update a student
//	DELETE /students/{id}          → delete a student
//	GET    /students/{id}/summary  → generated summary of one student
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aanand-mishra/students-sync/internal/http/handlers/student"
	"github.com/aanand-mishra/students-sync/internal/storage"
	"github.com/aanand-mishra/students-sync/internal/summary"
)

// New wires every route and the shared middleware stack.
//
// Middleware order (outermost first):
//
//	RequestID → RealIP → Recoverer → CORS → request log → handler
//
// middleware.RequestID honours an incoming X-Request-Id, so ids minted by
// the sync client show up in the service logs.
func New(log *slog.Logger, store storage.Storage, gen summary.Generator) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		CORS,
		RequestLogger(log),
	)

	r.Route("/students", func(r chi.Router) {
		r.Get("/", student.GetList(store))
		r.Post("/", student.New(store))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", student.GetByID(store))
			r.Put("/", student.Update(store))
			r.Delete("/", student.Delete(store))
			r.Get("/summary", student.Summary(store, gen))
		})
	})

	return r
}

// CORS lets the browser frontend on another origin call the service.
// Preflight requests are answered here and never reach a handler.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request at debug level.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
