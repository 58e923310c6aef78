// Package summary generates free-text summaries of student records for the
// service's GET /students/{id}/summary route.
package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/aanand-mishra/students-sync/internal/types"
)

// Generator produces a summary for one student. Implementations may be slow
// and must honour ctx.
type Generator interface {
	Summarize(ctx context.Context, student types.Student) (string, error)
}

// Template renders a fixed sentence. Latency, when set, delays every call;
// it stands in for a model backend during demos and tests.
type Template struct {
	Latency time.Duration
}

func (t Template) Summarize(ctx context.Context, student types.Student) (string, error) {
	if t.Latency > 0 {
		timer := time.NewTimer(t.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("summary.Template: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Sprintf("%s is a %d-year-old student who can be reached at %s.",
		student.Name, student.Age, student.Email), nil
}

// Prompt is the instruction sent to model backends.
func Prompt(student types.Student) string {
	return fmt.Sprintf(
		"Write a short, friendly summary (two sentences at most) of this student profile.\n"+
			"Name: %s\nAge: %d\nEmail: %s",
		student.Name, student.Age, student.Email)
}
