package coordinator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-sync/internal/client"
	"github.com/aanand-mishra/students-sync/internal/coordinator"
	"github.com/aanand-mishra/students-sync/internal/http/router"
	"github.com/aanand-mishra/students-sync/internal/storage/sqlite"
	"github.com/aanand-mishra/students-sync/internal/summary"
	"github.com/aanand-mishra/students-sync/internal/types"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// newServiceCoordinator runs the real students service on a temp SQLite
// database and returns a coordinator talking to it over HTTP.
func newServiceCoordinator(t *testing.T, gen summary.Generator) *coordinator.Coordinator {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ts := httptest.NewServer(router.New(discard, db, gen))
	t.Cleanup(ts.Close)

	cl, err := client.New(client.Config{BaseURL: ts.URL, Logger: discard})
	require.NoError(t, err)

	return coordinator.New(cl, coordinator.WithLogger(discard))
}

func TestService_CreateThenDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newServiceCoordinator(t, summary.Template{})

	assert.Empty(t, c.List(ctx))

	alice, err := c.Create(ctx, types.StudentFields{Name: "Alice", Age: "21", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, types.Student{ID: 1, Name: "Alice", Age: 21, Email: "a@x.com"}, alice)

	rec := c.Record(coordinator.KindCreate)
	assert.Equal(t, coordinator.StatusSucceeded, rec.Status)
	assert.Equal(t, "Student created successfully!", rec.Message)
	assert.Equal(t, []types.Student{alice}, c.Store().All())
	assert.Equal(t, coordinator.StatusSucceeded, c.Record(coordinator.KindList).Status)

	require.NoError(t, c.Delete(ctx, alice.ID))
	assert.Empty(t, c.Store().All())
	assert.Equal(t, "Student with ID 1 deleted successfully!", c.Record(coordinator.KindDelete).Message)
}

func TestService_UpdateGetAndNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newServiceCoordinator(t, summary.Template{})

	st, err := c.Create(ctx, types.StudentFields{Name: "Bob", Age: "30", Email: "b@x.com"})
	require.NoError(t, err)

	updated, err := c.Update(ctx, st.ID, types.StudentFields{Name: "Robert", Age: " 31 ", Email: "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 31, updated.Age)

	got, err := c.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	lookup, ok := c.Store().Lookup()
	require.True(t, ok)
	assert.Equal(t, updated, lookup)

	_, err = c.Get(ctx, 99)
	require.ErrorIs(t, err, client.ErrNotFound)
	_, ok = c.Store().Lookup()
	assert.False(t, ok)
	assert.Equal(t, "Error retrieving student with ID 99.", c.Record(coordinator.KindGet).Message)

	err = c.Delete(ctx, 99)
	require.ErrorIs(t, err, client.ErrNotFound)
	assert.Equal(t, coordinator.StatusFailed, c.Record(coordinator.KindDelete).Status)
	assert.Len(t, c.Store().All(), 1)
}

func TestService_InvalidAgeRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newServiceCoordinator(t, summary.Template{})

	_, err := c.Create(ctx, types.StudentFields{Name: "Carol", Age: "twenty", Email: "c@x.com"})
	var te *client.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 400, te.StatusCode)
	assert.Equal(t, "Error creating student.", c.Record(coordinator.KindCreate).Message)
	assert.Empty(t, c.Store().All())
}

// gatedGenerator holds summaries for one student until released.
type gatedGenerator struct {
	summary.Template
	holdID  int64
	release chan struct{}
}

func (g gatedGenerator) Summarize(ctx context.Context, st types.Student) (string, error) {
	if st.ID == g.holdID {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.Template.Summarize(ctx, st)
}

func TestService_SlowSummaryIsSuperseded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gen := gatedGenerator{holdID: 1, release: make(chan struct{})}
	c := newServiceCoordinator(t, gen)

	_, err := c.Create(ctx, types.StudentFields{Name: "Alice", Age: "21", Email: "a@x.com"}, coordinator.SkipRefresh())
	require.NoError(t, err)
	_, err = c.Create(ctx, types.StudentFields{Name: "Bob", Age: "30", Email: "b@x.com"}, coordinator.SkipRefresh())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = c.Summarize(ctx, 1)
	}()

	require.Eventually(t, func() bool {
		rec := c.Record(coordinator.KindSummarize)
		return rec.Status == coordinator.StatusPending && rec.StudentID == 1
	}, time.Second, 5*time.Millisecond)

	text, err := c.Summarize(ctx, 2)
	require.NoError(t, err)
	assert.Contains(t, text, "Bob")

	close(gen.release)
	wg.Wait()
	assert.True(t, errors.Is(slowErr, coordinator.ErrStale))

	v := c.View()
	require.NotNil(t, v.Summary)
	assert.Equal(t, int64(2), v.Summary.StudentID)
	assert.Equal(t, "Summary generated for student with ID 2.", v.Op(coordinator.KindSummarize).Message)
}
