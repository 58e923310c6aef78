package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/aanand-mishra/students-sync/internal/coordinator"
	"github.com/aanand-mishra/students-sync/internal/types"
)

type cli struct {
	transport coordinator.Transport
	log       *slog.Logger
	out       io.Writer
	errOut    io.Writer
	noRefresh bool
}

// failure marks a command whose remote operation failed. Its message has
// already been printed.
type failure struct {
	err error
}

func (f failure) Error() string { return f.err.Error() }

func (f failure) Unwrap() error { return f.err }

func (a *cli) newCoordinator() *coordinator.Coordinator {
	return coordinator.New(a.transport, coordinator.WithLogger(a.log))
}

func (a *cli) mutationOpts() []coordinator.CallOption {
	if a.noRefresh {
		return []coordinator.CallOption{coordinator.SkipRefresh()}
	}
	return nil
}

// report prints the record's message to stdout on success and to stderr
// with the cause on failure. It returns the failure, if any.
func (a *cli) report(rec coordinator.Record) error {
	if rec.Status == coordinator.StatusFailed {
		fmt.Fprintf(a.errOut, "%s (%v)\n", rec.Message, rec.Err)
		return failure{err: rec.Err}
	}
	fmt.Fprintln(a.out, rec.Message)
	return nil
}

func (a *cli) list(ctx context.Context) error {
	c := a.newCoordinator()

	students := c.List(ctx)
	if err := a.report(c.Record(coordinator.KindList)); err != nil {
		return err
	}
	a.printTable(students)
	return nil
}

func (a *cli) get(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	c := a.newCoordinator()

	st, _ := c.Get(ctx, id)
	if err := a.report(c.Record(coordinator.KindGet)); err != nil {
		return err
	}
	a.printTable([]types.Student{st})
	return nil
}

func (a *cli) create(ctx context.Context, args []string) error {
	c := a.newCoordinator()

	_, _ = c.Create(ctx, types.StudentFields{Name: args[0], Age: args[1], Email: args[2]}, a.mutationOpts()...)
	return a.afterMutation(c, coordinator.KindCreate)
}

func (a *cli) update(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	c := a.newCoordinator()

	_, _ = c.Update(ctx, id, types.StudentFields{Name: args[1], Age: args[2], Email: args[3]}, a.mutationOpts()...)
	return a.afterMutation(c, coordinator.KindUpdate)
}

func (a *cli) delete(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	c := a.newCoordinator()

	_ = c.Delete(ctx, id, a.mutationOpts()...)
	return a.afterMutation(c, coordinator.KindDelete)
}

// afterMutation reports the mutation and, when a refresh ran, the reloaded
// collection. A failed refresh is reported but does not fail the command.
func (a *cli) afterMutation(c *coordinator.Coordinator, kind coordinator.Kind) error {
	if err := a.report(c.Record(kind)); err != nil {
		return err
	}
	if a.noRefresh {
		return nil
	}

	rec := c.Record(coordinator.KindList)
	if rec.Status == coordinator.StatusFailed {
		_ = a.report(rec)
		return nil
	}
	students, _ := rec.Students()
	a.printTable(students)
	return nil
}

// summarize triggers one summarize per distinct id, in argument order, and
// waits for all of them. Only the last id can produce a visible summary;
// earlier ones report as superseded once they land.
func (a *cli) summarize(ctx context.Context, args []string) error {
	ids, err := distinctIDs(args)
	if err != nil {
		return err
	}

	started := make(chan struct{}, len(ids))
	c := coordinator.New(startSignal{Transport: a.transport, started: started},
		coordinator.WithLogger(a.log))

	type outcome struct {
		text string
		err  error
	}
	results := make([]outcome, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := c.Summarize(ctx, id)
			results[i] = outcome{text: text, err: err}
		}()
		// Wait until this call has become the target before triggering the
		// next one, so argument order is trigger order.
		select {
		case <-started:
		case <-ctx.Done():
		}
	}
	wg.Wait()

	var failed error
	for i, id := range ids {
		switch r := results[i]; {
		case errors.Is(r.err, coordinator.ErrStale):
			fmt.Fprintf(a.out, "ID %d: superseded by a newer request\n", id)
		case r.err != nil:
			fmt.Fprintf(a.errOut, "ID %d: %v\n", id, r.err)
			failed = failure{err: r.err}
		default:
			fmt.Fprintf(a.out, "ID %d: %s\n", id, r.text)
		}
	}

	if rec := c.Record(coordinator.KindSummarize); rec.Status != coordinator.StatusIdle {
		if err := a.report(rec); err != nil {
			return err
		}
	}
	return failed
}

// startSignal reports each Summarize as it reaches the transport, which
// happens after the coordinator has made its id the current target.
type startSignal struct {
	coordinator.Transport
	started chan<- struct{}
}

func (s startSignal) Summarize(ctx context.Context, id int64) (string, error) {
	s.started <- struct{}{}
	return s.Transport.Summarize(ctx, id)
}

func (a *cli) printTable(students []types.Student) {
	if len(students) == 0 {
		fmt.Fprintln(a.out, "(no students)")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAGE\tEMAIL")
	for _, st := range students {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", st.ID, st.Name, st.Age, st.Email)
	}
	_ = tw.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be an integer", s)
	}
	return id, nil
}

func distinctIDs(args []string) ([]int64, error) {
	seen := make(map[int64]bool, len(args))
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
