// Package coordinator sequences operations against the students service and
// reconciles their results into a collection.Store.
//
// Each operation kind owns an independent Record that moves through
// idle -> pending -> succeeded|failed, and back to pending on its next
// trigger. A failure in one kind never touches another kind's record.
//
// Operations are plain blocking calls. Presentation may run several of them
// at once from different goroutines; results can land in any order:
//
//   - A list result is applied only if no newer list has been applied.
//   - A summarize result is applied only if its student is still the
//     current summarize target. Otherwise it is dropped and the caller gets
//     ErrStale; nothing becomes visible.
//   - create, update and delete apply their result to the store first and
//     then run the post-action (by default a list refresh), so the refresh
//     is always issued after the mutation it follows.
//
// The coordinator never holds its lock across a network call.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/aanand-mishra/students-sync/internal/collection"
	"github.com/aanand-mishra/students-sync/internal/types"
)

// ErrStale is returned by Summarize when a newer summarize for a different
// student was triggered while this one was in flight. It is never recorded.
var ErrStale = errors.New("coordinator: result superseded by a newer request")

// Transport is the remote service as the coordinator sees it.
// *client.Client satisfies it.
type Transport interface {
	List(ctx context.Context) ([]types.Student, error)
	Get(ctx context.Context, id int64) (types.Student, error)
	Create(ctx context.Context, fields types.StudentFields) (types.Student, error)
	Update(ctx context.Context, id int64, fields types.StudentFields) (types.Student, error)
	Delete(ctx context.Context, id int64) error
	Summarize(ctx context.Context, id int64) (string, error)
}

// PostAction runs after a successful create, update or delete has been
// applied to the store. For delete, st carries only the id.
type PostAction func(ctx context.Context, kind Kind, st types.Student)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithStore uses s instead of a fresh collection.Store.
func WithStore(s *collection.Store) Option {
	return func(c *Coordinator) { c.store = s }
}

// WithPostAction replaces the default list refresh that follows every
// successful mutation. A nil action disables the follow-up entirely.
func WithPostAction(pa PostAction) Option {
	return func(c *Coordinator) {
		c.postAction = pa
		c.postActionSet = true
	}
}

// WithOnChange registers fn to receive a fresh View after every state
// change. Calls are serialized; fn must not call back into the coordinator's
// mutating methods.
func WithOnChange(fn func(View)) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// CallOption adjusts a single create, update or delete call.
type CallOption func(*callOptions)

type callOptions struct {
	skipRefresh bool
}

// SkipRefresh suppresses the post-action for one call. Used by flows that
// show the record they just wrote without reloading the list.
func SkipRefresh() CallOption {
	return func(o *callOptions) { o.skipRefresh = true }
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	transport     Transport
	store         *collection.Store
	logger        *slog.Logger
	postAction    PostAction
	postActionSet bool
	onChange      func(View)

	flights  singleflight.Group
	notifyMu sync.Mutex

	mu            sync.Mutex
	records       map[Kind]Record
	seq           map[Kind]uint64
	listApplied   uint64
	summaryTarget int64
	hasTarget     bool
	summary       *Summary
}

// New creates a Coordinator over transport.
func New(transport Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport: transport,
		records:   make(map[Kind]Record, len(Kinds)),
		seq:       make(map[Kind]uint64, len(Kinds)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With(slog.String("component", "coordinator"))
	if c.store == nil {
		c.store = collection.New()
	}
	if !c.postActionSet {
		c.postAction = c.refresh
	}
	for _, k := range Kinds {
		c.records[k] = Record{Kind: k, Status: StatusIdle}
	}
	return c
}

// Store returns the underlying store for read access.
func (c *Coordinator) Store() *collection.Store {
	return c.store
}

// Record returns the current record for kind.
func (c *Coordinator) Record(kind Kind) Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[kind]
}

// View returns a consistent snapshot of the store and every record.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	ops := make(map[Kind]Record, len(c.records))
	for k, r := range c.records {
		ops[k] = r
	}

	v := View{
		Students: c.store.All(),
		Ops:      ops,
	}
	if st, ok := c.store.Lookup(); ok {
		v.Selected = &st
	}
	if c.summary != nil {
		s := *c.summary
		v.Summary = &s
	}
	return v
}

// List fetches the whole collection and, if it is the newest list to land,
// replaces the store with it.
//
// List never returns an error. A failed fetch yields an empty slice, leaves
// the store as it was and marks the list record failed.
func (c *Coordinator) List(ctx context.Context) []types.Student {
	seq := c.begin(KindList, 0)

	students, err := c.transport.List(ctx)
	if err != nil {
		c.fail(KindList, seq, 0, err, "Error retrieving students.")
		return []types.Student{}
	}
	if students == nil {
		students = []types.Student{}
	}

	c.mu.Lock()
	if seq > c.listApplied {
		c.store.ReplaceAll(students)
		c.listApplied = seq
	} else {
		c.logger.Debug("dropping list older than the one applied",
			slog.Uint64("seq", seq),
			slog.Uint64("applied", c.listApplied))
	}
	c.succeedLocked(KindList, seq, 0, slices.Clone(students), "Students retrieved successfully!")
	c.mu.Unlock()

	c.notify()
	return students
}

// Get fetches one student and, if no newer get was triggered meanwhile,
// makes it the store's lookup. A failed get clears the lookup.
func (c *Coordinator) Get(ctx context.Context, id int64) (types.Student, error) {
	seq := c.begin(KindGet, id)

	st, err := c.transport.Get(ctx, id)
	if err != nil {
		c.mu.Lock()
		if c.isLatestLocked(KindGet, seq) {
			c.store.ClearLookup()
		}
		c.mu.Unlock()
		c.fail(KindGet, seq, id, err, fmt.Sprintf("Error retrieving student with ID %d.", id))
		return types.Student{}, err
	}

	c.mu.Lock()
	if c.isLatestLocked(KindGet, seq) {
		c.store.SetLookup(st)
	}
	c.succeedLocked(KindGet, seq, id, st, fmt.Sprintf("Student with ID %d retrieved successfully!", id))
	c.mu.Unlock()

	c.notify()
	return st, nil
}

// Create sends fields to the service, adds the stored record to the
// collection and then runs the post-action.
func (c *Coordinator) Create(ctx context.Context, fields types.StudentFields, opts ...CallOption) (types.Student, error) {
	seq := c.begin(KindCreate, 0)

	st, err := c.transport.Create(ctx, fields)
	if err != nil {
		c.fail(KindCreate, seq, 0, err, "Error creating student.")
		return types.Student{}, err
	}

	c.mu.Lock()
	c.store.Upsert(st)
	c.succeedLocked(KindCreate, seq, st.ID, st, "Student created successfully!")
	c.mu.Unlock()

	c.notify()
	c.afterMutation(ctx, KindCreate, st, opts)
	return st, nil
}

// Update replaces the mutable fields of student id, writes the service's
// record into the collection and then runs the post-action.
func (c *Coordinator) Update(ctx context.Context, id int64, fields types.StudentFields, opts ...CallOption) (types.Student, error) {
	seq := c.begin(KindUpdate, id)

	st, err := c.transport.Update(ctx, id, fields)
	if err != nil {
		c.fail(KindUpdate, seq, id, err, fmt.Sprintf("Error updating student with ID %d.", id))
		return types.Student{}, err
	}

	c.mu.Lock()
	c.store.Upsert(st)
	c.succeedLocked(KindUpdate, seq, id, st, fmt.Sprintf("Student with ID %d updated successfully!", id))
	c.mu.Unlock()

	c.notify()
	c.afterMutation(ctx, KindUpdate, st, opts)
	return st, nil
}

// Delete removes student id from the service and the collection and then
// runs the post-action.
func (c *Coordinator) Delete(ctx context.Context, id int64, opts ...CallOption) error {
	seq := c.begin(KindDelete, id)

	if err := c.transport.Delete(ctx, id); err != nil {
		c.fail(KindDelete, seq, id, err, fmt.Sprintf("Error deleting student with ID %d.", id))
		return err
	}

	c.mu.Lock()
	c.store.Remove(id)
	c.succeedLocked(KindDelete, seq, id, nil, fmt.Sprintf("Student with ID %d deleted successfully!", id))
	c.mu.Unlock()

	c.notify()
	c.afterMutation(ctx, KindDelete, types.Student{ID: id}, opts)
	return nil
}

// Summarize requests a summary for student id and makes id the current
// summarize target, dropping any summary shown for a different student.
//
// Concurrent calls for the same id share one request. The shared request
// does not inherit any caller's cancellation; it is bounded by the
// transport's own timeout and applies its result when it lands. A caller
// whose ctx ends first gets ctx.Err() and nothing is recorded for it.
//
// When the result lands after the target moved to another student, it is
// discarded and ErrStale is returned, whether the request succeeded or
// failed.
func (c *Coordinator) Summarize(ctx context.Context, id int64) (string, error) {
	c.mu.Lock()
	if c.summary != nil && c.summary.StudentID != id {
		c.summary = nil
	}
	c.summaryTarget = id
	c.hasTarget = true
	c.beginLocked(KindSummarize, id)
	c.mu.Unlock()
	c.notify()

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return c.runSummarize(flightCtx, id)
	})

	select {
	case <-ctx.Done():
		c.logger.Debug("summarize caller gone, request continues",
			slog.Int64("student_id", id),
			slog.String("error", ctx.Err().Error()))
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// runSummarize performs one shared summarize request and applies its
// outcome to the record of the current target.
func (c *Coordinator) runSummarize(ctx context.Context, id int64) (string, error) {
	text, err := c.transport.Summarize(ctx, id)

	c.mu.Lock()
	if !c.hasTarget || c.summaryTarget != id {
		c.mu.Unlock()
		c.logger.Debug("dropping stale summary", slog.Int64("student_id", id))
		return "", ErrStale
	}

	// The target is id, so the newest summarize call was for id.
	seq := c.seq[KindSummarize]
	if err != nil {
		c.failLocked(KindSummarize, seq, id, err, fmt.Sprintf("Error generating summary for student with ID %d.", id))
		c.mu.Unlock()
		c.logger.Warn("summarize failed", slog.Int64("student_id", id), slog.String("error", err.Error()))
		c.notify()
		return "", err
	}

	c.summary = &Summary{StudentID: id, Text: text}
	c.succeedLocked(KindSummarize, seq, id, text, fmt.Sprintf("Summary generated for student with ID %d.", id))
	c.mu.Unlock()

	c.notify()
	return text, nil
}

// refresh is the default post-action.
func (c *Coordinator) refresh(ctx context.Context, kind Kind, st types.Student) {
	c.logger.Debug("refreshing after mutation", slog.String("kind", string(kind)), slog.Int64("student_id", st.ID))
	c.List(ctx)
}

func (c *Coordinator) afterMutation(ctx context.Context, kind Kind, st types.Student, opts []CallOption) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.skipRefresh || c.postAction == nil {
		return
	}
	c.postAction(ctx, kind, st)
}

func (c *Coordinator) begin(kind Kind, id int64) uint64 {
	c.mu.Lock()
	seq := c.beginLocked(kind, id)
	c.mu.Unlock()

	c.notify()
	return seq
}

func (c *Coordinator) beginLocked(kind Kind, id int64) uint64 {
	c.seq[kind]++
	seq := c.seq[kind]
	c.records[kind] = Record{Kind: kind, Status: StatusPending, StudentID: id, seq: seq}
	return seq
}

func (c *Coordinator) isLatestLocked(kind Kind, seq uint64) bool {
	return c.records[kind].seq == seq
}

// succeedLocked updates the record only if no newer call of the same kind
// has started; the older call's effect on the store still stands.
func (c *Coordinator) succeedLocked(kind Kind, seq uint64, id int64, value any, msg string) {
	if !c.isLatestLocked(kind, seq) {
		return
	}
	c.records[kind] = Record{
		Kind:      kind,
		Status:    StatusSucceeded,
		StudentID: id,
		Value:     value,
		Message:   msg,
		seq:       seq,
	}
}

func (c *Coordinator) failLocked(kind Kind, seq uint64, id int64, err error, msg string) {
	if !c.isLatestLocked(kind, seq) {
		return
	}
	c.records[kind] = Record{
		Kind:      kind,
		Status:    StatusFailed,
		StudentID: id,
		Err:       err,
		Message:   msg,
		seq:       seq,
	}
}

func (c *Coordinator) fail(kind Kind, seq uint64, id int64, err error, msg string) {
	c.mu.Lock()
	c.failLocked(kind, seq, id, err, msg)
	c.mu.Unlock()

	c.logger.Warn("operation failed",
		slog.String("kind", string(kind)),
		slog.Int64("student_id", id),
		slog.String("error", err.Error()))
	c.notify()
}

func (c *Coordinator) notify() {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onChange(c.View())
}
