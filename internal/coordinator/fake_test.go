package coordinator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aanand-mishra/students-sync/internal/client"
	"github.com/aanand-mishra/students-sync/internal/codec"
	"github.com/aanand-mishra/students-sync/internal/types"
)

// fakeTransport is an in-memory, strongly consistent stand-in for the
// service. Hooks replace individual operations when a test needs to control
// timing or inject failures.
type fakeTransport struct {
	mu       sync.Mutex
	nextID   int64
	students []types.Student

	listCalls      atomic.Int32
	summarizeCalls atomic.Int32

	listHook      func(ctx context.Context, call int32, snapshot []types.Student) ([]types.Student, error)
	summarizeHook func(ctx context.Context, id int64) (string, error)
	fail          map[Kind]error
}

func newFakeTransport(seed ...types.Student) *fakeTransport {
	f := &fakeTransport{fail: map[Kind]error{}}
	for _, s := range seed {
		f.students = append(f.students, s)
		f.nextID = max(f.nextID, s.ID)
	}
	return f
}

func (f *fakeTransport) snapshot() []types.Student {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.students)
}

func (f *fakeTransport) failure(kind Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[kind]
}

func (f *fakeTransport) setFailure(kind Kind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[kind] = err
}

func (f *fakeTransport) List(ctx context.Context) ([]types.Student, error) {
	call := f.listCalls.Add(1)
	if err := f.failure(KindList); err != nil {
		return []types.Student{}, err
	}
	snap := f.snapshot()
	if f.listHook != nil {
		return f.listHook(ctx, call, snap)
	}
	return snap, nil
}

func (f *fakeTransport) Get(_ context.Context, id int64) (types.Student, error) {
	if err := f.failure(KindGet); err != nil {
		return types.Student{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.students {
		if s.ID == id {
			return s, nil
		}
	}
	return types.Student{}, &client.TransportError{Op: fmt.Sprintf("GET /students/%d", id), Reason: client.ReasonStatus, StatusCode: 404}
}

func (f *fakeTransport) Create(_ context.Context, fields types.StudentFields) (types.Student, error) {
	if err := f.failure(KindCreate); err != nil {
		return types.Student{}, err
	}
	p := codec.Encode(fields)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s := types.Student{ID: f.nextID, Name: p.Name, Age: p.Age, Email: p.Email}
	f.students = append(f.students, s)
	return s, nil
}

func (f *fakeTransport) Update(_ context.Context, id int64, fields types.StudentFields) (types.Student, error) {
	if err := f.failure(KindUpdate); err != nil {
		return types.Student{}, err
	}
	p := codec.Encode(fields)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.students {
		if s.ID == id {
			f.students[i] = types.Student{ID: id, Name: p.Name, Age: p.Age, Email: p.Email}
			return f.students[i], nil
		}
	}
	return types.Student{}, &client.TransportError{Op: "PUT", Reason: client.ReasonStatus, StatusCode: 404}
}

func (f *fakeTransport) Delete(_ context.Context, id int64) error {
	if err := f.failure(KindDelete); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.students {
		if s.ID == id {
			f.students = slices.Delete(f.students, i, i+1)
			return nil
		}
	}
	return &client.TransportError{Op: "DELETE", Reason: client.ReasonStatus, StatusCode: 404}
}

func (f *fakeTransport) Summarize(ctx context.Context, id int64) (string, error) {
	f.summarizeCalls.Add(1)
	if err := f.failure(KindSummarize); err != nil {
		return "", err
	}
	if f.summarizeHook != nil {
		return f.summarizeHook(ctx, id)
	}
	return fmt.Sprintf("summary of %d", id), nil
}
