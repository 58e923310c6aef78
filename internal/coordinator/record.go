package coordinator

import (
	"github.com/aanand-mishra/students-sync/internal/types"
)

// Kind names one operation the coordinator can run.
type Kind string

const (
	KindList      Kind = "list"
	KindGet       Kind = "get"
	KindCreate    Kind = "create"
	KindUpdate    Kind = "update"
	KindDelete    Kind = "delete"
	KindSummarize Kind = "summarize"
)

// Kinds lists every operation kind in display order.
var Kinds = []Kind{KindList, KindGet, KindCreate, KindUpdate, KindDelete, KindSummarize}

// Status is the state of one operation kind.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is the latest state of one operation kind. Value is set only when
// Status is StatusSucceeded and Err only when it is StatusFailed.
//
// Value holds []types.Student for list, types.Student for get, create and
// update, nil for delete and the summary text for summarize.
type Record struct {
	Kind      Kind
	Status    Status
	StudentID int64
	Value     any
	Err       error
	Message   string

	seq uint64
}

// Students returns the value of a successful list.
func (r Record) Students() ([]types.Student, bool) {
	v, ok := r.Value.([]types.Student)
	return v, ok
}

// Student returns the value of a successful get, create or update.
func (r Record) Student() (types.Student, bool) {
	v, ok := r.Value.(types.Student)
	return v, ok
}

// Text returns the value of a successful summarize.
func (r Record) Text() (string, bool) {
	v, ok := r.Value.(string)
	return v, ok
}

// Summary is generated text for one student.
type Summary struct {
	StudentID int64
	Text      string
}

// View is a read-only snapshot of everything presentation needs.
type View struct {
	Students []types.Student
	Selected *types.Student
	Summary  *Summary
	Ops      map[Kind]Record
}

// Op returns the record for kind; missing kinds read as idle.
func (v View) Op(kind Kind) Record {
	if r, ok := v.Ops[kind]; ok {
		return r
	}
	return Record{Kind: kind}
}

// Busy reports whether any operation is pending.
func (v View) Busy() bool {
	for _, r := range v.Ops {
		if r.Status == StatusPending {
			return true
		}
	}
	return false
}
