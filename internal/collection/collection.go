// Package collection is the local mirror of the remote student collection.
//
// A Store keeps students in the order of the last successful list fetch and
// indexes them by id. It also holds at most one single-entity lookup: the
// record most recently fetched by id. Only the coordinator mutates a Store;
// every mutation takes the write lock for its whole duration, so readers
// never observe a half-applied list.
package collection

import (
	"slices"
	"sync"

	"github.com/aanand-mishra/students-sync/internal/types"
)

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	items  []types.Student
	index  map[int64]int
	lookup *types.Student
}

// New returns an empty Store.
func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// ReplaceAll discards the current contents and loads students in order.
// When the input repeats an id, the later record replaces the earlier one
// at the earlier record's position.
func (s *Store) ReplaceAll(students []types.Student) {
	items := make([]types.Student, 0, len(students))
	index := make(map[int64]int, len(students))
	for _, st := range students {
		if i, ok := index[st.ID]; ok {
			items[i] = st
			continue
		}
		index[st.ID] = len(items)
		items = append(items, st)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = items
	s.index = index
	s.refreshLookupLocked()
}

// Upsert replaces the record with the same id in place, or appends it.
func (s *Store) Upsert(st types.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[st.ID]; ok {
		s.items[i] = st
	} else {
		s.index[st.ID] = len(s.items)
		s.items = append(s.items, st)
	}
	if s.lookup != nil && s.lookup.ID == st.ID {
		cp := st
		s.lookup = &cp
	}
}

// Remove deletes the record with id and reports whether it was present.
// A lookup of the same id is cleared as well.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup != nil && s.lookup.ID == id {
		s.lookup = nil
	}

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
	return true
}

// All returns a copy of the collection in order.
func (s *Store) All() []types.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Get returns the record with id from the collection.
func (s *Store) Get(id int64) (types.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return types.Student{}, false
	}
	return s.items[i], true
}

// Len returns the number of records in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// SetLookup records st as the current single-entity lookup. It does not
// touch the collection.
func (s *Store) SetLookup(st types.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup = &st
}

// Lookup returns the current single-entity lookup, if any.
func (s *Store) Lookup() (types.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lookup == nil {
		return types.Student{}, false
	}
	return *s.lookup, true
}

// ClearLookup drops the current single-entity lookup.
func (s *Store) ClearLookup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup = nil
}

// refreshLookupLocked keeps the lookup in step with a freshly loaded list.
// A lookup whose id is absent from the list is left alone: a list is not
// proof that a record fetched by id has gone.
func (s *Store) refreshLookupLocked() {
	if s.lookup == nil {
		return
	}
	if i, ok := s.index[s.lookup.ID]; ok {
		cp := s.items[i]
		s.lookup = &cp
	}
}
