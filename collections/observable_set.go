// Package collections provides the observable containers the project model is built on.
package collections

import (
	"iter"
	"sync"
)

// Handler receives an element that was inserted into or removed from a set.
type Handler[T any] func(item T)

// ObservableSet is an ordered container of distinct elements that notifies
// listeners about every insertion and removal.
//
// Notifications are raised synchronously on the mutating goroutine, in the
// order the operations were issued. A removal notification is raised after
// the element has been detached, so handlers never observe stale membership.
// Handlers may mutate the set; iteration always works on a snapshot.
//
// Adding an element that is already present is a no-op and reports false.
type ObservableSet[T any] struct {
	mu    sync.Mutex
	items []T
	key   func(T) any

	inserted handlerList[T]
	removed  handlerList[T]
}

// NewObservableSet creates a set whose element identity is the element itself.
func NewObservableSet[T comparable]() *ObservableSet[T] {
	return &ObservableSet[T]{key: func(v T) any { return v }}
}

// NewObservableSetFunc creates a set whose element identity is computed by key.
// Two elements with equal keys are considered the same element.
func NewObservableSetFunc[T any](key func(T) any) *ObservableSet[T] {
	return &ObservableSet[T]{key: key}
}

// OnInserted registers a handler for insertions and returns a func that removes it.
func (s *ObservableSet[T]) OnInserted(h Handler[T]) (unsubscribe func()) {
	return s.inserted.add(h)
}

// OnRemoved registers a handler for removals and returns a func that removes it.
func (s *ObservableSet[T]) OnRemoved(h Handler[T]) (unsubscribe func()) {
	return s.removed.add(h)
}

// Add appends item and raises an insertion notification.
// It returns false when an element with the same identity is already present.
func (s *ObservableSet[T]) Add(item T) bool {
	s.mu.Lock()
	if s.indexLocked(item) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items, item)
	s.mu.Unlock()

	s.inserted.notify(item)
	return true
}

// AddRange adds every item in order and returns how many were inserted.
func (s *ObservableSet[T]) AddRange(items ...T) int {
	n := 0
	for _, item := range items {
		if s.Add(item) {
			n++
		}
	}
	return n
}

// Remove detaches item and raises a removal notification.
// It returns false when the item is not a member.
func (s *ObservableSet[T]) Remove(item T) bool {
	s.mu.Lock()
	i := s.indexLocked(item)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.detachLocked(i)
	s.mu.Unlock()

	s.removed.notify(removed)
	return true
}

// RemoveAt detaches the element at index i and raises a removal notification.
// It panics if i is out of range, like a slice index would.
func (s *ObservableSet[T]) RemoveAt(i int) T {
	s.mu.Lock()
	if i < 0 || i >= len(s.items) {
		s.mu.Unlock()
		panic("collections: index out of range")
	}
	removed := s.detachLocked(i)
	s.mu.Unlock()

	s.removed.notify(removed)
	return removed
}

// Clear removes every element, last to first, raising one removal per element.
func (s *ObservableSet[T]) Clear() {
	for {
		s.mu.Lock()
		n := len(s.items)
		if n == 0 {
			s.mu.Unlock()
			return
		}
		removed := s.detachLocked(n - 1)
		s.mu.Unlock()

		s.removed.notify(removed)
	}
}

// Contains reports whether an element with the same identity as item is present.
func (s *ObservableSet[T]) Contains(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(item) >= 0
}

// Find returns the first element for which match returns true.
func (s *ObservableSet[T]) Find(match func(T) bool) (T, bool) {
	for _, item := range s.Items() {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// IndexOf returns the position of item, or -1.
func (s *ObservableSet[T]) IndexOf(item T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(item)
}

// Len returns the number of elements.
func (s *ObservableSet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// At returns the element at index i.
func (s *ObservableSet[T]) At(i int) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[i]
}

// Items returns a snapshot of the elements in order.
func (s *ObservableSet[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// All iterates over a snapshot taken when iteration starts.
func (s *ObservableSet[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range s.Items() {
			if !yield(i, item) {
				return
			}
		}
	}
}

func (s *ObservableSet[T]) indexLocked(item T) int {
	k := s.key(item)
	for i, existing := range s.items {
		if s.key(existing) == k {
			return i
		}
	}
	return -1
}

func (s *ObservableSet[T]) detachLocked(i int) T {
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return removed
}

type handlerEntry[T any] struct {
	id int
	fn Handler[T]
}

type handlerList[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []handlerEntry[T]
}

func (l *handlerList[T]) add(h Handler[T]) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, handlerEntry[T]{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *handlerList[T]) notify(item T) {
	l.mu.Lock()
	snapshot := make([]handlerEntry[T], len(l.entries))
	copy(snapshot, l.entries)
	l.mu.Unlock()

	for _, e := range snapshot {
		e.fn(item)
	}
}
