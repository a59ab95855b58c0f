package store

import (
	"sync"
)

// ReleaseFunc is called once for every value that leaves the store,
// either because it was replaced or because it was released.
type ReleaseFunc[K comparable, T any] func(k K, t T)

// MemoryStore holds at most one live value per key. Putting a value on a busy key
// releases the previous one first.
type MemoryStore[K comparable, T any] struct {
	lock      sync.RWMutex
	values    map[K]T
	onRelease ReleaseFunc[K, T]
}

func NewMemoryStore[K comparable, T any](onRelease ReleaseFunc[K, T]) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		values:    make(map[K]T),
		onRelease: onRelease,
	}
}

type released[K comparable, T any] struct {
	k K
	t T
}

// release runs the hook outside the lock so that it can use the store.
func (s *MemoryStore[K, T]) release(items ...released[K, T]) {
	if s.onRelease == nil {
		return
	}

	for _, item := range items {
		s.onRelease(item.k, item.t)
	}
}

// Put stores t under k. It reports whether a previous value was released.
func (s *MemoryStore[K, T]) Put(k K, t T) bool {
	s.lock.Lock()
	prev, ok := s.values[k]
	s.values[k] = t
	s.lock.Unlock()

	if ok {
		s.release(released[K, T]{k, prev})
	}

	return ok
}

func (s *MemoryStore[K, T]) Get(k K) (T, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	t, ok := s.values[k]

	return t, ok
}

// Release removes the value stored under k. It reports whether there was one.
func (s *MemoryStore[K, T]) Release(k K) bool {
	s.lock.Lock()
	prev, ok := s.values[k]
	delete(s.values, k)
	s.lock.Unlock()

	if ok {
		s.release(released[K, T]{k, prev})
	}

	return ok
}

// ReleaseIf removes every value whose key satisfies pred and returns how many were released.
func (s *MemoryStore[K, T]) ReleaseIf(pred func(k K) bool) int {
	s.lock.Lock()

	items := []released[K, T]{}

	for k, t := range s.values {
		if pred(k) {
			items = append(items, released[K, T]{k, t})
			delete(s.values, k)
		}
	}
	s.lock.Unlock()

	s.release(items...)

	return len(items)
}

// ReleaseAll empties the store.
func (s *MemoryStore[K, T]) ReleaseAll() int {
	return s.ReleaseIf(func(K) bool { return true })
}

func (s *MemoryStore[K, T]) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.values)
}

// Snapshot returns a copy of the stored values.
func (s *MemoryStore[K, T]) Snapshot() map[K]T {
	s.lock.RLock()
	defer s.lock.RUnlock()

	res := make(map[K]T, len(s.values))
	for k, t := range s.values {
		res[k] = t
	}

	return res
}
