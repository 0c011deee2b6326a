package solver

import "sync"

// processingSet tracks the intent IDs whose pipeline is currently in flight.
// Push delivery is at-least-once and polling rediscovers everything, so the
// set is what collapses duplicates to at most one pipeline per intent within
// this process. The on-chain status transition is the cross-process
// serializer.
type processingSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newProcessingSet() *processingSet {
	return &processingSet{ids: make(map[string]struct{})}
}

// TryAcquire claims id. Returns false if a pipeline already holds it.
func (s *processingSet) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.ids[id]; held {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Release frees id. Must run on every pipeline exit path.
func (s *processingSet) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Len returns the number of in-flight pipelines.
func (s *processingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
