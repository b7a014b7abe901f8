package pipeline

import "sync"

type entryState uint8

const (
	stateInFlight entryState = iota + 1
	stateDispatched
)

// ProcessedSet records paths already accepted for processing.
//
// The lock is held only for the map operation itself, never across I/O.
type ProcessedSet struct {
	mu    sync.Mutex
	paths map[string]entryState
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{paths: map[string]entryState{}}
}

// Reserve atomically checks and inserts path. It reports false when the path
// is already reserved or dispatched.
func (s *ProcessedSet) Reserve(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = stateInFlight
	return true
}

// Release removes path after a terminal probe or validation failure.
func (s *ProcessedSet) Release(path string) {
	s.mu.Lock()
	delete(s.paths, path)
	s.mu.Unlock()
}

// MarkDispatched records that path reached the dispatch queue.
func (s *ProcessedSet) MarkDispatched(path string) {
	s.mu.Lock()
	if _, ok := s.paths[path]; ok {
		s.paths[path] = stateDispatched
	}
	s.mu.Unlock()
}

// Forget drops a dispatched path whose file was removed or renamed away, so a
// later create event for the same name is treated as new. In-flight entries
// are left alone: their probe reports the file as gone and releases them.
func (s *ProcessedSet) Forget(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paths[path] != stateDispatched {
		return false
	}
	delete(s.paths, path)
	return true
}

func (s *ProcessedSet) Contains(path string) bool {
	s.mu.Lock()
	_, ok := s.paths[path]
	s.mu.Unlock()
	return ok
}

func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	n := len(s.paths)
	s.mu.Unlock()
	return n
}
