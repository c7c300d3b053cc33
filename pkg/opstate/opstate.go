// Package opstate tracks the loading flag and last error message shared by
// every feature service.
package opstate

import (
	"sync"

	"github.com/odvcencio/vulnpilot/pkg/api"
)

// State is safe for concurrent use. Overlapping operations are
// last-writer-wins; no request fencing is done.
type State struct {
	mu      sync.RWMutex
	loading bool
	err     string
	hasErr  bool
}

// Loading reports whether an operation is in flight.
func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last failure message.
func (s *State) Err() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err, s.hasErr
}

// ClearError forgets the last failure.
func (s *State) ClearError() {
	s.mu.Lock()
	s.err, s.hasErr = "", false
	s.mu.Unlock()
}

// SetError records a failure message without an operation, for soft
// validation errors that never reach the network.
func (s *State) SetError(msg string) {
	s.mu.Lock()
	s.err, s.hasErr = msg, true
	s.mu.Unlock()
}

// Begin marks an operation as started and clears the previous error.
func (s *State) Begin() {
	s.mu.Lock()
	s.loading = true
	s.err, s.hasErr = "", false
	s.mu.Unlock()
}

// End marks the operation finished, records err's message when non-nil,
// and returns err unchanged.
func (s *State) End(err error) error {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err, s.hasErr = api.ErrorMessage(err), true
	}
	s.mu.Unlock()
	return err
}

// Run wraps one call in Begin/End.
func Run[T any](s *State, call func() (T, error)) (T, error) {
	s.Begin()
	out, err := call()
	return out, s.End(err)
}
