// Package nav names the client's views and carries navigation requests
// from session logic to whatever front end is rendering.
package nav

import "sync"

// View is a navigation target.
type View string

const (
	// ViewEntry is the public landing page shown to signed-out users.
	ViewEntry View = "entry"
	// ViewAuth is the OAuth callback view.
	ViewAuth View = "auth"
	// ViewDashboard is the authenticated landing view.
	ViewDashboard View = "dashboard"
)

// Path returns the loopback server path rendering v.
func (v View) Path() string {
	switch v {
	case ViewAuth:
		return "/auth/callback"
	case ViewDashboard:
		return "/dashboard"
	default:
		return "/"
	}
}

// Navigator moves the front end between views.
type Navigator interface {
	Current() View
	Navigate(to View)
}

// Recorder is a Navigator that remembers where it has been. The CLI uses
// it to decide what to print after a command; tests use it to assert.
type Recorder struct {
	mu      sync.Mutex
	current View
	history []View
	onMove  func(View)
}

// NewRecorder starts at the given view.
func NewRecorder(start View) *Recorder {
	return &Recorder{current: start}
}

// OnNavigate registers a hook called after every move.
func (r *Recorder) OnNavigate(fn func(View)) {
	r.mu.Lock()
	r.onMove = fn
	r.mu.Unlock()
}

func (r *Recorder) Current() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Recorder) Navigate(to View) {
	r.mu.Lock()
	r.current = to
	r.history = append(r.history, to)
	fn := r.onMove
	r.mu.Unlock()
	if fn != nil {
		fn(to)
	}
}

// History returns every navigation in order.
func (r *Recorder) History() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]View(nil), r.history...)
}
