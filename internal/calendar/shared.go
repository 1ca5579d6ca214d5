package calendar

import "sync"

// Shared serializes access to a View for callers on several goroutines
// (HTTP handlers, the refresh runner). Each Update/Read runs with the view
// exclusively held.
type Shared struct {
	mu sync.Mutex
	v  *View
}

// NewShared wraps v.
func NewShared(v *View) *Shared {
	return &Shared{v: v}
}

// Update runs fn with exclusive access to the view.
func (s *Shared) Update(fn func(v *View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.v)
}

// Read is Update for callers that only look.
func (s *Shared) Read(fn func(v *View)) {
	s.Update(fn)
}
