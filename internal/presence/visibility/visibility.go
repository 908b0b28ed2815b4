// Package visibility abstracts the host application's foreground signal.
// In the browser console this is the page visibility API; headless hosts
// use Always and the watch tool drives a Switch from OS signals.
package visibility

import "sync"

// Gate reports whether the host is foregrounded. The connection manager
// suspends keepalive and reconnect scheduling while the gate is inactive.
type Gate interface {
	// Active reports the current foreground state.
	Active() bool
	// Subscribe registers fn to run on every state flip and returns a
	// cancel func. fn is called without any Gate locks held.
	Subscribe(fn func(active bool)) (cancel func())
}

// Always is a Gate that is permanently active.
type Always struct{}

func (Always) Active() bool { return true }

func (Always) Subscribe(func(bool)) func() { return func() {} }

// Switch is a manually driven Gate. Set is a no-op when the state does
// not change, so repeated foreground signals fan out at most one flip.
type Switch struct {
	mu     sync.Mutex
	active bool
	subs   map[int]func(bool)
	nextID int
}

// NewSwitch constructs a Switch in the given state.
func NewSwitch(active bool) *Switch {
	return &Switch{active: active, subs: make(map[int]func(bool))}
}

func (s *Switch) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Set flips the state and notifies subscribers of an actual change.
func (s *Switch) Set(active bool) {
	s.mu.Lock()
	if s.active == active {
		s.mu.Unlock()
		return
	}
	s.active = active
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(active)
	}
}

func (s *Switch) Subscribe(fn func(active bool)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
