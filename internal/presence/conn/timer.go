package conn

import (
	"sync"
	"time"
)

// retryTimer arms at most one pending reconnect attempt. Schedule while a
// timer is pending is a no-op; the timer clears itself before running fn so
// the callback may arm the next attempt.
type retryTimer struct {
	mu sync.Mutex
	t  *time.Timer
}

// Schedule arms fn to run after d. Returns false without touching the
// pending timer if one is already armed.
func (r *retryTimer) Schedule(d time.Duration, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t != nil {
		return false
	}
	r.t = time.AfterFunc(d, func() {
		r.mu.Lock()
		r.t = nil
		r.mu.Unlock()
		fn()
	})
	return true
}

// Cancel clears the pending timer, if any. A timer that already started
// firing still runs fn; callers re-check their own conditions inside fn.
func (r *retryTimer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t != nil {
		r.t.Stop()
		r.t = nil
	}
}

// Pending reports whether a timer is armed.
func (r *retryTimer) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t != nil
}
