// Package store holds the client-side presence view: the live user list
// and the aggregate stats. It is a reducer; PresenceUser and PresenceStats
// are never mutated outside Apply. The connection read loop is the only
// push-side applier, so events land in network-arrival order.
package store

import (
	"log/slog"
	"sync"
	"time"

	"vigil/internal/presence/metrics"
	"vigil/internal/presence/models"
)

// Store is the authoritative in-memory presence view.
type Store struct {
	mu     sync.RWMutex
	stats  models.PresenceStats
	users  []models.PresenceUser
	index  map[string]int // user_id -> position in users
	lastAt time.Time      // arrival time of the last state-changing event

	notify  chan struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the logger used for dropped and unknown events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches presence client metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index:  make(map[string]int),
		notify: make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Snapshot is a point-in-time copy of the store for rendering. Users keeps
// server order for replaced lists and arrival order for appended entries.
type Snapshot struct {
	Stats       models.PresenceStats
	Users       []models.PresenceUser
	LastEventAt time.Time
}

// OnlineCount counts the snapshot rows flagged online.
func (s Snapshot) OnlineCount() int {
	n := 0
	for _, u := range s.Users {
		if u.IsOnline {
			n++
		}
	}
	return n
}

// User returns the snapshot row for the given id.
func (s Snapshot) User(userID string) (models.PresenceUser, bool) {
	for _, u := range s.Users {
		if u.UserID == userID {
			return u, true
		}
	}
	return models.PresenceUser{}, false
}

// Apply folds one event into the view. Pong and unknown events change
// nothing. Events are applied in call order; the store never drops or
// reorders a state-changing event.
func (s *Store) Apply(ev models.Event) {
	s.mu.Lock()
	changed := s.applyLocked(ev)
	s.mu.Unlock()

	if changed {
		s.wake()
	}
}

func (s *Store) applyLocked(ev models.Event) bool {
	switch ev.Kind {
	case models.KindStatsReplace:
		if ev.Stats == nil {
			return false
		}
		s.stats = ev.Stats.Clone()
		if s.metrics != nil {
			s.metrics.SetOnlineUsers(s.stats.TotalOnline)
		}

	case models.KindUsersReplace:
		s.users = s.users[:0]
		clear(s.index)
		for _, u := range ev.Users {
			if pos, ok := s.index[u.UserID]; ok {
				// Duplicate ids in one payload: last write wins.
				s.users[pos] = u
				continue
			}
			s.index[u.UserID] = len(s.users)
			s.users = append(s.users, u)
		}

	case models.KindUserUpserted:
		if ev.Patch == nil {
			return false
		}
		if pos, ok := s.index[ev.Patch.UserID]; ok {
			ev.Patch.ApplyTo(&s.users[pos])
			s.users[pos].IsOnline = true
		} else {
			u := ev.Patch.NewUser()
			u.IsOnline = true
			s.index[u.UserID] = len(s.users)
			s.users = append(s.users, u)
		}

	case models.KindUserRemoved:
		pos, ok := s.index[ev.UserID]
		if !ok {
			return false
		}
		s.users = append(s.users[:pos], s.users[pos+1:]...)
		delete(s.index, ev.UserID)
		for i := pos; i < len(s.users); i++ {
			s.index[s.users[i].UserID] = i
		}

	case models.KindActivityTouched:
		pos, ok := s.index[ev.UserID]
		if !ok {
			// Touch for an absent user: removal was authoritative.
			return false
		}
		s.users[pos].LastActivity = ev.LastActivity

	case models.KindPong:
		return false

	case models.KindUnknown:
		s.logger.Debug("ignoring unknown presence event", "type", ev.WireType)
		return false

	default:
		return false
	}

	s.lastAt = time.Now()
	return true
}

// Snapshot returns a copy of the current view. The returned slices and
// maps are owned by the caller.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.PresenceUser, len(s.users))
	copy(users, s.users)

	return Snapshot{
		Stats:       s.stats.Clone(),
		Users:       users,
		LastEventAt: s.lastAt,
	}
}

// Watch returns a coalesced change signal: the channel carries at most one
// pending notification no matter how many events landed since the last read.
func (s *Store) Watch() <-chan struct{} {
	return s.notify
}

func (s *Store) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
