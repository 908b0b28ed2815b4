package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/presence/models"
	"vigil/internal/sentinel"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/validation"
)

// recentActivityWindow bounds the "recently active" stat counter.
const recentActivityWindow = 5 * time.Minute

// Wire payload shapes emitted by the simulator. These mirror what the
// console client decodes on the other end of the socket.
type userRef struct {
	UserID string `json:"user_id"`
}

type activityEvent struct {
	UserID       string    `json:"user_id"`
	LastActivity time.Time `json:"last_activity"`
}

type usersEvent struct {
	Users []models.PresenceUser `json:"users"`
}

// Simulator is the presence backend behind the REST and websocket
// surface. It owns stats computation, admin actions and the event
// broadcasts they trigger.
type Simulator struct {
	store   Store
	hub     *Hub
	log     *slog.Logger
	metrics *Metrics

	idleTimeout time.Duration
	retention   time.Duration
	now         func() time.Time

	// Peak online tracking, reset at UTC midnight.
	peakMu     sync.Mutex
	peakDay    time.Time
	peakOnline int
}

// Option configures optional Simulator behavior.
type Option func(*Simulator)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// WithClock overrides the time source. Tests use this to pin "today".
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithIdleTimeout sets how long a session may be silent before the sweep
// flips it offline.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithRetention sets how long offline records are kept before deletion.
func WithRetention(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.retention = d
		}
	}
}

// New constructs the simulator service.
func New(store Store, hub *Hub, log *slog.Logger, opts ...Option) *Simulator {
	s := &Simulator{
		store:       store,
		hub:         hub,
		log:         log,
		idleTimeout: 10 * time.Minute,
		retention:   defaultRetention,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats computes the aggregate presence counters from the current
// population. Peak online is tracked across calls and resets at UTC
// midnight.
func (s *Simulator) Stats(ctx context.Context) (models.PresenceStats, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return models.PresenceStats{}, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}

	now := s.now()
	stats := models.PresenceStats{OnlineByTenant: make(map[string]int)}
	var sessionMinutes float64

	for _, rec := range records {
		if !rec.IsOnline {
			stats.TotalOffline++
			continue
		}
		stats.TotalOnline++
		stats.OnlineByTenant[rec.TenantName]++
		if now.Sub(rec.LastActivity) <= recentActivityWindow {
			stats.RecentActivityCount++
		}
		sessionMinutes += now.Sub(rec.ConnectedAt).Minutes()
	}
	if stats.TotalOnline > 0 {
		stats.AverageSessionMinutes = sessionMinutes / float64(stats.TotalOnline)
	}
	stats.PeakOnlineToday = s.trackPeak(now, stats.TotalOnline)

	if s.metrics != nil {
		s.metrics.SetOnlineSessions(stats.TotalOnline)
	}
	return stats, nil
}

func (s *Simulator) trackPeak(now time.Time, online int) int {
	day := now.UTC().Truncate(24 * time.Hour)

	s.peakMu.Lock()
	defer s.peakMu.Unlock()
	if !day.Equal(s.peakDay) {
		s.peakDay = day
		s.peakOnline = 0
	}
	if online > s.peakOnline {
		s.peakOnline = online
	}
	return s.peakOnline
}

// Users returns the online user list narrowed by the filter and paged.
// Results are ordered by user id so pages are stable between calls.
func (s *Simulator) Users(ctx context.Context, filter models.Filter) ([]models.PresenceUser, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}

	now := s.now()
	users := make([]models.PresenceUser, 0, len(records))
	for _, rec := range records {
		if !rec.IsOnline {
			continue
		}
		if filter.TenantID != "" && rec.TenantID != filter.TenantID {
			continue
		}
		users = append(users, rec.User(now))
	}

	limit, offset := validation.ClampPage(filter.Limit, filter.Offset)
	if offset >= len(users) {
		return []models.PresenceUser{}, nil
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], nil
}

// TenantPresence returns the online users of one tenant. A tenant with no
// records at all is not found; a tenant whose users are all offline
// returns an empty group.
func (s *Simulator) TenantPresence(ctx context.Context, tenantID string) (models.TenantPresence, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return models.TenantPresence{}, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}

	now := s.now()
	tp := models.TenantPresence{Users: []models.PresenceUser{}}
	found := false
	for _, rec := range records {
		if rec.TenantID != tenantID {
			continue
		}
		found = true
		tp.TenantID = rec.TenantID
		tp.TenantName = rec.TenantName
		if !rec.IsOnline {
			continue
		}
		tp.OnlineCount++
		tp.Users = append(tp.Users, rec.User(now))
	}
	if !found {
		return models.TenantPresence{}, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return tp, nil
}

// SessionDetail returns the live session of one user. Offline users have
// no active session and report not found.
func (s *Simulator) SessionDetail(ctx context.Context, userID string) (models.SessionDetail, error) {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return models.SessionDetail{}, s.translateStoreErr(err, "load session")
	}
	if !rec.IsOnline {
		return models.SessionDetail{}, dErrors.New(dErrors.CodeNotFound, "no active session for user")
	}
	return rec.Detail(s.now()), nil
}

// ForceOffline ends one user's session. Already-offline users succeed so
// retried actions stay idempotent. Side effects: a user_offline broadcast
// and a stats refresh.
func (s *Simulator) ForceOffline(ctx context.Context, userID string) (models.ActionResult, error) {
	if userID == "" {
		return models.ActionResult{}, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if err := validation.CheckStringLength("user_id", userID, validation.MaxUserIDLength); err != nil {
		return models.ActionResult{}, err
	}

	if err := s.store.SetOnline(ctx, userID, false, s.now()); err != nil {
		return models.ActionResult{}, s.translateStoreErr(err, "set user offline")
	}

	if s.metrics != nil {
		s.metrics.IncForcedOffline()
	}
	s.hub.Broadcast(models.TypeUserOffline, userRef{UserID: userID})
	s.BroadcastStats(ctx)

	s.log.InfoContext(ctx, "user forced offline", "user_id", userID)
	return models.ActionResult{Success: true, Message: fmt.Sprintf("user %s set offline", userID)}, nil
}

// BulkForceOffline ends sessions for many users, continuing past per-user
// failures. The ids are assumed deduplicated by the caller. The result is
// a success when at least one user was updated or none failed.
func (s *Simulator) BulkForceOffline(ctx context.Context, userIDs []string) (models.BulkResult, error) {
	var result models.BulkResult
	now := s.now()

	for _, id := range userIDs {
		if err := s.store.SetOnline(ctx, id, false, now); err != nil {
			result.FailedCount++
			if errors.Is(err, sentinel.ErrNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: user not found", id))
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			}
			continue
		}
		result.UpdatedCount++
		if s.metrics != nil {
			s.metrics.IncForcedOffline()
		}
		s.hub.Broadcast(models.TypeUserOffline, userRef{UserID: id})
	}

	result.Success = result.UpdatedCount > 0 || result.FailedCount == 0
	result.Message = fmt.Sprintf("%d users set offline, %d failed", result.UpdatedCount, result.FailedCount)

	if result.UpdatedCount > 0 {
		s.BroadcastStats(ctx)
	}
	s.log.InfoContext(ctx, "bulk offline complete",
		"updated", result.UpdatedCount,
		"failed", result.FailedCount)
	return result, nil
}

// GoOnline brings a user online and announces the full row. The activity
// generator drives this; it is not exposed over REST.
func (s *Simulator) GoOnline(ctx context.Context, userID string) error {
	if err := s.store.SetOnline(ctx, userID, true, s.now()); err != nil {
		return s.translateStoreErr(err, "set user online")
	}
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return s.translateStoreErr(err, "load session")
	}
	s.hub.Broadcast(models.TypeUserOnline, rec.User(s.now()))
	s.BroadcastStats(ctx)
	return nil
}

// GoOffline takes a user offline and announces the departure.
func (s *Simulator) GoOffline(ctx context.Context, userID string) error {
	if err := s.store.SetOnline(ctx, userID, false, s.now()); err != nil {
		return s.translateStoreErr(err, "set user offline")
	}
	s.hub.Broadcast(models.TypeUserOffline, userRef{UserID: userID})
	s.BroadcastStats(ctx)
	return nil
}

// TouchActivity bumps a user's activity timestamp and announces it.
func (s *Simulator) TouchActivity(ctx context.Context, userID string) error {
	at := s.now()
	if err := s.store.Touch(ctx, userID, at); err != nil {
		return s.translateStoreErr(err, "touch activity")
	}
	s.hub.Broadcast(models.TypeActivityUpdate, activityEvent{UserID: userID, LastActivity: at})
	return nil
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	MarkedOffline int
	Deleted       int
}

// RunSweep flips idle sessions offline and prunes offline records past
// retention. Each phase runs even if the other fails.
func (s *Simulator) RunSweep(ctx context.Context) (SweepResult, error) {
	now := s.now()

	marked, markErr := s.store.MarkIdleOffline(ctx, now.Add(-s.idleTimeout))
	for _, id := range marked {
		s.hub.Broadcast(models.TypeUserOffline, userRef{UserID: id})
	}
	if s.metrics != nil && len(marked) > 0 {
		s.metrics.AddSweepMarked(len(marked))
	}

	deleted, delErr := s.store.DeleteOffline(ctx, now.Add(-s.retention))
	if s.metrics != nil && deleted > 0 {
		s.metrics.AddSweepDeleted(deleted)
	}

	if len(marked) > 0 {
		s.BroadcastStats(ctx)
	}
	res := SweepResult{MarkedOffline: len(marked), Deleted: deleted}
	if res.MarkedOffline > 0 || res.Deleted > 0 {
		s.log.InfoContext(ctx, "sweep complete",
			"marked_offline", res.MarkedOffline,
			"deleted", res.Deleted)
	}
	return res, errors.Join(markErr, delErr)
}

// BroadcastStats pushes a fresh stats_update to every client.
func (s *Simulator) BroadcastStats(ctx context.Context) {
	stats, err := s.Stats(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to compute stats for broadcast", "error", err)
		return
	}
	s.hub.Broadcast(models.TypeStatsUpdate, stats)
}

// BroadcastUsers pushes each client its filtered view of the user list.
func (s *Simulator) BroadcastUsers(ctx context.Context) {
	s.hub.FanOut(models.TypeUsersUpdate, func(f models.Filter) (any, error) {
		users, err := s.Users(ctx, f)
		if err != nil {
			return nil, err
		}
		return usersEvent{Users: users}, nil
	})
}

// translateStoreErr maps store sentinels onto domain errors exactly once.
func (s *Simulator) translateStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, op)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op)
	}
}
