// Package service composes the presence connection, the state store, and
// the action gateway into the single façade the console consumes: one read
// model, one action surface, and the push-versus-polling decision.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/platform/config"
	"vigil/internal/presence/conn"
	"vigil/internal/presence/models"
	"vigil/internal/presence/store"
	dErrors "vigil/pkg/domain-errors"
)

const (
	defaultErrorWindow  = 5 * time.Second
	defaultPollInterval = 15 * time.Second
)

// Connection drives the live presence socket.
type Connection interface {
	Connect()
	Disconnect()
	Close()
	SetHandlers(h conn.Handlers)
	State() models.ConnectionState
	Send(msgType string, payload any) bool
}

// ActionClient issues REST commands and on-demand lookups.
//
// Error Contract: implementations return domain errors with:
//   - CodeUnauthorized: the admin session expired.
//   - CodeForbidden: the caller lacks the admin scope.
//   - CodeNotFound: the target user or session does not exist.
//   - CodeInvalidInput, CodeValidation: the request was malformed.
//   - CodeUnavailable, CodeTimeout: the API could not be reached.
type ActionClient interface {
	FetchUsers(ctx context.Context, filter models.Filter) ([]models.PresenceUser, error)
	FetchStats(ctx context.Context) (models.PresenceStats, error)
	FetchTenant(ctx context.Context, tenantID string) (*models.TenantPresence, error)
	FetchSession(ctx context.Context, userID string) (*models.SessionDetail, error)
	SetOffline(ctx context.Context, userID string) (*models.ActionResult, error)
	BulkSetOffline(ctx context.Context, userIDs []string) (*models.BulkResult, error)
	Cleanup(ctx context.Context) (*models.ActionResult, error)
	Refresh(ctx context.Context, filter models.Filter) error
	Pending(userID string) bool
}

// Service is the presence façade. In push mode the store is fed from the
// live socket and REST is used only for lookups and admin actions; with
// push disabled the store is fed by periodic polling. Admin actions and
// refresh failures surface through CurrentError, which clears itself after
// a fixed display window.
type Service struct {
	conn    Connection
	actions ActionClient
	store   *store.Store
	logger  *slog.Logger

	pushEnabled  bool
	pollInterval time.Duration
	errorWindow  time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	filter     models.Filter
	started    bool
	closed     bool
	lastError  string
	errorTimer *time.Timer
	expired    bool
	pollStop   chan struct{}

	expireOnce sync.Once
	onExpired  func()
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConnection attaches the live socket. Required when push is enabled.
func WithConnection(c Connection) Option {
	return func(s *Service) {
		s.conn = c
	}
}

// WithErrorWindow overrides how long a transient error stays visible.
// Non-positive values are ignored.
func WithErrorWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.errorWindow = d
		}
	}
}

// WithSessionExpiredHook registers a callback fired once when the admin
// session is first detected as expired.
func WithSessionExpiredHook(fn func()) Option {
	return func(s *Service) {
		s.onExpired = fn
	}
}

// New builds the façade. st and actions are required; a connection is
// required only when cfg.PushEnabled is set.
func New(st *store.Store, actions ActionClient, cfg config.Client, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "store is required")
	}
	if actions == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "action client is required")
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		actions:      actions,
		store:        st,
		logger:       slog.Default(),
		pushEnabled:  cfg.PushEnabled,
		pollInterval: pollInterval,
		errorWindow:  defaultErrorWindow,
		baseCtx:      ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pushEnabled && s.conn == nil {
		cancel()
		return nil, dErrors.New(dErrors.CodeInvalidInput, "connection is required when push is enabled")
	}
	return s, nil
}

// Start begins feeding the store: connects the socket in push mode, or
// primes the view and starts the poll ticker otherwise. Calling Start on
// a running service is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dErrors.New(dErrors.CodeInvariantViolation, "service is closed")
	}
	if s.started {
		return nil
	}
	s.started = true

	if s.pushEnabled {
		s.conn.SetHandlers(conn.Handlers{
			OnOpen:  s.handleOpen,
			OnEvent: s.handleEvent,
			OnClose: s.handleClose,
		})
		s.conn.Connect()
		return nil
	}

	stop := make(chan struct{})
	s.pollStop = stop
	go s.pollLoop(stop)
	go s.refreshQuiet()
	return nil
}

// Close stops polling, tears down the socket, and cancels in-flight work.
// Idempotent.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
	if s.errorTimer != nil {
		s.errorTimer.Stop()
		s.errorTimer = nil
	}
	s.mu.Unlock()

	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Snapshot returns the current presence view.
func (s *Service) Snapshot() store.Snapshot {
	return s.store.Snapshot()
}

// Watch returns the store's coalesced change channel.
func (s *Service) Watch() <-chan struct{} {
	return s.store.Watch()
}

// ConnectionState reports the socket state; Disconnected when push is off.
func (s *Service) ConnectionState() models.ConnectionState {
	if s.conn == nil {
		return models.StateDisconnected
	}
	return s.conn.State()
}

// CurrentError returns the transient error banner text, or "" once it has
// cleared.
func (s *Service) CurrentError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// SessionExpired reports whether the admin session was rejected by the API.
func (s *Service) SessionExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// Filter returns the active user-list filter.
func (s *Service) Filter() models.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// PushEnabled reports whether the façade runs on the live socket.
func (s *Service) PushEnabled() bool {
	return s.pushEnabled
}

// ActionPending reports whether an admin action for userID is in flight.
func (s *Service) ActionPending(userID string) bool {
	return s.actions.Pending(userID)
}

// SetFilter narrows the user list. In push mode the filter rides the open
// socket so the connection never reopens; when the socket is not open, or
// push is disabled, the change triggers a REST refresh instead.
func (s *Service) SetFilter(ctx context.Context, filter models.Filter) error {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()

	if s.pushEnabled && s.conn != nil && s.conn.Send(models.TypeRequestUsers, filter) {
		return nil
	}
	if err := s.actions.Refresh(ctx, filter); err != nil {
		s.captureError(err)
		return err
	}
	return nil
}

// RefreshNow reloads stats and users with the active filter.
func (s *Service) RefreshNow(ctx context.Context) error {
	if err := s.actions.Refresh(ctx, s.Filter()); err != nil {
		s.captureError(err)
		return err
	}
	return nil
}

// ForceOffline terminates one user's session. The user disappears from the
// view immediately; a failure surfaces in CurrentError and leaves the view
// to converge on the next push.
func (s *Service) ForceOffline(ctx context.Context, userID string) (*models.ActionResult, error) {
	res, err := s.actions.SetOffline(ctx, userID)
	if err != nil {
		s.captureError(err)
		return nil, err
	}
	return res, nil
}

// BulkForceOffline terminates several sessions in one call.
func (s *Service) BulkForceOffline(ctx context.Context, userIDs []string) (*models.BulkResult, error) {
	res, err := s.actions.BulkSetOffline(ctx, userIDs)
	if err != nil {
		s.captureError(err)
		return nil, err
	}
	return res, nil
}

// CleanupStale asks the server to expire idle sessions.
func (s *Service) CleanupStale(ctx context.Context) (*models.ActionResult, error) {
	res, err := s.actions.Cleanup(ctx)
	if err != nil {
		s.captureError(err)
		return nil, err
	}
	return res, nil
}

// SessionDetail loads one user's session for the detail dialog. Errors are
// returned to the caller rather than surfaced in the banner.
func (s *Service) SessionDetail(ctx context.Context, userID string) (*models.SessionDetail, error) {
	detail, err := s.actions.FetchSession(ctx, userID)
	if err != nil {
		s.noteIfExpired(err)
		return nil, err
	}
	return detail, nil
}

// TenantUsers loads the presence group for one tenant.
func (s *Service) TenantUsers(ctx context.Context, tenantID string) (*models.TenantPresence, error) {
	group, err := s.actions.FetchTenant(ctx, tenantID)
	if err != nil {
		s.noteIfExpired(err)
		return nil, err
	}
	return group, nil
}

func (s *Service) handleOpen() {
	s.logger.Info("presence stream connected")
	if f := s.Filter(); !f.IsZero() {
		// Re-assert the filter so a reconnect keeps the narrowed view.
		s.conn.Send(models.TypeRequestUsers, f)
	}
}

func (s *Service) handleEvent(ev models.Event) {
	s.store.Apply(ev)
}

func (s *Service) handleClose(err error) {
	if err != nil && dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		s.noteSessionExpired()
		return
	}
	// Transient drop; the reconnect policy handles it silently.
	s.logger.Debug("presence stream closed", "error", err)
}

func (s *Service) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refreshQuiet()
		case <-stop:
			return
		}
	}
}

func (s *Service) refreshQuiet() {
	if err := s.actions.Refresh(s.baseCtx, s.Filter()); err != nil {
		s.captureError(err)
		s.logger.Warn("poll refresh failed", "error", err)
	}
}

// captureError records err for the banner and rearms the clear timer, so
// the window is measured from the most recent failure.
func (s *Service) captureError(err error) {
	if err == nil {
		return
	}
	s.noteIfExpired(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastError = err.Error()
	if s.errorTimer != nil {
		s.errorTimer.Stop()
	}
	s.errorTimer = time.AfterFunc(s.errorWindow, s.clearError)
}

func (s *Service) clearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
	s.errorTimer = nil
}

func (s *Service) noteIfExpired(err error) {
	if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		s.noteSessionExpired()
	}
}

// noteSessionExpired latches the expired flag, stops feeding the store,
// and fires the hook exactly once. Later 401s are absorbed silently.
func (s *Service) noteSessionExpired() {
	s.expireOnce.Do(func() {
		s.mu.Lock()
		s.expired = true
		if s.pollStop != nil {
			close(s.pollStop)
			s.pollStop = nil
		}
		hook := s.onExpired
		s.mu.Unlock()

		s.logger.Warn("admin session expired, stopping presence sync")
		if s.conn != nil {
			s.conn.Disconnect()
		}
		if hook != nil {
			hook()
		}
	})
}
