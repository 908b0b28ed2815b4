// Package conn manages the lifetime of the presence WebSocket: dialing,
// keepalive probes, fixed-delay reconnects, and visibility-driven pauses.
// It owns the ConnectionState machine and pushes decoded events to a
// handler set; it never interprets payloads beyond envelope decoding.
package conn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/presence/metrics"
	"vigil/internal/presence/models"
	"vigil/internal/presence/visibility"
)

const (
	defaultKeepAliveInterval = 30 * time.Second
	defaultReconnectDelay    = 3 * time.Second
	defaultDialTimeout       = 10 * time.Second
)

// Handlers is the callback set the manager dispatches into. Callbacks run
// on manager goroutines after internal locks are released; tearing the
// connection down via Disconnect is safe there, re-entering Connect is not.
type Handlers struct {
	// OnOpen fires after the transport is established, before any event.
	OnOpen func()
	// OnEvent fires once per decoded inbound event, in arrival order.
	OnEvent func(models.Event)
	// OnClose fires when the transport drops or a dial fails; err carries
	// the transport error. Reconnect scheduling happens before OnClose.
	OnClose func(err error)
}

// Manager drives one presence socket. Connect is safe to call repeatedly;
// while a transport is live or a dial is in flight no second dial starts.
// Disconnect is idempotent and cancels any pending reconnect.
type Manager struct {
	socketURL string
	dialer    Dialer
	gate      visibility.Gate
	logger    *slog.Logger
	metrics   *metrics.Metrics

	keepAliveEvery time.Duration
	reconnectDelay time.Duration
	dialTimeout    time.Duration
	autoReconnect  bool

	retry retryTimer

	mu        sync.Mutex
	state     models.ConnectionState
	desired   bool
	closed    bool
	transport Transport
	gen       uint64
	pingStop  chan struct{}
	handlers  Handlers
	unsubGate func()
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Nil disables recording.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithVisibilityGate sets the host visibility source. A nil gate is ignored;
// the default gate reports always active.
func WithVisibilityGate(gate visibility.Gate) Option {
	return func(m *Manager) {
		if gate != nil {
			m.gate = gate
		}
	}
}

// WithKeepAliveInterval sets the ping cadence. Non-positive values are
// ignored.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.keepAliveEvery = d
		}
	}
}

// WithReconnectDelay sets the fixed delay before a reconnect attempt.
// Non-positive values are ignored.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.reconnectDelay = d
		}
	}
}

// WithAutoReconnect toggles reconnect scheduling after unexpected closes.
func WithAutoReconnect(enabled bool) Option {
	return func(m *Manager) {
		m.autoReconnect = enabled
	}
}

// WithDialTimeout bounds each dial attempt. Non-positive values are ignored.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.dialTimeout = d
		}
	}
}

// New builds a Manager for the socket endpoint derived from baseURL.
// The manager subscribes to the visibility gate immediately; callers must
// Close it to detach.
func New(baseURL string, dialer Dialer, opts ...Option) (*Manager, error) {
	socketURL, err := models.SocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		socketURL:      socketURL,
		dialer:         dialer,
		gate:           visibility.Always{},
		logger:         slog.Default(),
		keepAliveEvery: defaultKeepAliveInterval,
		reconnectDelay: defaultReconnectDelay,
		dialTimeout:    defaultDialTimeout,
		autoReconnect:  true,
		state:          models.StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubGate = m.gate.Subscribe(m.onVisibility)
	return m, nil
}

// Connect marks the connection as desired and dials unless a transport is
// already live, a dial is in flight, or the host is backgrounded.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desired = true
	m.connectLocked()
}

func (m *Manager) connectLocked() {
	if m.closed || !m.desired {
		return
	}
	if m.transport != nil || m.state == models.StateConnecting || m.state == models.StateOpen {
		return
	}
	if !m.gate.Active() {
		return
	}
	m.setStateLocked(models.StateConnecting)
	m.gen++
	go m.dial(m.gen)
}

// Disconnect tears the connection down, stops the keepalive, and cancels
// any pending reconnect. Safe to call from any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.desired = false
	m.gen++
	m.retry.Cancel()
	m.stopKeepAliveLocked()
	t := m.transport
	m.transport = nil
	m.setStateLocked(models.StateDisconnected)
	m.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
}

// Close disconnects and detaches from the visibility gate. The manager is
// unusable afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsub := m.unsubGate
	m.unsubGate = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.Disconnect()
}

// SetHandlers replaces the callback set. The new set applies to every
// subsequent dispatch, including events already queued on the socket.
func (m *Manager) SetHandlers(h Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RetryPending reports whether a reconnect timer is armed.
func (m *Manager) RetryPending() bool {
	return m.retry.Pending()
}

// Send marshals an envelope onto the open transport. Messages sent in any
// other state are dropped, never queued; delivery-critical calls go through
// the REST gateway instead. Returns true only when the write succeeded.
func (m *Manager) Send(msgType string, payload any) bool {
	m.mu.Lock()
	t := m.transport
	open := m.state == models.StateOpen
	m.mu.Unlock()

	if !open || t == nil {
		if m.metrics != nil {
			m.metrics.IncSendsDropped()
		}
		return false
	}
	raw, err := models.EncodeEnvelope(msgType, payload)
	if err != nil {
		m.logger.Error("failed to encode outbound envelope", "type", msgType, "error", err)
		return false
	}
	if err := t.WriteMessage(raw); err != nil {
		m.logger.Warn("presence send failed", "type", msgType, "error", err)
		return false
	}
	return true
}

// dial runs off the lock. gen invalidates the attempt if Disconnect or a
// newer Connect raced it.
func (m *Manager) dial(gen uint64) {
	if m.metrics != nil {
		m.metrics.IncConnects()
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	t, err := m.dialer.Dial(ctx, m.socketURL)
	cancel()

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			_ = t.Close()
		}
		return
	}
	if err != nil {
		m.setStateLocked(models.StateDisconnected)
		m.scheduleRetryLocked()
		h := m.handlers
		m.mu.Unlock()

		m.logger.Warn("presence dial failed", "url", m.socketURL, "error", err)
		if h.OnClose != nil {
			h.OnClose(err)
		}
		return
	}
	m.transport = t
	m.setStateLocked(models.StateOpen)
	m.retry.Cancel()
	stop := make(chan struct{})
	m.pingStop = stop
	go m.keepAlive(stop)
	go m.readLoop(gen, t)
	h := m.handlers
	m.mu.Unlock()

	m.logger.Info("presence connection open", "url", m.socketURL)
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

// readLoop is the single applier of inbound events; decode order is
// delivery order. Malformed frames are dropped, unknown types forwarded
// with KindUnknown.
func (m *Manager) readLoop(gen uint64, t Transport) {
	for {
		raw, err := t.ReadMessage()
		if err != nil {
			m.transportClosed(gen, err)
			return
		}
		env, err := models.DecodeEnvelope(raw)
		if err != nil {
			m.noteDecodeFailure(err)
			continue
		}
		ev, err := models.DecodeEvent(env)
		if err != nil {
			m.noteDecodeFailure(err)
			continue
		}

		m.mu.Lock()
		if m.closed || gen != m.gen {
			m.mu.Unlock()
			return
		}
		h := m.handlers
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.IncEventsReceived(ev.WireType)
		}
		if ev.Kind == models.KindUnknown {
			m.logger.Debug("unknown presence message type", "type", ev.WireType)
		}
		if h.OnEvent != nil {
			h.OnEvent(ev)
		}
	}
}

func (m *Manager) noteDecodeFailure(err error) {
	if m.metrics != nil {
		m.metrics.IncDecodeFailures()
	}
	m.logger.Warn("dropping malformed presence frame", "error", err)
}

// transportClosed handles an unexpected close from the read loop. Closes
// initiated through Disconnect bump gen first and are ignored here.
func (m *Manager) transportClosed(gen uint64, err error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.transport != nil {
		_ = m.transport.Close()
		m.transport = nil
	}
	m.stopKeepAliveLocked()
	m.setStateLocked(models.StateDisconnected)
	m.scheduleRetryLocked()
	h := m.handlers
	m.mu.Unlock()

	m.logger.Info("presence connection closed", "error", err)
	if h.OnClose != nil {
		h.OnClose(err)
	}
}

func (m *Manager) scheduleRetryLocked() {
	if !m.autoReconnect || !m.desired || m.closed || !m.gate.Active() {
		return
	}
	scheduled := m.retry.Schedule(m.reconnectDelay, m.retryFire)
	m.setStateLocked(models.StateReconnecting)
	if scheduled {
		if m.metrics != nil {
			m.metrics.IncReconnectsScheduled()
		}
		m.logger.Debug("reconnect scheduled", "delay", m.reconnectDelay)
	}
}

// retryFire runs on the timer goroutine after the timer cleared itself.
// Conditions are re-checked because Disconnect or a background transition
// may have raced the firing timer.
func (m *Manager) retryFire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == models.StateReconnecting {
		m.setStateLocked(models.StateDisconnected)
	}
	if m.closed || !m.desired || !m.gate.Active() {
		return
	}
	m.connectLocked()
}

// keepAlive pings while the transport is open and the host is foregrounded.
// The gate is consulted at tick time so backgrounding mid-connection pauses
// probes without tearing the transport down.
func (m *Manager) keepAlive(stop chan struct{}) {
	ticker := time.NewTicker(m.keepAliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !m.gate.Active() {
				continue
			}
			if m.Send(models.TypePing, struct{}{}) {
				if m.metrics != nil {
					m.metrics.IncPingsSent()
				}
			}
		case <-stop:
			return
		}
	}
}

// onVisibility applies the pause-only background policy: backgrounding
// cancels a pending reconnect but leaves a live transport open;
// foregrounding dials only when a connection is desired and none exists.
func (m *Manager) onVisibility(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if !active {
		m.retry.Cancel()
		if m.state == models.StateReconnecting {
			m.setStateLocked(models.StateDisconnected)
		}
		return
	}
	m.connectLocked()
}

func (m *Manager) setStateLocked(next models.ConnectionState) {
	if m.state == next {
		return
	}
	m.state = next
	if m.metrics != nil {
		m.metrics.SetConnectionState(int(next))
	}
}

func (m *Manager) stopKeepAliveLocked() {
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
}
