// Package e2e runs the full presence stack in one process: the simulator
// behind a real listener, and the console façade talking to it over REST
// and a live websocket. The scenarios are the ones an admin console runs
// through in a normal day.
package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vigil/internal/platform/config"
	"vigil/internal/platform/health"
	"vigil/internal/presence/conn"
	"vigil/internal/presence/gateway"
	"vigil/internal/presence/models"
	"vigil/internal/presence/service"
	clientstore "vigil/internal/presence/store"
	"vigil/internal/presence/visibility"
	"vigil/internal/simulator"
	"vigil/internal/token"
	"vigil/pkg/secrets"
)

const (
	e2eClientID   = "admin-console"
	e2eSecret     = "e2e-console-secret"
	e2eSigningKey = "e2e-signing-key"
	e2eIssuer     = "vigil-sim"

	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backend is the simulator stack behind a real HTTP listener.
type backend struct {
	srv    *httptest.Server
	store  *simulator.MemoryStore
	sim    *simulator.Simulator
	hub    *simulator.Hub
	tokens *token.Service
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	log := discardLogger()

	store := simulator.NewMemory()
	hub := simulator.NewHub(log, nil)
	sim := simulator.New(store, hub, log)

	tokens := token.NewService(e2eSigningKey, e2eIssuer, time.Hour)
	validator := token.NewValidatorAdapter(tokens)

	hash, err := secrets.Hash(e2eSecret)
	require.NoError(t, err)

	router := simulator.NewRouter(simulator.RouterConfig{
		Handler:   simulator.NewHandler(sim, log),
		Auth:      simulator.NewAuthHandler(tokens, e2eClientID, hash, time.Hour, log),
		WS:        simulator.NewWSHandler(sim, hub, validator, token.ScopePresenceRead, log),
		Validator: validator,
		Health:    health.New("e2e"),
		Logger:    log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &backend{srv: srv, store: store, sim: sim, hub: hub, tokens: tokens}
}

func (b *backend) apiBase() string {
	return b.srv.URL + "/api/online-users"
}

func (b *backend) mintToken(t *testing.T) string {
	t.Helper()
	tok, err := b.tokens.Generate("e2e-admin",
		[]string{token.ScopePresenceRead, token.ScopePresenceAdmin})
	require.NoError(t, err)
	return tok
}

// expiredToken mints a correctly signed token that is already past its
// expiry, so the server rejects it exactly like a lapsed admin session.
func (b *backend) expiredToken(t *testing.T) string {
	t.Helper()
	stale := token.NewService(e2eSigningKey, e2eIssuer, -time.Hour)
	tok, err := stale.Generate("e2e-admin", []string{token.ScopePresenceRead})
	require.NoError(t, err)
	return tok
}

func (b *backend) putUser(t *testing.T, userID, tenantID, tenantName string, online bool, idle time.Duration) {
	t.Helper()
	now := time.Now()
	rec := &simulator.SessionRecord{
		UserID:       userID,
		TenantID:     tenantID,
		TenantName:   tenantName,
		Email:        userID + "@" + tenantID + ".example",
		FullName:     "User " + userID,
		IsOnline:     online,
		LastActivity: now.Add(-idle),
		UserAgent:    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		IPAddress:    "203.0.113.10",
	}
	if online {
		rec.SessionID = "sess-" + userID
		rec.ConnectedAt = now.Add(-idle - 30*time.Minute)
	}
	require.NoError(t, b.store.Put(context.Background(), rec))
}

func (b *backend) putOnline(t *testing.T, userID, tenantID, tenantName string) {
	b.putUser(t, userID, tenantID, tenantName, true, 0)
}

// console is the client side of the stack: store, gateway, socket, façade.
type console struct {
	svc *service.Service
	st  *clientstore.Store
	mgr *conn.Manager
	vis *visibility.Switch
}

type consoleParams struct {
	cfg     config.Client
	svcOpts []service.Option
}

type consoleOption func(*consoleParams)

// withPolling disables the socket and polls REST at the given cadence.
func withPolling(interval time.Duration) consoleOption {
	return func(p *consoleParams) {
		p.cfg.PushEnabled = false
		p.cfg.PollInterval = interval
	}
}

func withExpiredHook(fn func()) consoleOption {
	return func(p *consoleParams) {
		p.svcOpts = append(p.svcOpts, service.WithSessionExpiredHook(fn))
	}
}

func newConsole(t *testing.T, b *backend, bearer string, opts ...consoleOption) *console {
	t.Helper()
	log := discardLogger()

	p := consoleParams{
		cfg: config.Client{
			BaseURL:           b.apiBase(),
			Token:             bearer,
			PushEnabled:       true,
			KeepAliveInterval: time.Minute,
			ReconnectDelay:    100 * time.Millisecond,
			PollInterval:      time.Minute,
			RequestTimeout:    5 * time.Second,
		},
		svcOpts: []service.Option{service.WithLogger(log)},
	}
	for _, opt := range opts {
		opt(&p)
	}

	st := clientstore.New(clientstore.WithLogger(log))
	gw, err := gateway.New(p.cfg, gateway.WithLogger(log), gateway.WithEffects(st))
	require.NoError(t, err)

	vis := visibility.NewSwitch(true)

	var mgr *conn.Manager
	if p.cfg.PushEnabled {
		dialer := &conn.WSDialer{Header: http.Header{"Authorization": {"Bearer " + bearer}}}
		mgr, err = conn.New(p.cfg.BaseURL, dialer,
			conn.WithLogger(log),
			conn.WithVisibilityGate(vis),
			conn.WithKeepAliveInterval(p.cfg.KeepAliveInterval),
			conn.WithReconnectDelay(p.cfg.ReconnectDelay),
		)
		require.NoError(t, err)
		p.svcOpts = append(p.svcOpts, service.WithConnection(mgr))
	}

	svc, err := service.New(st, gw, p.cfg, p.svcOpts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return &console{svc: svc, st: st, mgr: mgr, vis: vis}
}

func (c *console) waitState(t *testing.T, want models.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.svc.ConnectionState() == want },
		waitFor, tick, "connection never reached %s", want)
}

// waitDrop blocks until the client has observed a transport loss.
func (c *console) waitDrop(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return c.svc.ConnectionState() != models.StateOpen },
		waitFor, tick, "client never observed the drop")
}

func onlineIDs(snap clientstore.Snapshot) []string {
	ids := make([]string, 0, len(snap.Users))
	for _, u := range snap.Users {
		ids = append(ids, u.UserID)
	}
	return ids
}
