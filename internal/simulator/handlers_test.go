package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/platform/health"
	"vigil/internal/presence/models"
	"vigil/internal/token"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/secrets"
)

const (
	testClientID     = "admin-console"
	testClientSecret = "test-console-secret"
)

type apiFixture struct {
	srv        *httptest.Server
	sim        *Simulator
	store      *MemoryStore
	hub        *Hub
	tokens     *token.Service
	readToken  string
	adminToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := discardLogger()

	store := NewMemory()
	hub := NewHub(log, nil)
	sim := New(store, hub, log, WithClock(func() time.Time { return testNow }))

	tokens := token.NewService("test-signing-key", "vigil-sim", time.Hour)
	validator := token.NewValidatorAdapter(tokens)

	secretHash, err := secrets.Hash(testClientSecret)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Handler:   NewHandler(sim, log),
		Auth:      NewAuthHandler(tokens, testClientID, secretHash, time.Hour, log),
		WS:        NewWSHandler(sim, hub, validator, token.ScopePresenceRead, log),
		Validator: validator,
		Health:    health.New("test"),
		Logger:    log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	readToken, err := tokens.Generate("admin-1", []string{token.ScopePresenceRead})
	require.NoError(t, err)
	adminToken, err := tokens.Generate("admin-1", []string{token.ScopePresenceRead, token.ScopePresenceAdmin})
	require.NoError(t, err)

	return &apiFixture{
		srv:        srv,
		sim:        sim,
		store:      store,
		hub:        hub,
		tokens:     tokens,
		readToken:  readToken,
		adminToken: adminToken,
	}
}

func (f *apiFixture) request(t *testing.T, method, path, bearer string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func decodeEnvelope(t *testing.T, raw []byte, out any) httputil.Envelope {
	t.Helper()
	var env httputil.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	if out != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func TestAPI_Users(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, onlineRecord("u-1", "t-acme", "Acme Corp", testNow.Add(-time.Hour), testNow)))
	require.NoError(t, f.store.Put(ctx, onlineRecord("u-2", "t-globex", "Globex", testNow.Add(-time.Hour), testNow)))
	require.NoError(t, f.store.Put(ctx, newRecord("u-3", "t-acme", "Acme Corp", false, testNow)))

	t.Run("lists online users", func(t *testing.T) {
		resp, raw := f.request(t, http.MethodGet, "/api/online-users/users", f.readToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var users []models.PresenceUser
		env := decodeEnvelope(t, raw, &users)
		assert.True(t, env.Success)
		require.Len(t, users, 2)
		assert.Equal(t, "u-1", users[0].UserID)
	})

	t.Run("tenant filter", func(t *testing.T) {
		resp, raw := f.request(t, http.MethodGet, "/api/online-users/users?tenant_id=t-globex", f.readToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var users []models.PresenceUser
		decodeEnvelope(t, raw, &users)
		require.Len(t, users, 1)
		assert.Equal(t, "u-2", users[0].UserID)
	})

	t.Run("rejects missing token", func(t *testing.T) {
		resp, raw := f.request(t, http.MethodGet, "/api/online-users/users", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		env := decodeEnvelope(t, raw, nil)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		resp, _ := f.request(t, http.MethodGet, "/api/online-users/users", "not-a-jwt", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPI_Stats(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, onlineRecord("u-1", "t-acme", "Acme Corp", testNow.Add(-time.Hour), testNow)))
	require.NoError(t, f.store.Put(ctx, newRecord("u-2", "t-acme", "Acme Corp", false, testNow)))

	resp, raw := f.request(t, http.MethodGet, "/api/online-users/stats", f.readToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.PresenceStats
	env := decodeEnvelope(t, raw, &stats)
	assert.True(t, env.Success)
	assert.Equal(t, 1, stats.TotalOnline)
	assert.Equal(t, 1, stats.TotalOffline)
	assert.Equal(t, 1, stats.OnlineByTenant["Acme Corp"])
}

func TestAPI_Tenant(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, onlineRecord("u-1", "t-acme", "Acme Corp", testNow.Add(-time.Hour), testNow)))

	resp, raw := f.request(t, http.MethodGet, "/api/online-users/tenants/t-acme", f.readToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var group models.TenantPresence
	decodeEnvelope(t, raw, &group)
	assert.Equal(t, "Acme Corp", group.TenantName)
	assert.Equal(t, 1, group.OnlineCount)

	resp, raw = f.request(t, http.MethodGet, "/api/online-users/tenants/t-ghost", f.readToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decodeEnvelope(t, raw, nil)
	assert.False(t, env.Success)
}

func TestAPI_Session(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	rec := onlineRecord("u-1", "t-acme", "Acme Corp", testNow.Add(-30*time.Minute), testNow)
	rec.UserAgent = "Mozilla/5.0 test"
	require.NoError(t, f.store.Put(ctx, rec))
	require.NoError(t, f.store.Put(ctx, newRecord("u-2", "t-acme", "Acme Corp", false, testNow)))

	resp, raw := f.request(t, http.MethodGet, "/api/online-users/users/u-1/session", f.readToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail models.SessionDetail
	decodeEnvelope(t, raw, &detail)
	assert.Equal(t, "sess-u-1", detail.SessionID)
	assert.InDelta(t, 30.0, detail.DurationMinutes, 0.01)

	resp, _ = f.request(t, http.MethodGet, "/api/online-users/users/u-2/session", f.readToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "offline users have no session")
}

func TestAPI_ForceOffline(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, onlineRecord("u-1", "t-acme", "Acme Corp", testNow.Add(-time.Hour), testNow)))

	t.Run("requires admin scope", func(t *testing.T) {
		resp, raw := f.request(t, http.MethodPost, "/api/online-users/users/u-1/offline", f.readToken, nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		env := decodeEnvelope(t, raw, nil)
		assert.False(t, env.Success)
	})

	t.Run("forces the user offline", func(t *testing.T) {
		resp, raw := f.request(t, http.MethodPost, "/api/online-users/users/u-1/offline", f.adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Action endpoints answer with the result at the top level.
		var res models.ActionResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "u-1")

		rec, err := f.store.Get(ctx, "u-1")
		require.NoError(t, err)
		assert.False(t, rec.IsOnline)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp, raw := f.request(t, http.MethodPost, "/api/online-users/users/ghost/offline", f.adminToken, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		env := decodeEnvelope(t, raw, nil)
		assert.False(t, env.Success)
	})
}

func TestAPI_BulkOffline(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, onlineRecord("u-1", "t-acme", "Acme Corp", testNow.Add(-time.Hour), testNow)))
	require.NoError(t, f.store.Put(ctx, onlineRecord("u-2", "t-acme", "Acme Corp", testNow.Add(-time.Hour), testNow)))

	t.Run("dedupes and reports per-id failures", func(t *testing.T) {
		body := map[string][]string{"user_ids": {"u-1", "u-1", " u-2 ", "ghost"}}
		resp, raw := f.request(t, http.MethodPost, "/api/online-users/bulk/offline", f.adminToken, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var res models.BulkResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.True(t, res.Success)
		assert.Equal(t, 2, res.UpdatedCount)
		assert.Equal(t, 1, res.FailedCount)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "ghost")
	})

	t.Run("rejects an empty id list", func(t *testing.T) {
		body := map[string][]string{"user_ids": {"  ", ""}}
		resp, _ := f.request(t, http.MethodPost, "/api/online-users/bulk/offline", f.adminToken, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects a non-json content type", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/online-users/bulk/offline", bytes.NewBufferString("user_ids=u-1"))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+f.adminToken)
		req.Header.Set("Content-Type", "text/plain")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})
}

func TestAPI_Cleanup(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, onlineRecord("u-idle", "t-acme", "Acme Corp", testNow.Add(-time.Hour), testNow.Add(-20*time.Minute))))

	resp, raw := f.request(t, http.MethodPost, "/api/online-users/cleanup", f.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res models.ActionResult
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "idle sessions expired")

	rec, err := f.store.Get(ctx, "u-idle")
	require.NoError(t, err)
	assert.False(t, rec.IsOnline)
}

func TestAPI_TokenExchange(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("valid credentials mint a working token", func(t *testing.T) {
		body := map[string]string{"client_id": testClientID, "client_secret": testClientSecret}
		resp, raw := f.request(t, http.MethodPost, "/auth/token", "", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var tr struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int64  `json:"expires_in"`
			Scope       string `json:"scope"`
		}
		require.NoError(t, json.Unmarshal(raw, &tr))
		assert.NotEmpty(t, tr.AccessToken)
		assert.Equal(t, "Bearer", tr.TokenType)
		assert.Equal(t, int64(3600), tr.ExpiresIn)
		assert.Contains(t, tr.Scope, token.ScopePresenceRead)
		assert.Contains(t, tr.Scope, token.ScopePresenceAdmin)

		// The minted token must work against the API.
		apiResp, _ := f.request(t, http.MethodGet, "/api/online-users/stats", tr.AccessToken, nil)
		assert.Equal(t, http.StatusOK, apiResp.StatusCode)
	})

	t.Run("wrong secret", func(t *testing.T) {
		body := map[string]string{"client_id": testClientID, "client_secret": "wrong"}
		resp, raw := f.request(t, http.MethodPost, "/auth/token", "", body)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		env := decodeEnvelope(t, raw, nil)
		assert.False(t, env.Success)
	})

	t.Run("unknown client", func(t *testing.T) {
		body := map[string]string{"client_id": "someone-else", "client_secret": testClientSecret}
		resp, _ := f.request(t, http.MethodPost, "/auth/token", "", body)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.request(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := f.request(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, raw)
}
