// Package gateway is the REST side of the presence client: administrator
// commands (force offline, bulk sign-out, stale-session cleanup) and
// on-demand lookups against the presence API.
//
// Successful commands apply an optimistic local effect through the same
// reducer events the push stream uses; nothing is rolled back on a later
// failure, convergence relies on the next authoritative push.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vigil/internal/platform/config"
	"vigil/internal/platform/tracing"
	"vigil/internal/presence/device"
	"vigil/internal/presence/metrics"
	"vigil/internal/presence/models"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	vstrings "vigil/pkg/platform/strings"
	"vigil/pkg/platform/validation"
)

const maxResponseBytes = 1 << 20

// EffectStore receives the local effects of gateway calls: optimistic
// removals after admin actions and wholesale replacements after fetches.
type EffectStore interface {
	Apply(ev models.Event)
}

// Client talks to the presence REST surface. All methods are safe for
// concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracing.Tracer
	effects EffectStore

	// onSessionExpired fires on every 401; the caller deduplicates.
	onSessionExpired func()

	pendingMu sync.RWMutex
	pending   map[string]struct{}
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Nil disables recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithEffects attaches the store that receives optimistic and refresh
// effects. Without it the gateway only returns payloads.
func WithEffects(effects EffectStore) Option {
	return func(c *Client) {
		c.effects = effects
	}
}

// WithTracer sets the tracer. A nil tracer is ignored.
func WithTracer(t tracing.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithSessionExpiredHook registers a callback fired whenever the API
// answers 401. The hook runs on the calling goroutine.
func WithSessionExpiredHook(fn func()) Option {
	return func(c *Client) {
		c.onSessionExpired = fn
	}
}

// New builds a Client against cfg.BaseURL.
func New(cfg config.Client, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "base url is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
		tracer:  tracing.NewNoop(),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchUsers loads the filtered user list and replaces the local view.
func (c *Client) FetchUsers(ctx context.Context, filter models.Filter) (users []models.PresenceUser, err error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanFetchUsers,
		tracing.String(tracing.AttrTenantID, filter.TenantID),
		tracing.Int64(tracing.AttrFilterLimit, int64(filter.Limit)),
		tracing.Int64(tracing.AttrFilterOffset, int64(filter.Offset)),
	)
	defer func() { span.End(err) }()

	if err = c.getJSON(ctx, "/users", filter.Values(), &users); err != nil {
		return nil, err
	}
	c.applyEffect(models.UsersReplaceEvent(users))
	return users, nil
}

// FetchStats loads the aggregate stats and replaces the local view.
func (c *Client) FetchStats(ctx context.Context) (stats models.PresenceStats, err error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanFetchStats)
	defer func() { span.End(err) }()

	if err = c.getJSON(ctx, "/stats", nil, &stats); err != nil {
		return models.PresenceStats{}, err
	}
	c.applyEffect(models.StatsReplaceEvent(stats))
	return stats, nil
}

// FetchTenant loads the presence group for one tenant. Lookup only; the
// local view is untouched.
func (c *Client) FetchTenant(ctx context.Context, tenantID string) (group *models.TenantPresence, err error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	ctx, span := c.tracer.Start(ctx, tracing.SpanFetchTenant,
		tracing.String(tracing.AttrTenantID, tenantID))
	defer func() { span.End(err) }()

	var out models.TenantPresence
	if err = c.getJSON(ctx, "/tenants/"+url.PathEscape(tenantID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchSession loads one user's session detail. When the server leaves the
// device fields empty they are derived locally from the user agent.
func (c *Client) FetchSession(ctx context.Context, userID string) (detail *models.SessionDetail, err error) {
	if strings.TrimSpace(userID) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	ctx, span := c.tracer.Start(ctx, tracing.SpanFetchSession,
		tracing.String(tracing.AttrUserHash, tracing.HashUserID(userID)))
	defer func() { span.End(err) }()

	var out models.SessionDetail
	if err = c.getJSON(ctx, "/users/"+url.PathEscape(userID)+"/session", nil, &out); err != nil {
		return nil, err
	}
	if out.UserAgent != "" {
		if out.DeviceDisplayName == "" {
			out.DeviceDisplayName = device.ParseUserAgent(out.UserAgent)
		}
		if out.DeviceKind == "" {
			out.DeviceKind = string(device.Classify(out.UserAgent))
		}
	}
	return &out, nil
}

// SetOffline forces one user's session offline. On success the user is
// removed from the local view immediately instead of waiting for the next
// push.
func (c *Client) SetOffline(ctx context.Context, userID string) (res *models.ActionResult, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	ctx, span := c.tracer.Start(ctx, tracing.SpanSetOffline,
		tracing.String(tracing.AttrUserHash, tracing.HashUserID(userID)))
	start := time.Now()
	defer func() {
		span.End(err)
		c.observe("set_offline", start, err)
	}()

	c.markPending(userID)
	defer c.clearPending(userID)

	var out models.ActionResult
	if err = c.postJSON(ctx, "/users/"+url.PathEscape(userID)+"/offline", nil, &out); err != nil {
		c.logger.Warn("set offline failed", "user_id", userID, "error", err)
		return nil, err
	}
	c.applyEffect(models.UserRemovedEvent(userID))
	span.AddEvent(tracing.EventOptimisticApplied)
	return &out, nil
}

type bulkRequest struct {
	UserIDs []string `json:"user_ids"`
}

// BulkSetOffline forces several sessions offline in one request. IDs are
// trimmed and deduplicated first; on success every submitted ID is removed
// from the local view, including ones the server reported as failed. The
// next authoritative push restores those.
func (c *Client) BulkSetOffline(ctx context.Context, userIDs []string) (res *models.BulkResult, err error) {
	ids := vstrings.DedupeAndTrim(userIDs)
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one user id is required")
	}
	if err = validation.CheckSliceCount("user_ids", len(ids), validation.MaxBulkUsers); err != nil {
		return nil, err
	}
	ctx, span := c.tracer.Start(ctx, tracing.SpanBulkOffline,
		tracing.Int64(tracing.AttrBulkRequested, int64(len(ids))))
	start := time.Now()
	defer func() {
		span.End(err)
		c.observe("bulk_offline", start, err)
	}()

	for _, id := range ids {
		c.markPending(id)
	}
	defer func() {
		for _, id := range ids {
			c.clearPending(id)
		}
	}()

	var out models.BulkResult
	if err = c.postJSON(ctx, "/bulk/offline", bulkRequest{UserIDs: ids}, &out); err != nil {
		c.logger.Warn("bulk offline failed", "count", len(ids), "error", err)
		return nil, err
	}
	span.SetAttributes(
		tracing.Int64(tracing.AttrBulkUpdated, int64(out.UpdatedCount)),
		tracing.Int64(tracing.AttrBulkFailed, int64(out.FailedCount)),
	)
	for _, id := range ids {
		c.applyEffect(models.UserRemovedEvent(id))
	}
	span.AddEvent(tracing.EventOptimisticApplied)
	return &out, nil
}

// Cleanup asks the server to expire stale sessions. No local effect; the
// caller refreshes or waits for the next push to see the result.
func (c *Client) Cleanup(ctx context.Context) (res *models.ActionResult, err error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanCleanup)
	start := time.Now()
	defer func() {
		span.End(err)
		c.observe("cleanup", start, err)
	}()

	var out models.ActionResult
	if err = c.postJSON(ctx, "/cleanup", nil, &out); err != nil {
		c.logger.Warn("cleanup failed", "error", err)
		return nil, err
	}
	return &out, nil
}

// Refresh reloads stats and the filtered user list concurrently. Used by
// the polling fallback and by explicit refresh requests.
func (c *Client) Refresh(ctx context.Context, filter models.Filter) (err error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanRefresh)
	defer func() { span.End(err) }()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, e := c.FetchStats(ctx)
		return e
	})
	g.Go(func() error {
		_, e := c.FetchUsers(ctx, filter)
		return e
	})
	if err = g.Wait(); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.IncPollRefreshes()
	}
	return nil
}

// Pending reports whether an admin action for userID is still in flight.
// The UI uses it to disable per-row action buttons.
func (c *Client) Pending(userID string) bool {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	_, ok := c.pending[userID]
	return ok
}

// PendingCount returns the number of in-flight admin actions.
func (c *Client) PendingCount() int {
	c.pendingMu.RLock()
	defer c.pendingMu.RUnlock()
	return len(c.pending)
}

func (c *Client) markPending(userID string) {
	c.pendingMu.Lock()
	c.pending[userID] = struct{}{}
	c.pendingMu.Unlock()
}

func (c *Client) clearPending(userID string) {
	c.pendingMu.Lock()
	delete(c.pending, userID)
	c.pendingMu.Unlock()
}

func (c *Client) applyEffect(ev models.Event) {
	if c.effects != nil {
		c.effects.Apply(ev)
	}
}

func (c *Client) observe(kind string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.IncAction(kind, outcome)
	c.metrics.ObserveActionLatency(time.Since(start).Seconds())
}

// do issues one request and returns the status plus the raw body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(raw)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, dErrors.Wrap(err, dErrors.CodeTimeout, "presence api request cancelled")
		}
		return 0, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "presence api unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read response body")
	}
	return resp.StatusCode, raw, nil
}

// getJSON handles read endpoints, which wrap payloads in a success
// envelope.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	status, raw, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := c.checkStatus(status, raw); err != nil {
		return err
	}
	var env httputil.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "malformed presence api response")
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request failed"
		}
		return dErrors.New(dErrors.CodeInternal, msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "malformed presence api payload")
	}
	return nil
}

// postJSON handles action endpoints, which answer with top-level result
// shapes. A 2xx with success:false is treated the same as a failure
// status.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	status, raw, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	if err := c.checkStatus(status, raw); err != nil {
		return err
	}
	var probe struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "malformed presence api response")
	}
	if !probe.Success {
		msg := probe.Error
		if msg == "" {
			msg = probe.Message
		}
		if msg == "" {
			msg = "action failed"
		}
		return dErrors.New(dErrors.CodeInternal, msg)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "malformed presence api payload")
	}
	return nil
}

func (c *Client) checkStatus(status int, raw []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusUnauthorized && c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	msg := serverMessage(raw)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return dErrors.New(codeForStatus(status), msg)
}

// serverMessage pulls the error or message field out of either response
// shape.
func serverMessage(raw []byte) string {
	var probe struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	if probe.Error != "" {
		return probe.Error
	}
	return probe.Message
}

func codeForStatus(status int) dErrors.Code {
	switch status {
	case http.StatusBadRequest:
		return dErrors.CodeBadRequest
	case http.StatusUnauthorized:
		return dErrors.CodeUnauthorized
	case http.StatusForbidden:
		return dErrors.CodeForbidden
	case http.StatusNotFound:
		return dErrors.CodeNotFound
	case http.StatusConflict:
		return dErrors.CodeConflict
	case http.StatusServiceUnavailable:
		return dErrors.CodeUnavailable
	case http.StatusGatewayTimeout:
		return dErrors.CodeTimeout
	default:
		return dErrors.CodeInternal
	}
}
