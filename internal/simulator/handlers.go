package simulator

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil/internal/presence/models"
	"vigil/internal/token"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	vstrings "vigil/pkg/platform/strings"
	"vigil/pkg/platform/validation"
	"vigil/pkg/requestcontext"
	"vigil/pkg/secrets"
)

// Handler serves the presence REST surface. Read endpoints answer with a
// success envelope; action endpoints answer with top-level result shapes.
type Handler struct {
	sim *Simulator
	log *slog.Logger
}

// NewHandler constructs the REST handler over the simulator service.
func NewHandler(sim *Simulator, log *slog.Logger) *Handler {
	return &Handler{sim: sim, log: log}
}

// HandleUsers answers GET /users with the filtered online user list.
func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r.URL.Query())
	if err := validation.CheckStringLength("tenant_id", filter.TenantID, validation.MaxTenantIDLength); err != nil {
		httputil.WriteError(w, err)
		return
	}

	users, err := h.sim.Users(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, users)
}

// HandleStats answers GET /stats with the aggregate presence counters.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sim.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}

// HandleTenant answers GET /tenants/{tenantID} with one tenant's group.
func (h *Handler) HandleTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := validation.CheckStringLength("tenant_id", tenantID, validation.MaxTenantIDLength); err != nil {
		httputil.WriteError(w, err)
		return
	}

	group, err := h.sim.TenantPresence(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, group)
}

// HandleSession answers GET /users/{userID}/session with the live session
// of one user.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := validation.CheckStringLength("user_id", userID, validation.MaxUserIDLength); err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.sim.SessionDetail(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, detail)
}

// HandleForceOffline answers POST /users/{userID}/offline. The result is
// a top-level action shape, not an envelope.
func (h *Handler) HandleForceOffline(w http.ResponseWriter, r *http.Request) {
	res, err := h.sim.ForceOffline(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type bulkOfflineRequest struct {
	UserIDs []string `json:"user_ids"`
}

// HandleBulkOffline answers POST /bulk/offline. Ids are trimmed and
// deduplicated before the service sees them; the result reports per-id
// failures without failing the whole request.
func (h *Handler) HandleBulkOffline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[bulkOfflineRequest](w, r, h.log, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	ids := vstrings.DedupeAndTrim(req.UserIDs)
	if len(ids) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "at least one user id is required"))
		return
	}
	if err := validation.CheckSliceCount("user_ids", len(ids), validation.MaxBulkUsers); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := validation.CheckEachStringLength("user_ids", ids, validation.MaxUserIDLength); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.sim.BulkForceOffline(ctx, ids)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleCleanup answers POST /cleanup by running the idle/retention sweep
// on demand.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.sim.RunSweep(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "cleanup failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%d idle sessions expired, %d stale records removed", res.MarkedOffline, res.Deleted),
	})
}

func filterFromQuery(q url.Values) models.Filter {
	f := models.Filter{TenantID: strings.TrimSpace(q.Get("tenant_id"))}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = n
	}
	return f
}

// AuthHandler mints admin tokens for the configured console client.
type AuthHandler struct {
	tokens     *token.Service
	clientID   string
	secretHash string
	tokenTTL   time.Duration
	log        *slog.Logger
}

// NewAuthHandler constructs the token exchange endpoint. secretHash is the
// bcrypt hash of the client secret; the plaintext never reaches this type.
func NewAuthHandler(tokens *token.Service, clientID, secretHash string, tokenTTL time.Duration, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:     tokens,
		clientID:   clientID,
		secretHash: secretHash,
		tokenTTL:   tokenTTL,
		log:        log,
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// HandleTokenExchange answers POST /auth/token. Valid client credentials
// buy a bearer token carrying both presence scopes.
func (h *AuthHandler) HandleTokenExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[tokenRequest](w, r, h.log, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if req.ClientID != h.clientID || secrets.Verify(req.ClientSecret, h.secretHash) != nil {
		h.log.WarnContext(ctx, "token exchange rejected", "client_id", req.ClientID)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid client credentials"))
		return
	}

	scopes := []string{token.ScopePresenceRead, token.ScopePresenceAdmin}
	accessToken, err := h.tokens.Generate(h.clientID, scopes)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not mint token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokenTTL.Seconds()),
		Scope:       strings.Join(scopes, " "),
	})
}
