package simulator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"vigil/internal/platform/middleware"
	"vigil/internal/presence/models"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
)

// upgrader accepts any origin. The simulator is a development backend
// reached from local consoles, not a production surface.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSHandler upgrades presence socket connections and services their
// request frames. Authentication happens before the upgrade; browser
// clients cannot set headers on a socket dial, so the token may arrive
// either as a bearer header or a token query parameter.
type WSHandler struct {
	sim           *Simulator
	hub           *Hub
	validator     middleware.TokenValidator
	requiredScope string
	log           *slog.Logger
}

// NewWSHandler constructs the socket endpoint handler.
func NewWSHandler(sim *Simulator, hub *Hub, validator middleware.TokenValidator, requiredScope string, log *slog.Logger) *WSHandler {
	return &WSHandler{
		sim:           sim,
		hub:           hub,
		validator:     validator,
		requiredScope: requiredScope,
		log:           log,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokenString := socketToken(r)
	if tokenString == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid authorization header"))
		return
	}
	claims, err := h.validator.Validate(tokenString)
	if err != nil {
		h.log.WarnContext(ctx, "socket auth rejected", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}
	if h.requiredScope != "" && !slices.Contains(claims.Scopes, h.requiredScope) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient scope"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		h.log.WarnContext(ctx, "socket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, claims.AdminID)
	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		client.Close()
	}()

	// Every new connection starts from a fresh stats snapshot.
	if stats, err := h.sim.Stats(ctx); err == nil {
		if err := client.SendEnvelope(models.TypeInitialStats, stats); err != nil {
			h.log.WarnContext(ctx, "initial stats send failed", "error", err)
			return
		}
	} else {
		h.log.ErrorContext(ctx, "failed to compute initial stats", "error", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.DebugContext(ctx, "socket closed", "admin_id", claims.AdminID, "error", err)
			}
			return
		}

		env, err := models.DecodeEnvelope(raw)
		if err != nil {
			h.log.DebugContext(ctx, "dropping malformed client frame", "error", err)
			continue
		}
		h.handleFrame(r, client, env)
	}
}

// handleFrame services one decoded client frame.
func (h *WSHandler) handleFrame(r *http.Request, client *Client, env models.Envelope) {
	ctx := r.Context()

	switch env.Type {
	case models.TypePing:
		if err := client.SendEnvelope(models.TypePong, struct{}{}); err != nil {
			h.log.DebugContext(ctx, "pong send failed", "error", err)
		}

	case models.TypeRequestStats:
		stats, err := h.sim.Stats(ctx)
		if err != nil {
			h.log.ErrorContext(ctx, "failed to compute stats", "error", err)
			return
		}
		if err := client.SendEnvelope(models.TypeStatsUpdate, stats); err != nil {
			h.log.DebugContext(ctx, "stats reply send failed", "error", err)
		}

	case models.TypeRequestUsers:
		var filter models.Filter
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &filter); err != nil {
				h.log.DebugContext(ctx, "dropping malformed user filter", "error", err)
				return
			}
		}
		client.SetFilter(filter)

		users, err := h.sim.Users(ctx, filter)
		if err != nil {
			h.log.ErrorContext(ctx, "failed to list users", "error", err)
			return
		}
		if err := client.SendEnvelope(models.TypeUsersUpdate, usersEvent{Users: users}); err != nil {
			h.log.DebugContext(ctx, "users reply send failed", "error", err)
		}

	default:
		h.log.DebugContext(ctx, "unknown client frame type", "type", env.Type)
	}
}

// socketToken pulls the bearer token from the Authorization header or,
// failing that, the token query parameter.
func socketToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok && after != "" {
		return after
	}
	return r.URL.Query().Get("token")
}
