package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	dErrors "vigil/pkg/domain-errors"
)

// Wire message types. Inbound and outbound frames share one envelope shape.
const (
	TypeInitialStats   = "initial_stats"
	TypeStatsUpdate    = "stats_update"
	TypeUsersUpdate    = "users_update"
	TypeUserOnline     = "user_online"
	TypeUserOffline    = "user_offline"
	TypeActivityUpdate = "activity_update"
	TypePong           = "pong"

	TypePing         = "ping"
	TypeRequestStats = "request_stats"
	TypeRequestUsers = "request_users"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope wraps a payload in an envelope stamped with the current time.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode "+msgType+" payload")
	}
	return Envelope{Type: msgType, Data: data, Timestamp: time.Now().UTC()}, nil
}

// EncodeEnvelope renders an outbound frame.
func EncodeEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode "+msgType+" envelope")
	}
	return raw, nil
}

// DecodeEnvelope parses a raw inbound frame. A frame that is not a JSON
// envelope is a protocol error; the connection stays open and the caller
// drops the frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed presence frame")
	}
	if env.Type == "" {
		return Envelope{}, dErrors.New(dErrors.CodeBadRequest, "presence frame missing type")
	}
	return env, nil
}

// EventKind tags the decoded form of an inbound message for the reducer.
type EventKind int

const (
	KindStatsReplace EventKind = iota
	KindUsersReplace
	KindUserUpserted
	KindUserRemoved
	KindActivityTouched
	KindPong
	KindUnknown
)

func (k EventKind) String() string {
	switch k {
	case KindStatsReplace:
		return "stats_replace"
	case KindUsersReplace:
		return "users_replace"
	case KindUserUpserted:
		return "user_upserted"
	case KindUserRemoved:
		return "user_removed"
	case KindActivityTouched:
		return "activity_touched"
	case KindPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Event is a decoded inbound message. Exactly the fields implied by Kind
// are populated; WireType keeps the original type string for logging.
type Event struct {
	Kind         EventKind
	WireType     string
	Stats        *PresenceStats
	Users        []PresenceUser
	Patch        *UserPatch
	UserID       string
	LastActivity time.Time
}

type usersPayload struct {
	Users []PresenceUser `json:"users"`
}

type userRefPayload struct {
	UserID string `json:"user_id"`
}

type activityPayload struct {
	UserID       string    `json:"user_id"`
	LastActivity time.Time `json:"last_activity"`
}

// DecodeEvent maps an envelope onto the reducer's event union.
// Unrecognized types decode into KindUnknown without an error so future
// server messages never break an older console. Malformed payloads of
// known types are errors; the caller logs and drops them.
func DecodeEvent(env Envelope) (Event, error) {
	switch env.Type {
	case TypeInitialStats, TypeStatsUpdate:
		var stats PresenceStats
		if err := json.Unmarshal(env.Data, &stats); err != nil {
			return Event{}, decodeErr(env.Type, err)
		}
		return Event{Kind: KindStatsReplace, WireType: env.Type, Stats: &stats}, nil

	case TypeUsersUpdate:
		var p usersPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, decodeErr(env.Type, err)
		}
		return Event{Kind: KindUsersReplace, WireType: env.Type, Users: p.Users}, nil

	case TypeUserOnline:
		var patch UserPatch
		if err := json.Unmarshal(env.Data, &patch); err != nil {
			return Event{}, decodeErr(env.Type, err)
		}
		if patch.UserID == "" {
			return Event{}, dErrors.New(dErrors.CodeBadRequest, "user_online payload missing user_id")
		}
		return Event{Kind: KindUserUpserted, WireType: env.Type, Patch: &patch}, nil

	case TypeUserOffline:
		var p userRefPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, decodeErr(env.Type, err)
		}
		if p.UserID == "" {
			return Event{}, dErrors.New(dErrors.CodeBadRequest, "user_offline payload missing user_id")
		}
		return Event{Kind: KindUserRemoved, WireType: env.Type, UserID: p.UserID}, nil

	case TypeActivityUpdate:
		var p activityPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, decodeErr(env.Type, err)
		}
		if p.UserID == "" {
			return Event{}, dErrors.New(dErrors.CodeBadRequest, "activity_update payload missing user_id")
		}
		return Event{Kind: KindActivityTouched, WireType: env.Type, UserID: p.UserID, LastActivity: p.LastActivity}, nil

	case TypePong:
		return Event{Kind: KindPong, WireType: env.Type}, nil

	default:
		return Event{Kind: KindUnknown, WireType: env.Type}, nil
	}
}

func decodeErr(msgType string, err error) error {
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed "+msgType+" payload")
}

// StatsReplaceEvent builds the reducer event for a stats snapshot fetched
// over REST, so polling and push funnel through the same entry point.
func StatsReplaceEvent(stats PresenceStats) Event {
	return Event{Kind: KindStatsReplace, WireType: TypeStatsUpdate, Stats: &stats}
}

// UsersReplaceEvent builds the reducer event for a user list fetched over REST.
func UsersReplaceEvent(users []PresenceUser) Event {
	return Event{Kind: KindUsersReplace, WireType: TypeUsersUpdate, Users: users}
}

// UserRemovedEvent builds the reducer event for an optimistic local removal.
func UserRemovedEvent(userID string) Event {
	return Event{Kind: KindUserRemoved, WireType: TypeUserOffline, UserID: userID}
}

// SocketURL derives the push endpoint from the console API base URL.
// The scheme maps http to ws and https to wss; the path gains a /ws suffix.
func SocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid api base url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a socket URL; keep as-is.
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported api base scheme %q", u.Scheme))
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
