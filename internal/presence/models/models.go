// Package models holds the presence wire types shared by the client,
// the state store, and the simulator. Field names follow the console
// API exactly; these structs are the contract, not an internal view.
package models

import (
	"net/url"
	"strconv"
	"time"
)

// ConnectionState describes the lifecycle of the presence connection.
// There is exactly one logical connection per facade; the connection
// manager owns all transitions.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// PresenceUser is one row of the live user list, keyed by UserID.
// The list never contains two entries with the same user id.
type PresenceUser struct {
	UserID                 string    `json:"user_id"`
	TenantID               string    `json:"tenant_id"`
	TenantName             string    `json:"tenant_name"`
	Email                  string    `json:"email"`
	FullName               string    `json:"full_name"`
	IsOnline               bool      `json:"is_online"`
	LastActivity           time.Time `json:"last_activity"`
	SessionID              string    `json:"session_id"`
	SessionDurationMinutes float64   `json:"session_duration_minutes,omitempty"`
	UserAgent              string    `json:"user_agent,omitempty"`
	IPAddress              string    `json:"ip_address,omitempty"`
}

// UserPatch is the partial PresenceUser carried by user_online pushes.
// Only fields present on the wire are applied; absent fields leave the
// existing entry untouched.
type UserPatch struct {
	UserID                 string     `json:"user_id"`
	TenantID               *string    `json:"tenant_id,omitempty"`
	TenantName             *string    `json:"tenant_name,omitempty"`
	Email                  *string    `json:"email,omitempty"`
	FullName               *string    `json:"full_name,omitempty"`
	IsOnline               *bool      `json:"is_online,omitempty"`
	LastActivity           *time.Time `json:"last_activity,omitempty"`
	SessionID              *string    `json:"session_id,omitempty"`
	SessionDurationMinutes *float64   `json:"session_duration_minutes,omitempty"`
	UserAgent              *string    `json:"user_agent,omitempty"`
	IPAddress              *string    `json:"ip_address,omitempty"`
}

// ApplyTo copies every present patch field onto the target user.
// The online flag is handled by the reducer, which forces it true for
// every upsert regardless of the payload.
func (p *UserPatch) ApplyTo(u *PresenceUser) {
	if p.TenantID != nil {
		u.TenantID = *p.TenantID
	}
	if p.TenantName != nil {
		u.TenantName = *p.TenantName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.IsOnline != nil {
		u.IsOnline = *p.IsOnline
	}
	if p.LastActivity != nil {
		u.LastActivity = *p.LastActivity
	}
	if p.SessionID != nil {
		u.SessionID = *p.SessionID
	}
	if p.SessionDurationMinutes != nil {
		u.SessionDurationMinutes = *p.SessionDurationMinutes
	}
	if p.UserAgent != nil {
		u.UserAgent = *p.UserAgent
	}
	if p.IPAddress != nil {
		u.IPAddress = *p.IPAddress
	}
}

// NewUser materializes a full user row from a patch. Used when an upsert
// arrives for a user id the store has never seen.
func (p *UserPatch) NewUser() PresenceUser {
	u := PresenceUser{UserID: p.UserID}
	p.ApplyTo(&u)
	return u
}

// PresenceStats are the aggregate counters shown in the console header.
// They arrive independently from the user list; the two may be
// transiently inconsistent between pushes.
type PresenceStats struct {
	TotalOnline           int            `json:"total_online"`
	TotalOffline          int            `json:"total_offline"`
	OnlineByTenant        map[string]int `json:"online_by_tenant"`
	RecentActivityCount   int            `json:"recent_activity_count"`
	PeakOnlineToday       int            `json:"peak_online_today"`
	AverageSessionMinutes float64        `json:"average_session_minutes"`
}

// Clone returns a deep copy so snapshot readers never share the tenant map.
func (s PresenceStats) Clone() PresenceStats {
	out := s
	if s.OnlineByTenant != nil {
		out.OnlineByTenant = make(map[string]int, len(s.OnlineByTenant))
		for k, v := range s.OnlineByTenant {
			out.OnlineByTenant[k] = v
		}
	}
	return out
}

// Filter narrows the user list. The zero value means "everything".
type Filter struct {
	TenantID string `json:"tenant_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// IsZero reports whether the filter narrows anything.
func (f Filter) IsZero() bool {
	return f.TenantID == "" && f.Limit == 0 && f.Offset == 0
}

// Values renders the filter as REST query parameters.
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.TenantID != "" {
		q.Set("tenant_id", f.TenantID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// ActionResult is the response body of single-target admin actions.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BulkResult is the response body of bulk offline requests. A request can
// partially succeed; Errors carries one entry per failed target.
type BulkResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	UpdatedCount int      `json:"updated_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors,omitempty"`
}

// SessionDetail describes one user's live session as returned by the
// session lookup endpoint. DeviceDisplayName and DeviceKind are derived
// client-side from the user agent when the server leaves them empty.
type SessionDetail struct {
	UserID            string    `json:"user_id"`
	SessionID         string    `json:"session_id"`
	TenantID          string    `json:"tenant_id"`
	ConnectedAt       time.Time `json:"connected_at"`
	LastActivity      time.Time `json:"last_activity"`
	DurationMinutes   float64   `json:"duration_minutes"`
	UserAgent         string    `json:"user_agent,omitempty"`
	IPAddress         string    `json:"ip_address,omitempty"`
	DeviceDisplayName string    `json:"device_display_name,omitempty"`
	DeviceKind        string    `json:"device_kind,omitempty"`
}

// TenantPresence is the tenant-scoped presence group returned by the
// tenant lookup endpoint.
type TenantPresence struct {
	TenantID    string         `json:"tenant_id"`
	TenantName  string         `json:"tenant_name"`
	OnlineCount int            `json:"online_count"`
	Users       []PresenceUser `json:"users"`
}
