// Package simulator is an in-process presence backend for development and
// end-to-end testing. It serves the console REST surface and the push
// socket against a seeded, self-mutating session population.
package simulator

import (
	"time"

	"github.com/google/uuid"

	"vigil/internal/presence/models"
)

// SessionRecord is the simulator's view of one user session. PresenceUser
// and SessionDetail are projections of it; the record itself never leaves
// this package.
type SessionRecord struct {
	UserID       string
	TenantID     string
	TenantName   string
	Email        string
	FullName     string
	IsOnline     bool
	SessionID    string
	ConnectedAt  time.Time
	LastActivity time.Time
	UserAgent    string
	IPAddress    string
}

// Clone returns a copy so store callers never share mutable state.
func (r *SessionRecord) Clone() *SessionRecord {
	c := *r
	return &c
}

// SetOnline applies an online/offline transition at the given time.
// Coming online starts a fresh session.
func (r *SessionRecord) SetOnline(online bool, at time.Time) {
	if online && !r.IsOnline {
		r.SessionID = uuid.NewString()
		r.ConnectedAt = at
	}
	r.IsOnline = online
	r.LastActivity = at
}

// Touch records activity at the given time.
func (r *SessionRecord) Touch(at time.Time) {
	r.LastActivity = at
}

// User projects the record onto the wire shape served to consoles.
func (r *SessionRecord) User(now time.Time) models.PresenceUser {
	u := models.PresenceUser{
		UserID:       r.UserID,
		TenantID:     r.TenantID,
		TenantName:   r.TenantName,
		Email:        r.Email,
		FullName:     r.FullName,
		IsOnline:     r.IsOnline,
		LastActivity: r.LastActivity,
		SessionID:    r.SessionID,
		UserAgent:    r.UserAgent,
		IPAddress:    r.IPAddress,
	}
	if r.IsOnline {
		u.SessionDurationMinutes = now.Sub(r.ConnectedAt).Minutes()
	}
	return u
}

// Detail projects the record onto the session lookup shape.
func (r *SessionRecord) Detail(now time.Time) models.SessionDetail {
	return models.SessionDetail{
		UserID:          r.UserID,
		SessionID:       r.SessionID,
		TenantID:        r.TenantID,
		ConnectedAt:     r.ConnectedAt,
		LastActivity:    r.LastActivity,
		DurationMinutes: now.Sub(r.ConnectedAt).Minutes(),
		UserAgent:       r.UserAgent,
		IPAddress:       r.IPAddress,
	}
}
