package domain

import "time"

// SessionType distinguishes anonymous visitors from logged-in principals.
type SessionType string

const (
	SessionGuest         SessionType = "guest"
	SessionAuthenticated SessionType = "authenticated"
)

// TerminationReason records why a session was deactivated.
type TerminationReason string

const (
	TerminatedLogout       TerminationReason = "logout"
	TerminatedTimeout      TerminationReason = "timeout"
	TerminatedExpired      TerminationReason = "expired"
	TerminatedSecurity     TerminationReason = "security"
	TerminatedAdminRevoked TerminationReason = "admin_revoked"
)

// Session is one visitor's lifecycle record. It starts as a guest session
// and may transition to authenticated exactly once; it never goes back.
type Session struct {
	ID                string             `json:"id"`
	Type              SessionType        `json:"sessionType"`
	PrincipalKind     PrincipalKind      `json:"principalKind,omitempty"`
	PrincipalID       *string            `json:"principalId,omitempty"`
	AccessToken       *string            `json:"-"`
	RefreshToken      *string            `json:"-"`
	IsActive          bool               `json:"isActive"`
	ClientIP          string             `json:"clientIp,omitempty"`
	UserAgent         string             `json:"userAgent,omitempty"`
	LoginAt           *time.Time         `json:"loginAt,omitempty"`
	LastActivity      time.Time          `json:"lastActivity"`
	ExpiresAt         time.Time          `json:"expiresAt"`
	TerminatedAt      *time.Time         `json:"terminatedAt,omitempty"`
	TerminationReason *TerminationReason `json:"terminationReason,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// Expired applies the lazy expiry rule: a session past its deadline is
// treated as absent regardless of IsActive.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Usable reports whether the session may still back a request.
func (s Session) Usable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}

// ClientInfo carries per-request context stamped onto new sessions.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// TokenPair is an access/refresh token set bound to one principal.
type TokenPair struct {
	AccessToken   string    `json:"accessToken"`
	RefreshToken  string    `json:"refreshToken"`
	AccessExpiry  time.Time `json:"accessExpiry"`
	RefreshExpiry time.Time `json:"refreshExpiry"`
}
