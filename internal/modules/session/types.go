package session

import "time"

// DeviceInfo describes the device/browser a session was created from.
// Descriptive only, never authoritative.
type DeviceInfo struct {
	UserAgent string `json:"user_agent"`
	IP        string `json:"ip"`
	Platform  string `json:"platform"`
	Browser   string `json:"browser"`
}

// Session is one authenticated device/browser context. It lives in the
// session store under "session:{id}" and stays valid while
// now - LastActivity < TTL.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Device       DeviceInfo `json:"device"`
	CreatedAt    time.Time  `json:"created"`
	LastActivity time.Time  `json:"last_activity"`
	IsActive     bool       `json:"is_active"`
}

// TokenBundle pairs an issued access token with the session it is bound to.
type TokenBundle struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

// TokenIdentity is the result of a full token validation: signature check
// plus store-backed session check.
type TokenIdentity struct {
	UserID    string
	SessionID string
	Session   *Session
}

// ActivityPatch optionally updates descriptive session fields alongside an
// activity refresh.
type ActivityPatch struct {
	Device   *DeviceInfo
	IsActive *bool
}

// Destroy reasons passed to the registered destroy hook.
const (
	ReasonLogout  = "logout"
	ReasonEvicted = "evicted"
	ReasonExpired = "expired"
	ReasonRevoked = "revoked"
)
