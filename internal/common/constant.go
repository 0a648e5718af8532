// Package common contains shared constants and small helpers used across
// vaultguard components.
package common

// SessionCookieName is the cookie the API uses to carry the signup and
// authenticated session. The client never reads its value.
const SessionCookieName = "auth_session"

// RequestIDHeaderName is attached to every outbound request so that failures
// can be correlated with server logs.
const RequestIDHeaderName = "X-Request-ID"

// Token cookies set by login, identifier setup and refresh.
const (
	AccessTokenCookieName  = "sv_at"
	RefreshTokenCookieName = "sv_rt"
)
