package http

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "auth-token"

// SessionCookieConfig controls the attributes of the session cookie.
type SessionCookieConfig struct {
	// Secure restricts the cookie to HTTPS; only disable for local development
	Secure bool `env:"COOKIE_SECURE" default:"true"`
}

// SetSessionCookie stores token in an HTTP-only, same-site strict cookie
// that the browser discards after maxAge.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, cfg SessionCookieConfig) {
	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie instructs the browser to delete the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cfg SessionCookieConfig) {
	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// SessionToken returns the session token sent with r, or "" if there is none.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}

	return cookie.Value
}
