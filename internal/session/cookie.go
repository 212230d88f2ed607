// Package session carries the session token between client and server in
// an HTTP cookie.
package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie holding the session token.
const CookieName = "jwt"

// Transport writes and reads the session cookie. Secure is set only in
// production so plain HTTP works during local development.
type Transport struct {
	secure bool
	maxAge time.Duration
	now    func() time.Time
}

// New returns a Transport. maxAge should match the token lifetime.
func New(secure bool, maxAge time.Duration) Transport {
	return Transport{secure: secure, maxAge: maxAge, now: time.Now}
}

// Set attaches token to the response.
func (t Transport) Set(w http.ResponseWriter, token string) {
	cookie := t.base()
	cookie.Value = token
	if t.maxAge > 0 {
		cookie.MaxAge = int(t.maxAge / time.Second)
		cookie.Expires = t.now().Add(t.maxAge).UTC()
	}
	http.SetCookie(w, cookie)
}

// Clear tells the client to drop the session cookie.
func (t Transport) Clear(w http.ResponseWriter) {
	cookie := t.base()
	cookie.Expires = time.Unix(0, 0).UTC()
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

// Read returns the raw session token. A missing or empty cookie reports false.
func (t Transport) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

func (t Transport) base() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
