package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/jmcleod/adventkey/internal/util"
)

const (
	csrfCookieName = "adventkey_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware enforces double-submit cookie CSRF protection for
// cookie-authenticated mutating requests. Safe methods, bearer-authenticated
// requests and requests without a session cookie are exempt.
func (a *API) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := bearerToken(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := r.Cookie(sessionCookieName); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		header := r.Header.Get(csrfHeaderName)
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// csrfCookie is readable by scripts so browser clients can echo it in the
// X-CSRF-Token header.
func csrfCookie(value string, expiresAt time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     csrfCookieName,
		Value:    value,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	}
}

// writeCSRFCookie issues a fresh double-submit token alongside a new session.
func writeCSRFCookie(w http.ResponseWriter, expiresAt time.Time, secure bool) error {
	token, err := util.RandomHex(16)
	if err != nil {
		return err
	}
	http.SetCookie(w, csrfCookie(token, expiresAt, secure))
	return nil
}

func clearCSRFCookie(w http.ResponseWriter, secure bool) {
	c := csrfCookie("", time.Unix(0, 0), secure)
	c.MaxAge = -1
	http.SetCookie(w, c)
}
