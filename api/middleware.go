package api

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

type contextKey int

const sessionKey contextKey = iota

const sessionCookieName = "adventkey_session"

// AuthMiddleware authenticates a session token from the Authorization
// bearer header or the session cookie and stores the session on the
// request context.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		session, ok := a.sessionForToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		session.LastAccessedAt = time.Now()
		a.sessions.Put(session.SessionID, session)

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionForToken verifies token and returns its live server session. The
// token's user type must agree with the stored session.
func (a *API) sessionForToken(token string) (AuthSession, bool) {
	claims, err := a.tokens.parse(token)
	if err != nil {
		return AuthSession{}, false
	}
	session, ok := a.sessions.Get(claims.ID)
	if !ok || session.UserType != claims.UserType {
		return AuthSession{}, false
	}
	return session, true
}

// requestToken returns the bearer token if present, else the session cookie.
func requestToken(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		return token
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func sessionFromContext(ctx context.Context) (AuthSession, bool) {
	session, ok := ctx.Value(sessionKey).(AuthSession)
	return session, ok
}

func writeSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func (a *API) requestIsSecure(r *http.Request) bool {
	return requestIsSecure(r, a.trustedProxies)
}

// requestIsSecure reports whether r arrived over TLS. Forwarded protocol
// headers count only when the peer is one of trustedProxies.
func requestIsSecure(r *http.Request, trustedProxies []netip.Prefix) bool {
	if r.TLS != nil {
		return true
	}
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)
	if !peerTrusted(remoteIP, trustedProxies) {
		return false
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
