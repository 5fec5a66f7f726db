package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/internal/uuid"
)

// VerifyCode handles POST /auth/verify-code. It checks an access code (and,
// for credentials that need one, a birthdate) against the credential table
// and opens a session on success.
func (a *API) VerifyCode(w http.ResponseWriter, r *http.Request) {
	clientIP := a.extractClientIP(r)

	if blocked, retryAfter := a.globalLimiter.check(); blocked {
		a.rateLimited(w, r, clientIP, "global", "", retryAfter)
		return
	}
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.rateLimited(w, r, clientIP, "ip", "", retryAfter)
		return
	}

	req, ok := decodeJSON[accesscode.VerifyRequest](w, r, maxVerifyBodySize)
	if !ok {
		a.recordAttempt(AttemptEntry{Outcome: OutcomeInvalidRequest, Reason: "malformed body", ClientIP: clientIP})
		return
	}
	if err := req.Validate(); err != nil {
		a.invalidRequest(w, r, clientIP, err)
		return
	}

	cred, err := a.table.Resolve(req, a.allowPlainText)
	if err != nil {
		if errors.Is(err, accesscode.ErrPlainTextDisabled) {
			a.invalidRequest(w, r, clientIP, err)
			return
		}
		a.reject(w, r, clientIP, accesscode.KnownCredential{}, "unknown code")
		return
	}

	if blocked, retryAfter := a.credLimiter.check(cred.Name); blocked {
		a.rateLimited(w, r, clientIP, "credential", cred.Name, retryAfter)
		return
	}

	if err := cred.VerifyBirthdate(req.BirthdateHash); err != nil {
		if errors.Is(err, accesscode.ErrBirthdateRequired) {
			a.audit.logFailure(AuditBirthdateRequired, r, clientIP, "birthdate missing",
				slog.String("credential", cred.Name))
			a.recordAttempt(AttemptEntry{
				Outcome:    OutcomeBirthdateRequired,
				UserType:   cred.UserType,
				Credential: cred.Name,
				ClientIP:   clientIP,
			})
			writeJSON(w, http.StatusUnauthorized, accesscode.VerifyResponse{
				Error:             msgBirthdateRequired,
				RequiresBirthdate: true,
				Message:           msgBirthdatePrompt,
			})
			return
		}
		a.reject(w, r, clientIP, cred, "wrong birthdate")
		return
	}

	a.openSession(w, r, clientIP, cred)
}

// openSession issues a token for cred, stores the server session and sets
// the session and CSRF cookies.
func (a *API) openSession(w http.ResponseWriter, r *http.Request, clientIP string, cred accesscode.KnownCredential) {
	now := time.Now()
	session := AuthSession{
		SessionID:      uuid.New(),
		UserType:       cred.UserType,
		Credential:     cred.Name,
		ClientIP:       clientIP,
		ExpiresAt:      now.Add(a.sessionTTL),
		LastAccessedAt: now,
	}

	token, err := a.tokens.issue(session.SessionID, session.UserType, now, session.ExpiresAt)
	if err != nil {
		writeInternalError(w, "failed to issue session", err)
		return
	}
	if err := writeCSRFCookie(w, session.ExpiresAt, a.requestIsSecure(r)); err != nil {
		writeInternalError(w, "failed to issue session", err)
		return
	}
	a.sessions.Put(session.SessionID, session)
	writeSessionCookie(w, token, session.ExpiresAt, a.requestIsSecure(r))

	a.ipLimiter.recordSuccess(clientIP)
	a.credLimiter.recordSuccess(cred.Name)

	a.audit.logSession(AuditVerifySuccess, r, clientIP, session)
	a.recordAttempt(AttemptEntry{
		Outcome:    OutcomeSuccess,
		UserType:   cred.UserType,
		Credential: cred.Name,
		ClientIP:   clientIP,
	})

	writeJSON(w, http.StatusOK, accesscode.VerifyResponse{
		Success:      true,
		SessionToken: token,
		SessionID:    session.SessionID,
		UserType:     session.UserType,
	})
}

// reject answers a failed verification with the generic invalid-code
// message. The failure counts against the global and per-IP limiters, and
// against the credential's own limiter when one was matched.
func (a *API) reject(w http.ResponseWriter, r *http.Request, clientIP string, cred accesscode.KnownCredential, reason string) {
	a.globalLimiter.recordFailure()
	a.ipLimiter.recordFailure(clientIP)

	var extra []slog.Attr
	if cred.Name != "" {
		a.credLimiter.recordFailure(cred.Name)
		extra = append(extra, slog.String("credential", cred.Name))
	}
	a.audit.logFailure(AuditVerifyFailure, r, clientIP, reason, extra...)
	a.recordAttempt(AttemptEntry{
		Outcome:    OutcomeRejected,
		UserType:   cred.UserType,
		Credential: cred.Name,
		Reason:     reason,
		ClientIP:   clientIP,
	})

	writeJSON(w, http.StatusUnauthorized, accesscode.VerifyResponse{Error: msgInvalidCode})
}

func (a *API) invalidRequest(w http.ResponseWriter, r *http.Request, clientIP string, err error) {
	status, msg := verifyErrorStatus(err)
	a.audit.logFailure(AuditVerifyFailure, r, clientIP, "invalid request", slog.String("error", err.Error()))
	a.recordAttempt(AttemptEntry{Outcome: OutcomeInvalidRequest, Reason: err.Error(), ClientIP: clientIP})
	writeJSON(w, status, accesscode.VerifyResponse{Error: msg})
}

func (a *API) rateLimited(w http.ResponseWriter, r *http.Request, clientIP, scope, credential string, retryAfter time.Duration) {
	extra := []slog.Attr{slog.String("scope", scope)}
	if credential != "" {
		extra = append(extra, slog.String("credential", credential))
	}
	a.audit.logFailure(AuditVerifyRateLimited, r, clientIP, "locked out", extra...)
	a.recordAttempt(AttemptEntry{
		Outcome:    OutcomeRateLimited,
		Credential: credential,
		Reason:     scope,
		ClientIP:   clientIP,
	})
	writeRateLimited(w, retryAfter)
}

func (a *API) recordAttempt(entry AttemptEntry) {
	if a.attempts == nil {
		return
	}
	if err := a.attempts.append(entry); err != nil {
		a.logger.Warn("recording verification attempt", "error", err)
	}
}

// CurrentSession handles GET /auth/session.
func (a *API) CurrentSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, accesscode.SessionInfo{
		SessionID: session.SessionID,
		UserType:  session.UserType,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /auth/logout. It succeeds whether or not the caller
// still holds a live session.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token := requestToken(r); token != "" {
		if session, ok := a.sessionForToken(token); ok {
			a.sessions.Delete(session.SessionID)
			a.audit.logSession(AuditLogout, r, a.extractClientIP(r), session)
		}
	}
	secure := a.requestIsSecure(r)
	clearSessionCookie(w, secure)
	clearCSRFCookie(w, secure)
	writeJSON(w, http.StatusOK, LogoutResponse{Success: true})
}
