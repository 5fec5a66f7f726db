package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditVerifySuccess     AuditEvent = "verify_success"
	AuditVerifyFailure     AuditEvent = "verify_failure"
	AuditVerifyRateLimited AuditEvent = "verify_rate_limited"
	AuditBirthdateRequired AuditEvent = "birthdate_required"
	AuditLogout            AuditEvent = "logout"
)

// auditLogger wraps slog.Logger for structured security audit logging and
// fans events out to the failure-spike detector and the optional webhook.
// Attributes never carry submitted codes, birthdates or digests.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
	webhook *auditWebhook
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, clientIP string, attrs ...slog.Attr) {
	now := time.Now().UTC()
	all := append([]slog.Attr{
		slog.String("event", string(event)),
		slog.String("client_ip", clientIP),
		slog.String("timestamp", now.Format(time.RFC3339)),
	}, attrs...)

	level := slog.LevelInfo
	if event == AuditVerifyFailure || event == AuditVerifyRateLimited {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(r.Context(), level, "audit", all...)

	al.metrics.recordEvent(event)
	if al.webhook != nil {
		evt := webhookEvent{
			Event:      string(event),
			RemoteAddr: clientIP,
			Timestamp:  now.Format(time.RFC3339),
		}
		for _, a := range attrs {
			if evt.Attrs == nil {
				evt.Attrs = make(map[string]string, len(attrs))
			}
			evt.Attrs[a.Key] = a.Value.String()
		}
		al.webhook.enqueue(evt)
	}
}

// logSession records an event tied to a session.
func (al *auditLogger) logSession(event AuditEvent, r *http.Request, clientIP string, session AuthSession) {
	al.log(event, r, clientIP,
		slog.String("session_id", session.SessionID),
		slog.String("user_type", string(session.UserType)),
		slog.String("credential", session.Credential),
	)
}

// logFailure records a rejected or throttled attempt.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, clientIP, reason string, extra ...slog.Attr) {
	al.log(event, r, clientIP, append([]slog.Attr{slog.String("reason", reason)}, extra...)...)
}
