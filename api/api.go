// Package api implements the HTTP surface of the access-code verifier: code
// verification, session lookup and logout.
package api

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/internal/util"
	"github.com/jmcleod/adventkey/storage"
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultIdleTimeout = 30 * time.Minute

	limiterSweepInterval = 10 * time.Minute
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	table          accesscode.Table
	allowPlainText bool
	sessions       SessionStore
	tokens         *tokenIssuer
	sessionTTL     time.Duration
	idleTimeout    time.Duration
	trustedProxies []netip.Prefix

	credLimiter   *backoffLimiter
	ipLimiter     *backoffLimiter
	globalLimiter *globalRateLimiter

	audit    *auditLogger
	attempts *attemptLog

	// Option inputs, consumed by New.
	logger        *slog.Logger
	signingKey    []byte
	attemptRepo   storage.Repository
	attemptCap    int
	webhookURL    string
	webhookHeader string
	alertFn       AlertFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(store SessionStore) Option {
	return func(a *API) {
		a.sessions = store
	}
}

// WithSigningKey sets the HS256 key for session tokens. Without one a random
// per-process key is generated and tokens do not survive a restart.
func WithSigningKey(key []byte) Option {
	return func(a *API) {
		a.signingKey = util.CopyBytes(key)
	}
}

// WithSessionTTL sets the absolute session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(a *API) {
		a.sessionTTL = ttl
	}
}

// WithIdleTimeout sets the idle timeout used by the default session store.
func WithIdleTimeout(d time.Duration) Option {
	return func(a *API) {
		a.idleTimeout = d
	}
}

// WithPlainText enables or disables the unhashed bypass phrase.
func WithPlainText(enabled bool) Option {
	return func(a *API) {
		a.allowPlainText = enabled
	}
}

// WithAttemptLog persists every verification attempt to repo, keeping at
// most maxEntries (DefaultAttemptRetention when <= 0).
func WithAttemptLog(repo storage.Repository, maxEntries int) Option {
	return func(a *API) {
		a.attemptRepo = repo
		a.attemptCap = maxEntries
	}
}

// WithAuditWebhook mirrors audit events to url. header is optional and uses
// "Name: Value" form.
func WithAuditWebhook(url, header string) Option {
	return func(a *API) {
		a.webhookURL = url
		a.webhookHeader = header
	}
}

// WithAlertFunc registers a callback for failure-spike alerts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// New creates a new API instance that verifies codes against table. Call
// Close to stop its background work.
func New(table accesscode.Table, opts ...Option) (*API, error) {
	a := &API{
		table:         table,
		sessionTTL:    DefaultSessionTTL,
		idleTimeout:   DefaultIdleTimeout,
		credLimiter:   newBackoffLimiter(credentialPolicy),
		ipLimiter:     newBackoffLimiter(ipPolicy),
		globalLimiter: newGlobalRateLimiter(),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be positive")
	}

	key := a.signingKey
	if key == nil {
		var err error
		if key, err = util.RandomBytes(32); err != nil {
			return nil, err
		}
	}
	tokens, err := newTokenIssuer(key)
	util.WipeBytes(key)
	a.signingKey = nil
	if err != nil {
		return nil, err
	}
	a.tokens = tokens

	if a.sessions == nil {
		a.sessions = NewMemorySessionStore(a.idleTimeout)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.audit = newAuditLogger(a.logger)
	a.audit.metrics = newMetricsCollector(a.alertFn)
	if a.webhookURL != "" {
		a.audit.webhook = newAuditWebhook(a.webhookURL, a.webhookHeader)
	}
	if a.attemptRepo != nil {
		a.attempts = newAttemptLog(a.attemptRepo, a.attemptCap)
	}

	go a.janitor()
	return a, nil
}

// Close stops the limiter janitor and flushes the audit webhook. It does
// not close the session store.
func (a *API) Close() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		<-a.done
		if a.audit.webhook != nil {
			a.audit.webhook.close()
		}
	})
}

// janitor periodically evicts stale limiter records and in-memory sessions.
func (a *API) janitor() {
	defer close(a.done)
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.credLimiter.sweep()
			a.ipLimiter.sweep()
			if mem, ok := a.sessions.(*MemorySessionStore); ok {
				mem.sweep()
			}
		}
	}
}

// Router returns a chi.Router with all API routes mounted. It is meant to be
// mounted at /api/v1.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
		Title:   "adventkey API",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
		Title:   "adventkey API",
	}, nil))

	r.Post("/auth/verify-code", a.VerifyCode)
	r.With(a.AuthMiddleware).Get("/auth/session", a.CurrentSession)
	r.With(a.CSRFMiddleware).Post("/auth/logout", a.Logout)

	return r
}
