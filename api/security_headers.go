package api

import (
	"net/http"
	"strings"
)

// docsCSP relaxes script and style sources for the Swagger UI and Redoc
// pages, which load their bundles from a CDN.
const docsCSP = "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com https://cdn.jsdelivr.net; " +
	"style-src 'self' 'unsafe-inline' https://unpkg.com https://fonts.googleapis.com; " +
	"font-src 'self' https://fonts.gstatic.com; img-src 'self' data: https:; worker-src blob:"

const apiCSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityHeaders is middleware that sets standard security response headers
// on every response. Paths under any of docsPrefixes get the relaxed policy
// the docs UI needs. HSTS is sent on TLS requests, including those a trusted
// proxy reports as https.
func (a *API) SecurityHeaders(docsPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if isDocsPath(r.URL.Path, docsPrefixes) {
				h.Set("Content-Security-Policy", docsCSP)
			} else {
				h.Set("Content-Security-Policy", apiCSP)
			}
			if a.requestIsSecure(r) {
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isDocsPath(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
