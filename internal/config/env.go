package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "ADVENTKEY_"

// loadDotEnv exports variables from path into the process environment
// without overriding ones already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_ADDR":                 &c.Server.Addr,
		"SERVER_DATA_DIR":             &c.Server.DataDir,
		"SERVER_TLS_CERT":             &c.Server.TLSCert,
		"SERVER_TLS_KEY":              &c.Server.TLSKey,
		"SERVER_SIGNING_KEY":          &c.Server.SigningKey,
		"SERVER_SIGNING_KEY_FILE":     &c.Server.SigningKeyFile,
		"SERVER_PLAINTEXT_PHRASE":     &c.Server.PlainTextPhrase,
		"SERVER_AUDIT_WEBHOOK_URL":    &c.Server.AuditWebhookURL,
		"SERVER_AUDIT_WEBHOOK_HEADER": &c.Server.AuditWebhookHeader,
		"CLIENT_SERVER_URL":           &c.Client.ServerURL,
		"CLIENT_SESSION_BACKEND":      &c.Client.SessionBackend,
		"CLIENT_SESSION_PATH":         &c.Client.SessionPath,
		"CLIENT_PLAINTEXT_PHRASE":     &c.Client.PlainTextPhrase,
		"LOG_FORMAT":                  &c.Log.Format,
		"LOG_LEVEL":                   &c.Log.Level,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "MODE"); ok {
		c.Mode = Mode(strings.ToLower(strings.TrimSpace(v)))
	}

	durations := map[string]*time.Duration{
		"SERVER_SESSION_TTL":     &c.Server.SessionTTL,
		"SERVER_IDLE_TIMEOUT":    &c.Server.IdleTimeout,
		"CLIENT_REQUEST_TIMEOUT": &c.Client.RequestTimeout,
	}
	for name, dst := range durations {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	bools := map[string]*bool{
		"SERVER_PERSISTENT_SESSIONS": &c.Server.PersistentSessions,
		"CLIENT_FALLBACK_HASH":       &c.Client.FallbackHash,
	}
	for name, dst := range bools {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = b
	}

	if v, ok := lookup(envPrefix + "SERVER_PLAINTEXT_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSERVER_PLAINTEXT_ENABLED: %w", envPrefix, err)
		}
		c.Server.PlainTextEnabled = &b
	}
	if v, ok := lookup(envPrefix + "SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
