// Package config loads adventkey settings by layering defaults, an optional
// YAML file, a .env file and ADVENTKEY_* environment variables. Command-line
// flags are applied last by the cobra commands.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmcleod/adventkey/accesscode"
)

// Mode selects environment-dependent behavior.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
	ModeTest        Mode = "test"
)

const (
	SessionBackendBolt   = "bolt"
	SessionBackendSQLite = "sqlite"
)

// SigningKeySize is the minimum length of the session token signing key.
const SigningKeySize = 32

var (
	ErrInvalidMode        = errors.New("mode must be production, development or test")
	ErrFallbackHashing    = errors.New("fallback hashing is only available in test mode")
	ErrSigningKeyRequired = errors.New("production mode requires a signing key")
	ErrSigningKeyTooShort = fmt.Errorf("signing key must be at least %d bytes", SigningKeySize)
	ErrSessionBackend     = errors.New("session backend must be bolt or sqlite")
	ErrPlainTextPhrase    = errors.New("plaintext codes are enabled but no phrase is configured")
)

type Config struct {
	Mode   Mode         `yaml:"mode"`
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	SessionTTL         time.Duration `yaml:"session_ttl"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	PersistentSessions bool          `yaml:"persistent_sessions"`

	// SigningKey is hex-encoded. SigningKeyFile, when set, takes precedence
	// and holds the hex key on its first line.
	SigningKey     string `yaml:"signing_key"`
	SigningKeyFile string `yaml:"signing_key_file"`

	TrustedProxies []string `yaml:"trusted_proxies"`

	// PlainTextEnabled defaults to true outside production.
	PlainTextEnabled *bool  `yaml:"plaintext_enabled"`
	PlainTextPhrase  string `yaml:"plaintext_phrase"`

	AuditWebhookURL    string `yaml:"audit_webhook_url"`
	AuditWebhookHeader string `yaml:"audit_webhook_header"`
}

type ClientConfig struct {
	ServerURL       string        `yaml:"server_url"`
	SessionBackend  string        `yaml:"session_backend"`
	SessionPath     string        `yaml:"session_path"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	FallbackHash    bool          `yaml:"fallback_hash"`
	PlainTextPhrase string        `yaml:"plaintext_phrase"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Defaults returns the development configuration.
func Defaults() *Config {
	return &Config{
		Mode: ModeDevelopment,
		Server: ServerConfig{
			Addr:            ":8080",
			DataDir:         "./data",
			SessionTTL:      24 * time.Hour,
			IdleTimeout:     30 * time.Minute,
			PlainTextPhrase: accesscode.DefaultPlainTextPhrase,
		},
		Client: ClientConfig{
			ServerURL:       "http://127.0.0.1:8080",
			SessionBackend:  SessionBackendBolt,
			SessionPath:     "adventkey-session.db",
			RequestTimeout:  15 * time.Second,
			PlainTextPhrase: accesscode.DefaultPlainTextPhrase,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path (if path is
// non-empty), then .env and the process environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field constraints after all layers are applied.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeProduction, ModeDevelopment, ModeTest:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Client.FallbackHash && c.Mode != ModeTest {
		return ErrFallbackHashing
	}
	switch c.Client.SessionBackend {
	case SessionBackendBolt, SessionBackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrSessionBackend, c.Client.SessionBackend)
	}
	key, err := c.SigningKeyBytes()
	if err != nil {
		return err
	}
	if key == nil && c.Mode == ModeProduction {
		return ErrSigningKeyRequired
	}
	if c.PlainTextAllowed() && strings.TrimSpace(c.Server.PlainTextPhrase) == "" {
		return ErrPlainTextPhrase
	}
	return nil
}

// PlainTextAllowed reports whether the server accepts the unhashed bypass
// phrase. Production requires an explicit opt-in.
func (c *Config) PlainTextAllowed() bool {
	if c.Server.PlainTextEnabled != nil {
		return *c.Server.PlainTextEnabled
	}
	return c.Mode != ModeProduction
}

// SigningKeyBytes decodes the configured signing key. It returns nil, nil
// when no key is configured.
func (c *Config) SigningKeyBytes() ([]byte, error) {
	raw := c.Server.SigningKey
	if c.Server.SigningKeyFile != "" {
		data, err := os.ReadFile(c.Server.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading signing key file: %w", err)
		}
		raw, _, _ = strings.Cut(string(data), "\n")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	if len(key) < SigningKeySize {
		return nil, ErrSigningKeyTooShort
	}
	return key, nil
}
