package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/api"
	"github.com/jmcleod/adventkey/internal/config"
	"github.com/jmcleod/adventkey/internal/util"
	"github.com/jmcleod/adventkey/storage"
	bboltstorage "github.com/jmcleod/adventkey/storage/bbolt"
)

const dataFileName = "adventkey.db"

var (
	addr    string
	dataDir string
	tlsCert string
	tlsKey  string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the verification server",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from config, :8080)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent data")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}

func applyServerFlags(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("addr") {
		c.Server.Addr = addr
	}
	if cmd.Flags().Changed("data-dir") {
		c.Server.DataDir = dataDir
	}
	if cmd.Flags().Changed("tls-cert") {
		c.Server.TLSCert = tlsCert
	}
	if cmd.Flags().Changed("tls-key") {
		c.Server.TLSKey = tlsKey
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	applyServerFlags(cmd, cfg)
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		return errors.New("--tls-cert and --tls-key must be given together")
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(cfg.Server.DataDir, dataFileName), &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer repo.Close()

	handler, cleanup, err := newServerHandler(cfg, repo)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	useTLS := cfg.Server.TLSCert != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	} else if cfg.Mode == config.ModeProduction {
		logger.Warn("serving plain HTTP in production; terminate TLS at a proxy")
	}

	done := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	printBanner(cmd.OutOrStdout())
	logger.Info("server started",
		"addr", cfg.Server.Addr,
		"mode", string(cfg.Mode),
		"tls", useTLS,
		"data_dir", cfg.Server.DataDir,
		"plaintext_enabled", cfg.PlainTextAllowed(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}

// newServerHandler wires the API over repo and returns the root handler and
// a cleanup func that stops background work.
func newServerHandler(c *config.Config, repo storage.Repository) (http.Handler, func(), error) {
	key, err := c.SigningKeyBytes()
	if err != nil {
		return nil, nil, err
	}
	if key == nil {
		if c.Server.PersistentSessions {
			return nil, nil, errors.New("persistent sessions require a signing key")
		}
		logger.Warn("no signing key configured; sessions will not survive a restart")
	}
	defer util.WipeBytes(key)

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithSessionTTL(c.Server.SessionTTL),
		api.WithIdleTimeout(c.Server.IdleTimeout),
		api.WithPlainText(c.PlainTextAllowed()),
		api.WithAttemptLog(repo, api.DefaultAttemptRetention),
		api.WithAlertFunc(func(evt api.AlertEvent) {
			logger.Error("security alert", "type", string(evt.Type), "message", evt.Message, "count", evt.Count, "threshold", evt.Threshold)
		}),
	}
	if key != nil {
		opts = append(opts, api.WithSigningKey(key))
	}
	if len(c.Server.TrustedProxies) > 0 {
		opt, err := api.WithTrustedProxies(c.Server.TrustedProxies)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, opt)
	}
	if c.Server.AuditWebhookURL != "" {
		opts = append(opts, api.WithAuditWebhook(c.Server.AuditWebhookURL, c.Server.AuditWebhookHeader))
	}

	var sessions *api.PersistentSessionStore
	if c.Server.PersistentSessions {
		wrappingKey, err := api.DeriveSessionWrappingKey(key)
		if err != nil {
			return nil, nil, err
		}
		sessions, err = api.NewPersistentSessionStore(repo, c.Server.IdleTimeout, wrappingKey)
		util.WipeBytes(wrappingKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session store: %w", err)
		}
		opts = append(opts, api.WithSessionStore(sessions))
	}

	a, err := api.New(accesscode.DefaultTable(c.Server.PlainTextPhrase), opts...)
	if err != nil {
		if sessions != nil {
			sessions.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		a.Close()
		if sessions != nil {
			sessions.Close()
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(a.SecurityHeaders("/api/v1/docs", "/api/v1/redoc"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Version: Version})
	})
	r.Mount("/api/v1", a.Router())

	return r, cleanup, nil
}
