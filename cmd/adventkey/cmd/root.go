package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/adventkey/internal/config"
	"github.com/jmcleod/adventkey/internal/logging"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile        string
	modeFlag       string
	logFormat      string
	logLevel       string
	serverURL      string
	sessionBackend string
	sessionPath    string
)

// cfg and logger are populated before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "adventkey",
	Short: "adventkey verifies access codes and opens sessions",
	Long: `adventkey runs the access-code verification server and a command-line
client for it. Codes are hashed before they leave the client; only the
configured bypass phrase is ever sent in plain text.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	pf.StringVar(&modeFlag, "mode", "", "Run mode: production, development or test")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&serverURL, "server", "", "Base URL of the adventkey server")
	pf.StringVar(&sessionBackend, "session-backend", "", "Client session store: bolt or sqlite")
	pf.StringVar(&sessionPath, "session-path", "", "Path to the client session database")
}

// loadConfig layers flags over the file and environment configuration and
// builds the logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyRootFlags(cmd, c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logging.New(cmd.ErrOrStderr(), c.Log.Format, c.Log.Level)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	slog.SetDefault(l)
	return nil
}

func applyRootFlags(cmd *cobra.Command, c *config.Config) {
	set := func(name string, dst *string, v string) {
		if f := cmd.Flag(name); f != nil && f.Changed {
			*dst = v
		}
	}
	mode := string(c.Mode)
	set("mode", &mode, modeFlag)
	c.Mode = config.Mode(mode)
	set("log-format", &c.Log.Format, logFormat)
	set("log-level", &c.Log.Level, logLevel)
	set("server", &c.Client.ServerURL, serverURL)
	set("session-backend", &c.Client.SessionBackend, sessionBackend)
	set("session-path", &c.Client.SessionPath, sessionPath)
}
