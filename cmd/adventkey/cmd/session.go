package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/client"
	"github.com/jmcleod/adventkey/internal/config"
	bboltstorage "github.com/jmcleod/adventkey/storage/bbolt"
)

// openSessionStore opens the configured client session store. The returned
// func closes it.
func openSessionStore(ctx context.Context, c config.ClientConfig) (client.SessionStore, func() error, error) {
	switch c.SessionBackend {
	case config.SessionBackendSQLite:
		s, err := client.OpenSQLiteStore(ctx, c.SessionPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		repo, err := bboltstorage.NewRepositoryFromFile(c.SessionPath, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("opening session store: %w", err)
		}
		return client.NewRepositoryStore(repo), repo.Close, nil
	}
}

func newTransport(c config.ClientConfig) *client.HTTPTransport {
	return client.NewHTTPTransport(c.ServerURL, &http.Client{Timeout: c.RequestTimeout})
}

var (
	loginCode      string
	loginBirthdate string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify an access code and store the session",
	Long: `Prompts for an access code (and a birthdate when the code needs one),
verifies it against the server and stores the resulting session locally.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var whoamiCheck bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session on the server and clear it locally",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd, whoamiCmd, logoutCmd)
	loginCmd.Flags().StringVar(&loginCode, "code", "", "Access code (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginBirthdate, "birthdate", "", "Birthdate for codes that require one")
	whoamiCmd.Flags().BoolVar(&whoamiCheck, "check", false, "Confirm the session with the server")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	hasher, err := accesscode.NewHasher(cfg.Client.FallbackHash, cfg.Mode == config.ModeTest)
	if err != nil {
		return err
	}

	store, closeStore, err := openSessionStore(ctx, cfg.Client)
	if err != nil {
		return err
	}
	defer closeStore()

	v := client.NewVerifier(newTransport(cfg.Client), store,
		client.WithHasher(hasher),
		client.WithPlainTextPhrase(cfg.Client.PlainTextPhrase),
		client.WithRequestTimeout(cfg.Client.RequestTimeout),
		client.WithLogger(logger),
	)
	p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())

	code := loginCode
	if code == "" {
		if code, err = p.secret("Access code"); err != nil {
			return fmt.Errorf("reading access code: %w", err)
		}
	}
	if err := v.SetCode(code); err != nil {
		return err
	}
	if v.RequiresSecondFactor() {
		birthdate := loginBirthdate
		if birthdate == "" {
			if birthdate, err = p.line("Birthdate"); err != nil {
				return fmt.Errorf("reading birthdate: %w", err)
			}
		}
		if err := v.SetBirthdate(birthdate); err != nil {
			return err
		}
	}

	category, err := v.Submit(ctx)
	if err != nil {
		return errors.New(client.UserMessage(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in (%s session)\n", category)
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, closeStore, err := openSessionStore(ctx, cfg.Client)
	if err != nil {
		return err
	}
	defer closeStore()

	sess, err := client.LoadSession(ctx, store)
	if errors.Is(err, client.ErrNoSession) {
		return errors.New("not signed in")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:  %s\n", sess.ID)
	fmt.Fprintf(out, "Category: %s\n", sess.Category())
	if !whoamiCheck {
		return nil
	}

	info, err := newTransport(cfg.Client).Session(ctx, sess.Token)
	if err != nil {
		if client.IsKind(err, client.KindRejection) {
			return errors.New("session is no longer valid on the server")
		}
		return errors.New(client.UserMessage(err))
	}
	fmt.Fprintf(out, "User:     %s\n", info.UserType)
	fmt.Fprintf(out, "Expires:  %s\n", info.ExpiresAt)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, closeStore, err := openSessionStore(ctx, cfg.Client)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := client.Logout(ctx, newTransport(cfg.Client), store); err != nil {
		// The local session is cleared even when the server call fails.
		logger.Warn("logout incomplete", "error", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}
