package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/adventkey/api"
	bboltstorage "github.com/jmcleod/adventkey/storage/bbolt"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the server's verification attempt log",
}

var (
	attemptsLimit int
	attemptsJSON  bool
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "List recent verification attempts",
	Long: `Reads the attempt log from the server data directory and prints the most
recent entries with a per-outcome summary. The server holds the database
lock while running; stop it or copy the file first.`,
	Args: cobra.NoArgs,
	RunE: runAttempts,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(attemptsCmd)
	attemptsCmd.Flags().IntVar(&attemptsLimit, "limit", 50, "Maximum number of entries to show (0 for all)")
	attemptsCmd.Flags().BoolVar(&attemptsJSON, "json", false, "Output results as JSON")
	attemptsCmd.Flags().StringVar(&dataDir, "data-dir", "", "Server data directory")
}

type attemptReport struct {
	Entries []api.AttemptEntry    `json:"entries"`
	Summary []attemptOutcomeCount `json:"summary"`
}

type attemptOutcomeCount struct {
	Outcome api.AttemptOutcome `json:"outcome"`
	Count   int                `json:"count"`
}

// summarizeAttempts counts entries per outcome, most frequent first.
func summarizeAttempts(entries []api.AttemptEntry) []attemptOutcomeCount {
	counts := make(map[api.AttemptOutcome]int)
	for _, e := range entries {
		counts[e.Outcome]++
	}
	out := make([]attemptOutcomeCount, 0, len(counts))
	for outcome, n := range counts {
		out = append(out, attemptOutcomeCount{Outcome: outcome, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}

func runAttempts(cmd *cobra.Command, _ []string) error {
	applyServerFlags(cmd, cfg)
	path := filepath.Join(cfg.Server.DataDir, dataFileName)
	repo, err := bboltstorage.NewRepositoryFromFile(path, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer repo.Close()

	entries, err := api.ListAttempts(repo, attemptsLimit)
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}
	report := attemptReport{Entries: entries, Summary: summarizeAttempts(entries)}

	if attemptsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printAttemptReport(cmd.OutOrStdout(), report)
	return nil
}

func printAttemptReport(w io.Writer, report attemptReport) {
	if len(report.Entries) == 0 {
		fmt.Fprintln(w, "No attempts recorded")
		return
	}
	for _, e := range report.Entries {
		detail := e.Reason
		if e.Credential != "" {
			detail = e.Credential + " " + detail
		}
		fmt.Fprintf(w, "%s  %-18s %-15s %s\n", e.CreatedAt, e.Outcome, e.ClientIP, detail)
	}
	fmt.Fprintln(w)
	for _, c := range report.Summary {
		fmt.Fprintf(w, "%-18s %d\n", c.Outcome, c.Count)
	}
}
