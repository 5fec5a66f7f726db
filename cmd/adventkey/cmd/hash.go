package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/internal/config"
)

var (
	hashFallback  bool
	hashBirthdate bool
)

var hashCmd = &cobra.Command{
	Use:   "hash <input...>",
	Short: "Print the digest the client would send for an input",
	Long: `Joins the arguments with single spaces and prints their digest. With
--birthdate the input is normalized as a birthdate first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <birthdate...>",
	Short: "Print the canonical DD/MM/YYYY form of a birthdate",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), accesscode.NormalizeBirthdate(strings.Join(args, " ")))
		return err
	},
}

func init() {
	rootCmd.AddCommand(hashCmd, normalizeCmd)
	hashCmd.Flags().BoolVar(&hashFallback, "fallback", false, "Use the rolling fallback hash (test mode only)")
	hashCmd.Flags().BoolVar(&hashBirthdate, "birthdate", false, "Normalize the input as a birthdate before hashing")
}

func runHash(cmd *cobra.Command, args []string) error {
	hasher, err := accesscode.NewHasher(hashFallback, cfg.Mode == config.ModeTest)
	if err != nil {
		return err
	}
	input := strings.Join(args, " ")
	if hashBirthdate {
		input = accesscode.NormalizeBirthdate(input)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hasher.Hash(input))
	return err
}
