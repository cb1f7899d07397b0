// Package cli defines the Cobra command tree for the habitat CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Persistent flags.
var (
	flagDir      string
	flagLogLevel string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "habitat",
	Short: "Lead-capture assistant for the Habitat Futuro real-estate agency",
	Long: `Habitat runs Sara, a conversational sales assistant that answers questions
about the agency's listings while quietly capturing customer details (name,
phone, requested visit, property of interest) into a CSV lead store.

Run 'habitat chat' to start a conversation, or 'habitat leads status' to
inspect the store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".", "working directory holding habitat.toml, .env and the lead store")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	rootCmd.AddCommand(
		newChatCmd(),
		newProbeCmd(),
		newLeadsCmd(),
		newTranscriptsCmd(),
		newMCPCmd(),
		newSetupCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("habitat %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
