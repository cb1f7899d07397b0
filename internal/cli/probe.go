package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/habitatfuturo/habitat/internal/adapter"
)

func newProbeCmd() *cobra.Command {
	var timeoutSec int

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Try each candidate model and report which one answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			raw, _, err := a.llm()
			if err != nil {
				return fmt.Errorf("init LLM adapter: %w", err)
			}

			opts := a.probeOptions()
			opts.Timeout = time.Duration(timeoutSec) * time.Second
			opts.OnAttempt = func(at adapter.ProbeAttempt) {
				if at.Err != nil {
					fmt.Printf("  ✗ %-26s %6s  %v\n", at.Model, at.Duration.Round(time.Millisecond), at.Err)
					return
				}
				fmt.Printf("  ✓ %-26s %6s\n", at.Model, at.Duration.Round(time.Millisecond))
			}

			fmt.Printf("Probing %s (%d candidates)\n", a.cfg.Provider, len(opts.Candidates))
			sel := adapter.SelectModel(context.Background(), raw, opts)
			if !sel.Verified {
				fmt.Fprintf(os.Stderr, "No candidate answered; falling back to %s (unverified).\n", sel.Model)
				return nil
			}
			fmt.Printf("Selected: %s\n", sel.Model)
			return nil
		},
	}

	cmd.Flags().IntVar(&timeoutSec, "timeout", 20, "seconds per candidate")
	return cmd
}
