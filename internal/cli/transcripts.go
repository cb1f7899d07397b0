package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/habitatfuturo/habitat/internal/transcript"
)

func newTranscriptsCmd() *cobra.Command {
	var (
		limit   int
		asJSON  bool
		capture bool
	)

	cmd := &cobra.Command{
		Use:   "transcripts [session-id]",
		Short: "List chat sessions, or print one session's turns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			store, database, err := a.transcripts()
			if err != nil {
				return err
			}
			defer database.Close()

			if len(args) == 0 {
				convs, err := store.ListConversations(limit)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(convs)
				}
				if len(convs) == 0 {
					fmt.Println("No sessions recorded yet.")
					return nil
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SESSION\tMODEL\tTURNS\tLAST ACTIVITY")
				for _, c := range convs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Model, c.Turns, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			}

			id := args[0]
			conv, err := store.GetConversation(id)
			if errors.Is(err, transcript.ErrNotFound) {
				return fmt.Errorf("no session %q", id)
			}
			if err != nil {
				return err
			}
			turns, err := store.ListTurns(id)
			if err != nil {
				return err
			}
			var extractions []transcript.Extraction
			if capture {
				if extractions, err = store.ListExtractions(id); err != nil {
					return err
				}
			}

			if asJSON {
				return printJSON(struct {
					Conversation transcript.Conversation `json:"conversation"`
					Turns        []transcript.Turn       `json:"turns"`
					Extractions  []transcript.Extraction `json:"extractions,omitempty"`
				}{conv, turns, extractions})
			}

			fmt.Printf("Session %s · %s · started %s\n\n", conv.ID, conv.Model, conv.StartedAt.Local().Format("2006-01-02 15:04"))
			for _, t := range turns {
				fmt.Printf("[%s] %s: %s\n", t.CreatedAt.Local().Format("15:04:05"), t.Role, t.Content)
			}
			if len(extractions) > 0 {
				fmt.Println("\nExtractions:")
				for _, e := range extractions {
					c := e.Candidate
					fmt.Printf("  %-9s %s | %s | %s | %s", e.Outcome, c.Name, c.Phone, c.Appointment, c.Interest)
					if e.Error != "" {
						fmt.Printf("  (%s)", e.Error)
					}
					fmt.Println()
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&capture, "extractions", false, "include extraction attempts")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
