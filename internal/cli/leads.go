package cli

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/habitatfuturo/habitat/internal/crm"
	"github.com/habitatfuturo/habitat/internal/export"
)

// errDenied is returned when the admin password does not match.
var errDenied = errors.New("acceso denegado")

func newLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Administer the lead store (password protected)",
		Long: `Inspect, export or delete the customer lead store.

Every subcommand asks for the admin password. Set HABITAT_ADMIN_PASSWORD or
[admin] password in habitat.toml to change it.`,
	}

	cmd.AddCommand(
		newLeadsStatusCmd(),
		newLeadsShowCmd(),
		newLeadsExportCmd(),
		newLeadsResetCmd(),
		newLeadsWatchCmd(),
	)
	return cmd
}

// adminApp loads the app and checks the admin password.
func adminApp() (*app, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	given, err := readPassword(os.Stdin, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	if !checkPassword(a.cfg.Admin.Password, given) {
		a.logger.Warn("admin login rejected")
		return nil, errDenied
	}
	return a, nil
}

// readPassword prompts without echo on a terminal, or reads one line
// otherwise.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Contraseña: ")
	if term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(prompt)
		return string(b), err
	}
	return readLine(in)
}

// readLine reads up to a newline one byte at a time so that later reads from
// the same file see the rest of the input.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}

func checkPassword(want, given string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(given)) == 1
}

func newLeadsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the number of stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := adminApp()
			if err != nil {
				return err
			}
			store := a.store()
			records, state, err := store.Load()
			fmt.Printf("Store:     %s (%s)\n", store.Path(), state)
			if err != nil {
				fmt.Printf("Error:     %v\n", err)
				return nil
			}
			fmt.Printf("Registros: %d\n", len(records))
			return nil
		},
	}
}

func newLeadsShowCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Preview the most recent records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := adminApp()
			if err != nil {
				return err
			}
			records, err := a.store().Tail(n)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("Sin registros.")
				return nil
			}
			return renderPreview(os.Stdout, records)
		},
	}
	cmd.Flags().IntVarP(&n, "last", "n", 3, "number of records to show")
	return cmd
}

// renderPreview writes the whitelisted columns as an aligned table.
func renderPreview(w io.Writer, records []crm.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(crm.PreviewColumns, "\t"))
	for _, r := range records {
		cells := make([]string, len(crm.PreviewColumns))
		for i, c := range crm.PreviewColumns {
			cells[i] = r.Get(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func newLeadsExportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full store",
		Long: fmt.Sprintf(`Render the full lead store in one of: %s.

Writes to stdout unless --output is given.`, strings.Join(export.ValidFormats(), ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, ok := export.Get(format)
			if !ok {
				return fmt.Errorf("unknown format %q; valid formats: %s", format, strings.Join(export.ValidFormats(), ", "))
			}
			a, err := adminApp()
			if err != nil {
				return err
			}
			records, _, err := a.store().Load()
			if err != nil {
				return err
			}
			out, err := exporter.Export(export.ExportData{
				Agency:      a.cfg.Catalog.Agency,
				GeneratedAt: time.Now(),
				Records:     records,
			})
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if output == "" {
				fmt.Print(out)
				return nil
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(os.Stderr, "Exported %d records to %s\n", len(records), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "export format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func newLeadsResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the lead store file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := adminApp()
			if err != nil {
				return err
			}
			store := a.store()
			if !yes {
				n, _ := store.Count()
				fmt.Printf("Se borrarán %d registros de %s. Escriba BORRAR para confirmar: ", n, store.Path())
				line, _ := readLine(os.Stdin)
				if strings.TrimSpace(line) != "BORRAR" {
					fmt.Println("Cancelado.")
					return nil
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := store.Reset(ctx); err != nil {
				return err
			}
			a.logger.Info("lead store reset", "path", store.Path())
			fmt.Println("Base de datos borrada.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}
