package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/chat"
	"github.com/habitatfuturo/habitat/internal/clock"
)

func newChatCmd() *cobra.Command {
	var (
		model    string
		noStream bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Sara, the agency's assistant",
		Long: `Start an interactive conversation. Messages that look like contact details
or appointment requests are sent to a structured extraction step and merged
into the lead store; the operator sees a short notice when a customer record
is created or updated.

Commands inside the chat:
  /modelo <name>   switch model for the rest of the session
  /salir           leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if model != "" {
				a.cfg.Model = model
			}

			raw, guarded, err := a.llm()
			if err != nil {
				return fmt.Errorf("init LLM adapter: %w", err)
			}

			store := a.store()
			opts := chat.Options{
				LLM:                   guarded,
				ProbeLLM:              raw,
				Store:                 store,
				Catalog:               a.cfg.Catalog,
				Clock:                 clock.System,
				Logger:                a.logger,
				Counter:               a.counter(),
				Model:                 a.cfg.Model,
				Probe:                 a.probeOptions(),
				Temperature:           a.cfg.Chat.Temperature,
				MaxTokens:             a.cfg.Chat.MaxTokens,
				HistoryTokens:         a.cfg.Chat.HistoryTokens,
				Timeout:               a.cfg.Chat.Timeout(),
				ExtractionEnabled:     a.cfg.Extraction.Enabled,
				ExtractionTemperature: a.cfg.Extraction.Temperature,
				ExtractionTimeout:     a.cfg.Extraction.Timeout(),
				OnRecord:              autoExporter(a.cfg, store, a.logger),
			}

			if a.cfg.Store.Transcripts {
				rec, database, err := a.transcripts()
				if err != nil {
					a.logger.Warn("transcripts disabled", "err", err)
				} else {
					defer database.Close()
					opts.Recorder = rec
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			svc := chat.NewService(opts)
			sess, err := newSessionWithSpinner(ctx, svc, opts.Model == "")
			if err != nil {
				return err
			}

			stream := a.cfg.Chat.Stream && !noStream
			return runREPL(ctx, svc, sess, a.cfg.Catalog.Agency, os.Stdin, os.Stdout, os.Stderr, stream)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model to use; skips the probe")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "print replies only when complete")

	return cmd
}

// newSessionWithSpinner shows a spinner while the model probe runs.
func newSessionWithSpinner(ctx context.Context, svc *chat.Service, probing bool) (*chat.Session, error) {
	if !probing {
		return svc.NewSession(ctx)
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("  Conectando con el servidor..."),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				_ = bar.Add(1)
			}
		}
	}()
	sess, err := svc.NewSession(ctx)
	close(done)
	_ = bar.Finish()
	return sess, err
}

// runREPL reads one message per line until EOF, /salir or cancellation.
func runREPL(ctx context.Context, svc *chat.Service, sess *chat.Session, agency string, in io.Reader, out, status io.Writer, stream bool) error {
	fmt.Fprintf(status, "Sesión %s · modelo %s", sess.ID, sess.Model())
	if !sess.Selection.Verified {
		fmt.Fprint(status, " (sin verificar)")
	}
	fmt.Fprintln(status)
	fmt.Fprintf(out, "Sara: ¡Hola! Soy Sara, de %s. ¿Qué tipo de vivienda está buscando?\n", agency)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nTú: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/salir" || line == "/exit":
			return nil
		case strings.HasPrefix(line, "/modelo "):
			m := strings.TrimSpace(strings.TrimPrefix(line, "/modelo "))
			svc.UseModel(sess, m)
			fmt.Fprintf(status, "  modelo: %s\n", m)
			continue
		}

		fmt.Fprint(out, "Sara: ")
		var w io.Writer
		if stream {
			w = out
		}
		res, err := svc.Turn(ctx, sess, line, w)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintf(status, "  %s\n", replyError(err))
			continue
		}
		if !stream {
			fmt.Fprint(out, res.Reply)
		}
		fmt.Fprintln(out)
		if n := res.Notice(); n != "" {
			fmt.Fprintf(status, "  ✓ %s\n", n)
		}
	}
}

// replyError renders a failed turn for the end user.
func replyError(err error) string {
	if errors.Is(err, adapter.ErrUnavailable) {
		return "Error: el servicio no está disponible, inténtelo en unos segundos."
	}
	return fmt.Sprintf("Error de conexión. Verifica la API Key. (%v)", err)
}
