package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/config"
	"github.com/habitatfuturo/habitat/internal/crm"
	"github.com/habitatfuturo/habitat/internal/db"
	"github.com/habitatfuturo/habitat/internal/prompt"
	"github.com/habitatfuturo/habitat/internal/transcript"
)

// app bundles what every command needs.
type app struct {
	root   string
	cfg    config.Config
	logger *log.Logger
}

func loadApp() (*app, error) {
	root, err := filepath.Abs(flagDir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger, err := newLogger(level)
	if err != nil {
		return nil, err
	}
	return &app{root: root, cfg: cfg, logger: logger}, nil
}

func newLogger(level string) (*log.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           lvl,
		Prefix:          "habitat",
	}), nil
}

// llm builds the configured provider. guarded wraps raw in the circuit
// breaker when enabled; the model probe must use raw since rejected
// candidates would otherwise open the circuit.
func (a *app) llm() (raw, guarded adapter.LLMAdapter, err error) {
	raw, err = adapter.New(a.cfg.Provider, a.cfg.APIKey(), a.cfg.Ollama.Host)
	if err != nil {
		return nil, nil, err
	}
	if !a.cfg.Breaker.Enabled {
		return raw, raw, nil
	}
	b := a.cfg.Breaker
	guarded = adapter.WithBreaker(raw, adapter.BreakerSettings{
		Name:        a.cfg.Provider,
		MaxRequests: b.MaxRequests,
		Interval:    time.Duration(b.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(b.TimeoutSeconds) * time.Second,
		TripRatio:   b.TripRatio,
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.logger.Warn("provider circuit", "provider", name, "from", from.String(), "to", to.String())
		},
	})
	return raw, guarded, nil
}

func (a *app) probeOptions() adapter.ProbeOptions {
	return adapter.ProbeOptions{
		Candidates: a.cfg.ModelCandidates,
		Fallback:   a.cfg.FallbackModel,
	}
}

func (a *app) store() *crm.Store {
	return crm.NewStore(a.cfg.Store.LeadsPath)
}

// transcripts opens the transcript database. Callers must close the DB.
func (a *app) transcripts() (*transcript.Store, *db.DB, error) {
	database, err := db.Open(a.cfg.Store.TranscriptDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open transcripts: %w", err)
	}
	return transcript.NewStore(database), database, nil
}

// counter returns the tiktoken counter, or a rune counter if the encoding
// cannot be loaded.
func (a *app) counter() prompt.Counter {
	tok, err := prompt.NewTokenizer()
	if err != nil {
		a.logger.Debug("tokenizer unavailable, counting runes", "err", err)
		return prompt.RuneCounter{}
	}
	return tok
}
