// Package config manages global (~/.config/habitat/config.toml) and
// local (./habitat.toml) configuration for Habitat.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/catalog"
)

// LocalConfigName is the per-directory override file.
const LocalConfigName = "habitat.toml"

// Config holds every setting. Zero values in files never clear defaults.
type Config struct {
	Provider        string           `toml:"provider"`
	Model           string           `toml:"model"`
	ModelCandidates []string         `toml:"model_candidates"`
	FallbackModel   string           `toml:"fallback_model"`
	Keys            KeysConfig       `toml:"keys"`
	Ollama          OllamaConfig     `toml:"ollama"`
	Chat            ChatConfig       `toml:"chat"`
	Extraction      ExtractionConfig `toml:"extraction"`
	Store           StoreConfig      `toml:"store"`
	Admin           AdminConfig      `toml:"admin"`
	Breaker         BreakerConfig    `toml:"breaker"`
	Log             LogConfig        `toml:"log"`
	AutoExport      AutoExportConfig `toml:"auto_export"`
	Catalog         catalog.Catalog  `toml:"catalog"`
}

type KeysConfig struct {
	Anthropic string `toml:"anthropic"`
	OpenAI    string `toml:"openai"`
	Gemini    string `toml:"gemini"`
}

type OllamaConfig struct {
	Host string `toml:"host"`
}

// ChatConfig controls the visible assistant reply.
type ChatConfig struct {
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	// HistoryTokens caps the history sent with each reply; 0 sends all of it.
	HistoryTokens  int     `toml:"history_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Stream         bool    `toml:"stream"`
}

// ExtractionConfig controls the structured extraction call.
type ExtractionConfig struct {
	Enabled        bool    `toml:"enabled"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// StoreConfig locates the lead store and the transcript database.
type StoreConfig struct {
	LeadsPath    string `toml:"leads_path"`
	TranscriptDB string `toml:"transcript_db"`
	Transcripts  bool   `toml:"transcripts"`
}

type AdminConfig struct {
	Password string `toml:"password"`
}

// BreakerConfig tunes the circuit breaker around the provider.
type BreakerConfig struct {
	Enabled         bool    `toml:"enabled"`
	MaxRequests     uint32  `toml:"max_requests"`
	IntervalSeconds int     `toml:"interval_seconds"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	TripRatio       float64 `toml:"trip_ratio"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// AutoExportConfig controls regeneration of export files whenever a lead
// is created or updated.
type AutoExportConfig struct {
	Enabled bool     `toml:"enabled"`
	Formats []string `toml:"formats"`
	Dir     string   `toml:"dir"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:        adapter.ProviderGemini,
		ModelCandidates: append([]string(nil), adapter.DefaultGeminiCandidates...),
		FallbackModel:   adapter.DefaultGeminiFallback,
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		Chat: ChatConfig{
			Temperature:    0.4,
			MaxTokens:      1024,
			TimeoutSeconds: 60,
			Stream:         true,
		},
		Extraction: ExtractionConfig{
			Enabled:        true,
			Temperature:    0,
			TimeoutSeconds: 30,
		},
		Store: StoreConfig{
			LeadsPath:    "leads_inmobiliaria.csv",
			TranscriptDB: filepath.Join(".habitat", "transcripts.db"),
			Transcripts:  true,
		},
		Admin: AdminConfig{
			Password: "admin123",
		},
		Breaker: BreakerConfig{
			Enabled:         true,
			MaxRequests:     1,
			IntervalSeconds: 60,
			TimeoutSeconds:  30,
			TripRatio:       0.6,
		},
		Log: LogConfig{
			Level: "info",
		},
		AutoExport: AutoExportConfig{
			Enabled: false,
			Formats: []string{"json", "markdown"},
		},
		Catalog: catalog.Default(),
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "habitat", "config.toml"), nil
}

// Load returns the effective config for a working directory: defaults, then
// the global file, then root/habitat.toml, then environment variables.
// root/.env is loaded into the environment first without overriding
// variables that are already set.
func Load(root string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("config: load .env: %w", err)
	}

	if path, err := GlobalConfigPath(); err == nil {
		if err := decodeIfExists(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load global: %w", err)
		}
	}

	if err := decodeIfExists(filepath.Join(root, LocalConfigName), &cfg); err != nil {
		return cfg, fmt.Errorf("config: load local: %w", err)
	}

	applyEnv(&cfg)
	cfg.resolvePaths(root)
	return cfg, nil
}

func decodeIfExists(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Keys.Anthropic = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Keys.Gemini = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Keys.Gemini = v
	}
	if v := os.Getenv("HABITAT_ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
}

// resolvePaths makes relative store paths relative to root.
func (c *Config) resolvePaths(root string) {
	if root == "" {
		return
	}
	for _, p := range []*string{&c.Store.LeadsPath, &c.Store.TranscriptDB, &c.AutoExport.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// APIKey returns the configured key for the selected provider.
func (c Config) APIKey() string {
	switch strings.ToLower(c.Provider) {
	case adapter.ProviderClaude:
		return c.Keys.Anthropic
	case adapter.ProviderOpenAI:
		return c.Keys.OpenAI
	case adapter.ProviderGemini:
		return c.Keys.Gemini
	}
	return ""
}

// ExportDir is where auto export writes; defaults to the store's directory.
func (c Config) ExportDir() string {
	if c.AutoExport.Dir != "" {
		return c.AutoExport.Dir
	}
	return filepath.Dir(c.Store.LeadsPath)
}

func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ExtractionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SaveGlobal writes the global config to disk.
func SaveGlobal(cfg Config) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: create global config: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
