package adapter

import (
	"context"
	"fmt"
	"time"
)

// DefaultGeminiCandidates is the preference order tried when no model is configured.
var DefaultGeminiCandidates = []string{
	"gemini-1.5-flash",
	"gemini-1.5-flash-001",
	"gemini-1.5-flash-002",
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro",
	"gemini-1.5-pro-001",
	"gemini-1.5-pro-002",
	"gemini-1.5-pro-latest",
	"gemini-pro",
	"gemini-1.0-pro",
	"gemini-2.0-flash-exp",
}

// DefaultGeminiFallback is returned unverified when every candidate fails.
const DefaultGeminiFallback = "gemini-pro"

// ProbeAttempt records one candidate check. Err is nil on success.
type ProbeAttempt struct {
	Model    string
	Err      error
	Duration time.Duration
}

// Selection is the outcome of SelectModel.
type Selection struct {
	Model string
	// Verified is false when Model is the fallback and no candidate answered.
	Verified bool
	Attempts []ProbeAttempt
}

// ProbeOptions controls SelectModel.
type ProbeOptions struct {
	Candidates []string
	Fallback   string
	// Timeout bounds each individual attempt. Zero means 20s.
	Timeout time.Duration
	// OnAttempt, when set, is called after every attempt.
	OnAttempt func(ProbeAttempt)
}

// SelectModel tries each candidate against a minimal completion and returns
// the first that answers. Failures are recorded, never returned.
func SelectModel(ctx context.Context, llm LLMAdapter, opts ProbeOptions) Selection {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	var sel Selection
	for _, model := range opts.Candidates {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		err := probe(ctx, llm, model, timeout)
		attempt := ProbeAttempt{Model: model, Err: err, Duration: time.Since(start)}
		sel.Attempts = append(sel.Attempts, attempt)
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt)
		}
		if err == nil {
			sel.Model = model
			sel.Verified = true
			return sel
		}
	}

	sel.Model = opts.Fallback
	return sel
}

func probe(ctx context.Context, llm LLMAdapter, model string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stream, err := llm.Complete(ctx, CompletionRequest{
		UserMessage: "test",
		Model:       model,
		MaxTokens:   16,
	})
	if err != nil {
		return fmt.Errorf("probe %s: %w", model, err)
	}
	if _, err := Collect(stream); err != nil {
		return fmt.Errorf("probe %s: %w", model, err)
	}
	return nil
}
