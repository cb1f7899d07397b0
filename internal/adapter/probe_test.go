package adapter

import (
	"context"
	"errors"
	"testing"
)

func TestSelectModel_FirstWorkingCandidate(t *testing.T) {
	llm := &scriptedLLM{fn: func(req CompletionRequest) (string, error) {
		if req.Model == "gemini-1.5-pro" {
			return "ok", nil
		}
		return "", errors.New("404 model not found")
	}}

	var seen []string
	sel := SelectModel(context.Background(), llm, ProbeOptions{
		Candidates: []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"},
		Fallback:   DefaultGeminiFallback,
		OnAttempt:  func(a ProbeAttempt) { seen = append(seen, a.Model) },
	})

	if sel.Model != "gemini-1.5-pro" || !sel.Verified {
		t.Errorf("selection: got %+v", sel)
	}
	if len(sel.Attempts) != 2 {
		t.Fatalf("attempts: got %d, want 2", len(sel.Attempts))
	}
	if sel.Attempts[0].Err == nil {
		t.Error("first attempt should record its failure")
	}
	if len(seen) != 2 {
		t.Errorf("OnAttempt calls: got %d", len(seen))
	}
	if llm.calls[0].UserMessage != "test" {
		t.Errorf("probe message: got %q", llm.calls[0].UserMessage)
	}
}

func TestSelectModel_FallbackWhenExhausted(t *testing.T) {
	llm := &scriptedLLM{fn: func(CompletionRequest) (string, error) { return "", errors.New("denied") }}
	sel := SelectModel(context.Background(), llm, ProbeOptions{
		Candidates: DefaultGeminiCandidates,
		Fallback:   DefaultGeminiFallback,
	})
	if sel.Model != DefaultGeminiFallback {
		t.Errorf("model: got %q, want %q", sel.Model, DefaultGeminiFallback)
	}
	if sel.Verified {
		t.Error("fallback must not be marked verified")
	}
	if len(sel.Attempts) != len(DefaultGeminiCandidates) {
		t.Errorf("attempts: got %d, want %d", len(sel.Attempts), len(DefaultGeminiCandidates))
	}
}

func TestSelectModel_CancelledContext(t *testing.T) {
	llm := &scriptedLLM{fn: func(CompletionRequest) (string, error) { return "ok", nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sel := SelectModel(ctx, llm, ProbeOptions{Candidates: []string{"a", "b"}, Fallback: "z"})
	if sel.Model != "z" || len(sel.Attempts) != 0 {
		t.Errorf("cancelled probe: got %+v", sel)
	}
}
