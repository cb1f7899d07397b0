package lead

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/catalog"
	"github.com/habitatfuturo/habitat/internal/clock"
)

// replyLLM returns a canned reply or error.
type replyLLM struct {
	reply string
	err   error
	last  adapter.CompletionRequest
}

func (r *replyLLM) Info() adapter.ModelInfo { return adapter.ModelInfo{Name: "fake"} }

func (r *replyLLM) Complete(_ context.Context, req adapter.CompletionRequest) (<-chan adapter.StreamChunk, error) {
	r.last = req
	ch := make(chan adapter.StreamChunk, 1)
	if r.err != nil {
		ch <- adapter.StreamChunk{Error: r.err}
	} else {
		ch <- adapter.StreamChunk{Text: r.reply}
	}
	close(ch)
	return ch, nil
}

func fixedClock() clock.Clock {
	return func() time.Time { return time.Date(2025, time.June, 9, 10, 0, 0, 0, time.UTC) }
}

func TestParseReply_FourFields(t *testing.T) {
	got, err := ParseReply("Ana|600112233|2025-06-10 17:00|REF-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Candidate{Name: "Ana", Phone: "600112233", Appointment: "2025-06-10 17:00", Interest: "REF-001"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseReply_PadsMissingFields(t *testing.T) {
	got, err := ParseReply("Carlos|SKIP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Candidate{Name: "Carlos", Phone: Unset, Appointment: Unset, Interest: Unset}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseReply_StripsQuotesAndWhitespace(t *testing.T) {
	got, err := ParseReply("  \"Ana | 600 11 22 33 | mañana (Tarde) | 'REF-004'\"\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Ana" || got.Phone != "600 11 22 33" || got.Appointment != "mañana (Tarde)" || got.Interest != "REF-004" {
		t.Errorf("got %+v", got)
	}
}

func TestParseReply_ExtraAndBlankFields(t *testing.T) {
	got, err := ParseReply("Ana||| REF-002 |sobra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Candidate{Name: "Ana", Phone: Unset, Appointment: Unset, Interest: "REF-002"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParseReply_NoDelimiter(t *testing.T) {
	got, err := ParseReply("Lo siento, no puedo ayudar con eso.")
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("expected ErrMalformedReply, got %v", err)
	}
	if got != Empty() {
		t.Errorf("expected empty candidate, got %+v", got)
	}
}

func TestExtractor_Extract(t *testing.T) {
	llm := &replyLLM{reply: "Ana | 600112233 | 2025-06-10 17:00 | ref-001"}
	ex := NewExtractor(llm, ExtractorOptions{Catalog: catalog.Default(), Clock: fixedClock(), Model: "gemini-pro", Temperature: 0.4})

	got, err := ex.Extract(context.Background(), "soy Ana, 600112233, quiero ver el ático mañana a las 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Interest != "REF-001" {
		t.Errorf("interest should be normalized, got %q", got.Interest)
	}
	if llm.last.Model != "gemini-pro" {
		t.Errorf("model: got %q", llm.last.Model)
	}
	if !strings.Contains(llm.last.SystemPrompt, "Hoy es Lunes, 9 de Junio de 2025. Año: 2025.") {
		t.Error("system prompt should carry the temporal context")
	}
	if !strings.Contains(llm.last.SystemPrompt, "REF-004: Chalet Adosado en Aravaca") {
		t.Error("system prompt should carry the inventory")
	}
	if !strings.Contains(llm.last.UserMessage, "quiero ver el ático") {
		t.Errorf("user message: got %q", llm.last.UserMessage)
	}
}

func TestExtractor_UnknownInterestBecomesGeneral(t *testing.T) {
	llm := &replyLLM{reply: "SKIP|911223344|SKIP|piso bonito"}
	ex := NewExtractor(llm, ExtractorOptions{Catalog: catalog.Default(), Clock: fixedClock()})
	got, err := ex.Extract(context.Background(), "llamame al 911223344")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Interest != catalog.GeneralInterest {
		t.Errorf("interest: got %q", got.Interest)
	}
	if got.Name != Unset {
		t.Errorf("name: got %q", got.Name)
	}
}

func TestExtractor_ServiceFailureDegrades(t *testing.T) {
	llm := &replyLLM{err: errors.New("503 unavailable")}
	ex := NewExtractor(llm, ExtractorOptions{Catalog: catalog.Default(), Clock: fixedClock()})
	got, err := ex.Extract(context.Background(), "llamame al 911223344")
	if err == nil {
		t.Fatal("expected error to be reported")
	}
	if got != Empty() {
		t.Errorf("expected empty candidate, got %+v", got)
	}
}

func TestCandidate_Helpers(t *testing.T) {
	if !Empty().IsEmpty() || Empty().HasIdentity() {
		t.Error("Empty() should carry nothing")
	}
	c := Candidate{Name: Unset, Phone: "600112233", Appointment: NotSpecified, Interest: Unset}
	if !c.HasIdentity() {
		t.Error("phone should count as identity")
	}
	if c.IsEmpty() {
		t.Error("candidate with phone is not empty")
	}
	if !IsUnset(" No especificado ") || IsUnset("Ana") {
		t.Error("IsUnset misclassified")
	}
}
