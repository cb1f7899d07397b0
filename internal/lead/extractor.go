package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/catalog"
	"github.com/habitatfuturo/habitat/internal/clock"
	"github.com/habitatfuturo/habitat/internal/prompt"
)

// ErrMalformedReply is returned when the reply has no field delimiter.
var ErrMalformedReply = errors.New("lead: malformed extraction reply")

// Extractor asks the completion service to pull lead data out of a message.
type Extractor struct {
	llm         adapter.LLMAdapter
	catalog     catalog.Catalog
	clock       clock.Clock
	model       string
	temperature float64
	timeout     time.Duration
}

// ExtractorOptions configures NewExtractor.
type ExtractorOptions struct {
	Catalog     catalog.Catalog
	Clock       clock.Clock
	Model       string
	Temperature float64
	// Timeout bounds the extraction call. Zero means no extra bound.
	Timeout time.Duration
}

// NewExtractor creates an Extractor.
func NewExtractor(llm adapter.LLMAdapter, opts ExtractorOptions) *Extractor {
	return &Extractor{
		llm:         llm,
		catalog:     opts.Catalog,
		clock:       opts.Clock,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}
}

// SetModel changes the model used for subsequent extractions.
func (e *Extractor) SetModel(model string) {
	e.model = model
}

// Extract returns the candidate found in text. On any failure the candidate
// is Empty and the error says why; callers decide whether to surface it.
func (e *Extractor) Extract(ctx context.Context, text string) (Candidate, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	today, year := e.clock.Today()
	stream, err := e.llm.Complete(ctx, adapter.CompletionRequest{
		SystemPrompt: prompt.Extraction(today, year, e.catalog.Render(), Unset, catalog.GeneralInterest),
		UserMessage:  prompt.ExtractionTask(text),
		Model:        e.model,
		MaxTokens:    128,
		Temperature:  e.temperature,
	})
	if err != nil {
		return Empty(), fmt.Errorf("lead: extract: %w", err)
	}

	reply, err := adapter.Collect(stream)
	if err != nil {
		return Empty(), fmt.Errorf("lead: extract: %w", err)
	}

	cand, err := ParseReply(reply)
	if err != nil {
		return Empty(), err
	}
	cand.Interest = e.catalog.NormalizeInterest(cand.Interest, Unset, NotSpecified)
	return cand, nil
}

// ParseReply reads "NOMBRE | TELEFONO | CITA | INTERES". Missing trailing
// fields become Unset, extra fields are ignored and blank fields become Unset.
func ParseReply(raw string) (Candidate, error) {
	cleaned := strings.NewReplacer("\r", "", "\n", "", `"`, "", "'", "").Replace(strings.TrimSpace(raw))
	cleaned = strings.TrimSpace(cleaned)
	if !strings.Contains(cleaned, "|") {
		return Empty(), fmt.Errorf("%w: %q", ErrMalformedReply, trimForLog(cleaned, 80))
	}

	parts := strings.Split(cleaned, "|")
	for len(parts) < 4 {
		parts = append(parts, Unset)
	}

	field := func(i int) string {
		v := strings.TrimSpace(parts[i])
		if v == "" {
			return Unset
		}
		return v
	}

	return Candidate{
		Name:        field(0),
		Phone:       field(1),
		Appointment: field(2),
		Interest:    field(3),
	}, nil
}

func trimForLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
