package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/catalog"
	"github.com/habitatfuturo/habitat/internal/clock"
	"github.com/habitatfuturo/habitat/internal/crm"
	"github.com/habitatfuturo/habitat/internal/lead"
	"github.com/habitatfuturo/habitat/internal/prompt"
	"github.com/habitatfuturo/habitat/internal/transcript"
)

// ErrReply is returned when the visible reply could not be produced.
var ErrReply = errors.New("chat: reply failed")

// Notices shown to the operator when a turn changed the lead store.
const (
	NoticeCreated = "Nuevo cliente registrado"
	NoticeUpdated = "Ficha actualizada"
)

// LeadStore persists extracted candidates. *crm.Store satisfies it.
type LeadStore interface {
	Upsert(ctx context.Context, cand lead.Candidate, sessionID string) (crm.Result, error)
}

// Recorder keeps transcripts. *transcript.Store satisfies it.
type Recorder interface {
	StartConversation(id, model, provider string) error
	AppendTurn(conversationID, role, content string) error
	RecordExtraction(e transcript.Extraction) error
}

// Options configures NewService.
type Options struct {
	LLM      adapter.LLMAdapter
	// ProbeLLM answers model probes; defaults to LLM.
	ProbeLLM adapter.LLMAdapter
	Store    LeadStore
	Recorder Recorder
	Catalog  catalog.Catalog
	Clock    clock.Clock
	Logger   *log.Logger
	Counter  prompt.Counter

	// Model pins the model; empty runs the probe on every new session.
	Model string
	Probe adapter.ProbeOptions

	Temperature   float64
	MaxTokens     int
	HistoryTokens int
	Timeout       time.Duration

	ExtractionEnabled     bool
	ExtractionTemperature float64
	ExtractionTimeout     time.Duration

	// OnRecord is called after an upsert that created or updated a record.
	OnRecord func(crm.Result)
}

// Service runs conversation turns.
type Service struct {
	opts Options
	log  *log.Logger
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	if opts.ProbeLLM == nil {
		opts.ProbeLLM = opts.LLM
	}
	if opts.Counter == nil {
		opts.Counter = prompt.RuneCounter{}
	}
	return &Service{opts: opts, log: logger}
}

// TurnResult describes what a turn did besides replying.
type TurnResult struct {
	Reply string
	// Triggered is true when the message was sent to extraction.
	Triggered  bool
	Candidate  lead.Candidate
	ExtractErr error
	// Record is set when the store was written.
	Record *crm.Result
}

// Notice returns the operator notification for this turn, or "".
func (r TurnResult) Notice() string {
	if r.Record == nil {
		return ""
	}
	switch r.Record.Outcome {
	case crm.OutcomeCreated:
		return NoticeCreated
	case crm.OutcomeUpdated:
		return NoticeUpdated
	}
	return ""
}

// NewSession selects the model, seeds the persona and registers the
// transcript.
func (s *Service) NewSession(ctx context.Context) (*Session, error) {
	sel := adapter.Selection{Model: s.opts.Model, Verified: true}
	if sel.Model == "" {
		sel = adapter.SelectModel(ctx, s.opts.ProbeLLM, s.opts.Probe)
		for _, a := range sel.Attempts {
			if a.Err != nil {
				s.log.Debug("model probe miss", "model", a.Model, "err", a.Err)
			}
		}
		if !sel.Verified {
			s.log.Warn("no candidate model answered, using fallback", "model", sel.Model)
		}
	}
	if sel.Model == "" {
		return nil, fmt.Errorf("chat: no model available")
	}

	now := s.opts.Clock()
	today, _ := s.opts.Clock.Today()

	sess := &Session{
		ID:        newSessionID(),
		StartedAt: now,
		Selection: sel,
		History: []adapter.Message{{
			Role:    adapter.RoleSystem,
			Content: prompt.Persona(today, s.opts.Catalog.Agency, s.opts.Catalog.Render()),
		}},
	}
	sess.extractor = lead.NewExtractor(s.opts.LLM, lead.ExtractorOptions{
		Catalog:     s.opts.Catalog,
		Clock:       s.opts.Clock,
		Model:       sel.Model,
		Temperature: s.opts.ExtractionTemperature,
		Timeout:     s.opts.ExtractionTimeout,
	})

	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.StartConversation(sess.ID, sel.Model, s.opts.LLM.Info().Provider); err != nil {
			s.log.Warn("transcript unavailable", "session", sess.ID, "err", err)
		}
	}
	return sess, nil
}

// UseModel switches the session to another model without probing.
func (s *Service) UseModel(sess *Session, model string) {
	sess.Selection = adapter.Selection{Model: model, Verified: false}
	sess.extractor.SetModel(model)
}

// Turn handles one user message. Capture failures are logged and never
// returned; only a failed reply yields an error, wrapping ErrReply. When w is
// non-nil the reply is streamed to it as it arrives.
func (s *Service) Turn(ctx context.Context, sess *Session, text string, w io.Writer) (TurnResult, error) {
	var res TurnResult
	text = strings.TrimSpace(text)
	if text == "" {
		return res, fmt.Errorf("chat: empty message")
	}

	if s.opts.ExtractionEnabled && lead.ShouldExtract(text) {
		res.Triggered = true
		s.capture(ctx, sess, text, &res)
	}

	reply, err := s.reply(ctx, sess, text, w)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrReply, err)
	}
	res.Reply = reply

	sess.History = append(sess.History,
		adapter.Message{Role: adapter.RoleUser, Content: text},
		adapter.Message{Role: adapter.RoleAssistant, Content: reply},
	)
	s.record(sess.ID, adapter.RoleUser, text)
	s.record(sess.ID, adapter.RoleAssistant, reply)
	return res, nil
}

// capture runs extraction and upsert for a triggered message.
func (s *Service) capture(ctx context.Context, sess *Session, text string, res *TurnResult) {
	cand, err := sess.extractor.Extract(ctx, text)
	res.Candidate = cand
	ex := transcript.Extraction{ConversationID: sess.ID, Message: text, Candidate: cand}

	if err != nil {
		res.ExtractErr = err
		s.log.Warn("extraction failed", "session", sess.ID, "err", err)
		ex.Outcome, ex.Error = "failed", err.Error()
		s.recordExtraction(ex)
		// The candidate is all unset; the store is still read and written
		// back, which keeps the file shape normalized.
	}

	result, err := s.opts.Store.Upsert(ctx, cand, sess.ID)
	if err != nil {
		s.log.Warn("lead store write failed", "session", sess.ID, "err", err)
		if ex.Outcome == "" {
			ex.Outcome, ex.Error = "store_error", err.Error()
			s.recordExtraction(ex)
		}
		return
	}
	if result.Load == crm.LoadCorrupt {
		s.log.Warn("lead store was corrupt and has been rebuilt", "err", result.LoadErr)
	}
	res.Record = &result
	s.log.Debug("lead upsert", "session", sess.ID, "outcome", result.Outcome, "match", result.Match)

	if ex.Outcome == "" {
		ex.Outcome = result.Outcome.String()
		s.recordExtraction(ex)
	}
	if result.Outcome.Changed() && s.opts.OnRecord != nil {
		s.opts.OnRecord(result)
	}
}

// reply asks for the assistant answer over the trimmed history.
func (s *Service) reply(ctx context.Context, sess *Session, text string, w io.Writer) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	history := append(append([]adapter.Message(nil), sess.History...),
		adapter.Message{Role: adapter.RoleUser, Content: text})
	history = prompt.TrimHistory(history, s.opts.HistoryTokens, s.opts.Counter)
	prior, last := history[:len(history)-1], history[len(history)-1]

	stream, err := s.opts.LLM.Complete(ctx, adapter.CompletionRequest{
		Messages:    prior,
		UserMessage: last.Content,
		Model:       sess.Model(),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
		Stream:      w != nil,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		b.WriteString(chunk.Text)
		if w != nil {
			_, _ = io.WriteString(w, chunk.Text)
		}
	}
	return b.String(), nil
}

func (s *Service) record(sessionID, role, content string) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.AppendTurn(sessionID, role, content); err != nil {
		s.log.Warn("transcript write failed", "session", sessionID, "err", err)
	}
}

func (s *Service) recordExtraction(e transcript.Extraction) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.RecordExtraction(e); err != nil {
		s.log.Warn("transcript write failed", "session", e.ConversationID, "err", err)
	}
}
