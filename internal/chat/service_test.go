package chat

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/catalog"
	"github.com/habitatfuturo/habitat/internal/crm"
	"github.com/habitatfuturo/habitat/internal/lead"
	"github.com/habitatfuturo/habitat/internal/transcript"
)

// fakeLLM routes probe, extraction and reply calls to canned answers.
type fakeLLM struct {
	mu         sync.Mutex
	probeOK    map[string]bool
	extraction string
	reply      string
	replyErr   error
	requests   []adapter.CompletionRequest
}

func (f *fakeLLM) Info() adapter.ModelInfo {
	return adapter.ModelInfo{Name: "fake", Provider: "test"}
}

func (f *fakeLLM) Complete(_ context.Context, req adapter.CompletionRequest) (<-chan adapter.StreamChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	ch := make(chan adapter.StreamChunk, 2)
	defer close(ch)
	switch {
	case req.UserMessage == "test":
		if !f.probeOK[req.Model] {
			return nil, errors.New("404 model not found")
		}
		ch <- adapter.StreamChunk{Text: "ok"}
	case strings.HasPrefix(req.SystemPrompt, "ERES UN MOTOR"):
		ch <- adapter.StreamChunk{Text: f.extraction}
	case f.replyErr != nil:
		ch <- adapter.StreamChunk{Error: f.replyErr}
	default:
		half := len(f.reply) / 2
		ch <- adapter.StreamChunk{Text: f.reply[:half]}
		ch <- adapter.StreamChunk{Text: f.reply[half:]}
	}
	return ch, nil
}

func (f *fakeLLM) calls(pred func(adapter.CompletionRequest) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if pred(r) {
			n++
		}
	}
	return n
}

func isExtraction(r adapter.CompletionRequest) bool {
	return strings.HasPrefix(r.SystemPrompt, "ERES UN MOTOR")
}

type fakeRecorder struct {
	turns       []string
	extractions []transcript.Extraction
}

func (r *fakeRecorder) StartConversation(id, model, provider string) error { return nil }

func (r *fakeRecorder) AppendTurn(_, role, content string) error {
	r.turns = append(r.turns, role+":"+content)
	return nil
}

func (r *fakeRecorder) RecordExtraction(e transcript.Extraction) error {
	r.extractions = append(r.extractions, e)
	return nil
}

type fixture struct {
	llm      *fakeLLM
	store    *crm.Store
	recorder *fakeRecorder
	svc      *Service
	records  []crm.Result
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	now := func() time.Time { return time.Date(2025, time.June, 9, 10, 0, 0, 0, time.UTC) }
	f := &fixture{
		llm:      &fakeLLM{reply: "¡Encantada! ¿Cuándo le viene bien la visita?"},
		store:    crm.NewStore(filepath.Join(t.TempDir(), "leads.csv"), crm.WithClock(now)),
		recorder: &fakeRecorder{},
	}
	opts := Options{
		LLM:               f.llm,
		Store:             f.store,
		Recorder:          f.recorder,
		Catalog:           catalog.Default(),
		Clock:             now,
		Model:             "gemini-1.5-flash",
		ExtractionEnabled: true,
		OnRecord:          func(r crm.Result) { f.records = append(f.records, r) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.svc = NewService(opts)
	return f
}

func (f *fixture) session(t *testing.T) *Session {
	t.Helper()
	sess, err := f.svc.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func TestNewSession_Probe(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Model = ""
		o.Probe = adapter.ProbeOptions{Candidates: []string{"a", "b", "c"}, Fallback: "z"}
	})
	f.llm.probeOK = map[string]bool{"b": true, "c": true}

	sess := f.session(t)
	if sess.Model() != "b" || !sess.Selection.Verified {
		t.Errorf("expected verified b, got %+v", sess.Selection)
	}
	if len(sess.Selection.Attempts) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(sess.Selection.Attempts))
	}
	if sess.ID == "" {
		t.Error("session id not set")
	}
	if len(sess.History) != 1 || sess.History[0].Role != adapter.RoleSystem {
		t.Fatalf("history should hold the persona only: %+v", sess.History)
	}
	if !strings.Contains(sess.History[0].Content, "Sara") || !strings.Contains(sess.History[0].Content, "Lunes, 9 de Junio de 2025") {
		t.Errorf("unexpected persona: %s", sess.History[0].Content)
	}
}

func TestNewSession_PinnedModelSkipsProbe(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)
	if sess.Model() != "gemini-1.5-flash" {
		t.Errorf("model: got %q", sess.Model())
	}
	if n := len(f.llm.requests); n != 0 {
		t.Errorf("expected no probe calls, got %d", n)
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	f := newFixture(t, nil)
	a, b := f.session(t), f.session(t)
	if a.ID == b.ID {
		t.Error("session ids must differ")
	}
}

func TestTurn_NotTriggered(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)

	res, err := f.svc.Turn(context.Background(), sess, "hola", nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Triggered || res.Record != nil {
		t.Errorf("greeting should not trigger capture: %+v", res)
	}
	if f.llm.calls(isExtraction) != 0 {
		t.Error("extraction should not be called")
	}
	if res.Reply != f.llm.reply {
		t.Errorf("reply: got %q", res.Reply)
	}
	if sess.Turns() != 2 {
		t.Errorf("expected 2 turns, got %d", sess.Turns())
	}
	if len(f.recorder.turns) != 2 || f.recorder.turns[0] != "user:hola" {
		t.Errorf("transcript: %v", f.recorder.turns)
	}
	if _, state, _ := f.store.Load(); state != crm.LoadMissing {
		t.Errorf("store should not be touched, state %v", state)
	}
}

func TestTurn_CreatesThenUpdates(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)
	ctx := context.Background()

	f.llm.extraction = "Ana | 600112233 | SKIP | REF-001"
	res, err := f.svc.Turn(ctx, sess, "Soy Ana, mi móvil es 600112233", nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if !res.Triggered || res.Notice() != NoticeCreated {
		t.Fatalf("expected created, got %+v", res)
	}

	f.llm.extraction = "SKIP | SKIP | 2025-06-12 17:00 | SKIP"
	res, err = f.svc.Turn(ctx, sess, "mejor el jueves a las 5", nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Notice() != NoticeUpdated || res.Record.Match != crm.MatchSession {
		t.Fatalf("expected session update, got %+v", res.Record)
	}

	recs, _, _ := f.store.Load()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	want := crm.Record{SessionID: sess.ID, RegisteredAt: "2025-06-09 10:00:00", Name: "Ana", Phone: "600112233", Appointment: "2025-06-12 17:00", Interest: "REF-001"}
	if recs[0] != want {
		t.Errorf("got %+v, want %+v", recs[0], want)
	}
	if len(f.records) != 2 {
		t.Errorf("OnRecord calls: got %d, want 2", len(f.records))
	}
	if len(f.recorder.extractions) != 2 || f.recorder.extractions[0].Outcome != "created" {
		t.Errorf("extractions: %+v", f.recorder.extractions)
	}
}

func TestTurn_MalformedExtractionIsSilent(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)

	f.llm.extraction = "Lo siento, no puedo ayudar con eso."
	res, err := f.svc.Turn(context.Background(), sess, "mi teléfono luego te lo doy", nil)
	if err != nil {
		t.Fatalf("Turn must not fail on extraction errors: %v", err)
	}
	if !errors.Is(res.ExtractErr, lead.ErrMalformedReply) {
		t.Errorf("expected malformed reply, got %v", res.ExtractErr)
	}
	if res.Candidate != lead.Empty() {
		t.Errorf("candidate should be all unset: %+v", res.Candidate)
	}
	if res.Notice() != "" {
		t.Errorf("no notice expected, got %q", res.Notice())
	}
	if res.Reply == "" {
		t.Error("reply should still be produced")
	}
	if len(f.recorder.extractions) != 1 || f.recorder.extractions[0].Outcome != "failed" {
		t.Errorf("extractions: %+v", f.recorder.extractions)
	}
}

func TestTurn_ReplyFailure(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)

	f.llm.extraction = "Ana | 600112233 | SKIP | GENERAL"
	f.llm.replyErr = errors.New("401 invalid api key")
	res, err := f.svc.Turn(context.Background(), sess, "soy Ana, 600112233", nil)
	if !errors.Is(err, ErrReply) {
		t.Fatalf("expected ErrReply, got %v", err)
	}
	if sess.Turns() != 0 {
		t.Errorf("failed turn must not enter history, got %d turns", sess.Turns())
	}
	if res.Record == nil || res.Record.Outcome != crm.OutcomeCreated {
		t.Errorf("capture happens before the reply: %+v", res.Record)
	}
	if len(f.recorder.turns) != 0 {
		t.Errorf("failed turn recorded: %v", f.recorder.turns)
	}
}

func TestTurn_StreamsAndCarriesHistory(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)
	ctx := context.Background()

	var out bytes.Buffer
	if _, err := f.svc.Turn(ctx, sess, "hola", &out); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if out.String() != f.llm.reply {
		t.Errorf("streamed %q", out.String())
	}

	if _, err := f.svc.Turn(ctx, sess, "¿tenéis algo con terraza?", nil); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	last := f.llm.requests[len(f.llm.requests)-1]
	if len(last.Messages) != 3 {
		t.Fatalf("expected system+user+assistant as prior history, got %d", len(last.Messages))
	}
	if last.UserMessage != "¿tenéis algo con terraza?" || last.Model != "gemini-1.5-flash" {
		t.Errorf("unexpected request: %+v", last)
	}
	if last.Stream {
		t.Error("stream should be off without a writer")
	}
}

func TestTurn_ExtractionDisabled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ExtractionEnabled = false })
	sess := f.session(t)

	res, err := f.svc.Turn(context.Background(), sess, "mi número es 600112233", nil)
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if res.Triggered || f.llm.calls(isExtraction) != 0 {
		t.Error("extraction should be disabled")
	}
}

func TestTurn_EmptyMessage(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)
	if _, err := f.svc.Turn(context.Background(), sess, "   ", nil); err == nil {
		t.Error("expected error for empty message")
	}
}

func TestUseModel(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.session(t)
	f.svc.UseModel(sess, "gemini-2.0-flash-exp")

	f.llm.extraction = "SKIP | 600112233 | SKIP | SKIP"
	if _, err := f.svc.Turn(context.Background(), sess, "600112233", nil); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	for _, r := range f.llm.requests {
		if r.Model != "gemini-2.0-flash-exp" {
			t.Errorf("request used %q", r.Model)
		}
	}
}
