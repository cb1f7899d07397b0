package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/habitatfuturo/habitat/internal/adapter"
	"github.com/habitatfuturo/habitat/internal/catalog"
	"github.com/habitatfuturo/habitat/internal/chat"
	"github.com/habitatfuturo/habitat/internal/crm"
)

// cannedLLM answers extraction prompts with extraction and everything else
// with reply.
type cannedLLM struct {
	extraction string
	reply      string
	err        error
}

func (c *cannedLLM) Info() adapter.ModelInfo { return adapter.ModelInfo{Name: "canned", Provider: "test"} }

func (c *cannedLLM) Complete(_ context.Context, req adapter.CompletionRequest) (<-chan adapter.StreamChunk, error) {
	ch := make(chan adapter.StreamChunk, 1)
	switch {
	case strings.HasPrefix(req.SystemPrompt, "ERES UN MOTOR"):
		ch <- adapter.StreamChunk{Text: c.extraction}
	case c.err != nil:
		ch <- adapter.StreamChunk{Error: c.err}
	default:
		ch <- adapter.StreamChunk{Text: c.reply}
	}
	close(ch)
	return ch, nil
}

func runTestREPL(t *testing.T, llm adapter.LLMAdapter, input string, stream bool) (string, string) {
	t.Helper()
	svc := chat.NewService(chat.Options{
		LLM:               llm,
		Store:             crm.NewStore(filepath.Join(t.TempDir(), "leads.csv")),
		Catalog:           catalog.Default(),
		Model:             "test-model",
		ExtractionEnabled: true,
	})
	sess, err := svc.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	var out, status bytes.Buffer
	if err := runREPL(context.Background(), svc, sess, "Habitat Futuro", strings.NewReader(input), &out, &status, stream); err != nil {
		t.Fatalf("runREPL: %v", err)
	}
	return out.String(), status.String()
}

func TestRunREPL_ReplyAndNotice(t *testing.T) {
	llm := &cannedLLM{extraction: "Ana | 600112233 | SKIP | GENERAL", reply: "Gracias, Ana."}
	out, status := runTestREPL(t, llm, "hola\nsoy Ana, 600112233\n/salir\nnunca\n", false)

	if !strings.Contains(out, "Soy Sara, de Habitat Futuro") {
		t.Errorf("greeting missing:\n%s", out)
	}
	if strings.Count(out, "Gracias, Ana.") != 2 {
		t.Errorf("expected two replies:\n%s", out)
	}
	if strings.Count(status, chat.NoticeCreated) != 1 {
		t.Errorf("expected one created notice:\n%s", status)
	}
	if strings.Contains(out, "nunca") {
		t.Error("input after /salir must not be processed")
	}
}

func TestRunREPL_StreamsReply(t *testing.T) {
	out, _ := runTestREPL(t, &cannedLLM{reply: "Tenemos un ático precioso."}, "¿qué tenéis?\n", true)
	if strings.Count(out, "Tenemos un ático precioso.") != 1 {
		t.Errorf("streamed reply should print once:\n%s", out)
	}
}

func TestRunREPL_ReplyErrorContinues(t *testing.T) {
	llm := &cannedLLM{err: errors.New("401")}
	_, status := runTestREPL(t, llm, "hola\nhola otra vez\n", false)
	if strings.Count(status, "Error de conexión") != 2 {
		t.Errorf("expected an error line per failed turn:\n%s", status)
	}
}

func TestReplyError(t *testing.T) {
	err := fmt.Errorf("%w: %v", chat.ErrReply, adapter.ErrUnavailable)
	if !strings.Contains(replyError(err), "no está disponible") {
		t.Errorf("got %q", replyError(err))
	}
}
