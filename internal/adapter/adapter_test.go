package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// scriptedLLM answers each Complete call with the result of fn.
type scriptedLLM struct {
	fn    func(req CompletionRequest) (string, error)
	calls []CompletionRequest
}

func (s *scriptedLLM) Info() ModelInfo { return ModelInfo{Name: "scripted", Provider: "test"} }

func (s *scriptedLLM) Complete(_ context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	s.calls = append(s.calls, req)
	text, err := s.fn(req)
	ch := make(chan StreamChunk, 1)
	if err != nil {
		ch <- StreamChunk{Error: err}
	} else {
		ch <- StreamChunk{Text: text}
	}
	close(ch)
	return ch, nil
}

func TestNew_ValidProviders(t *testing.T) {
	for _, provider := range []string{ProviderClaude, ProviderOpenAI, ProviderGemini, ProviderOllama} {
		t.Run(provider, func(t *testing.T) {
			a, err := New(provider, "test-key", "")
			if err != nil {
				t.Fatalf("New(%q) error: %v", provider, err)
			}
			if a == nil {
				t.Fatalf("New(%q) returned nil adapter", provider)
			}
			if info := a.Info(); info.Provider != provider {
				t.Errorf("Info().Provider = %q, want %q", info.Provider, provider)
			}
		})
	}
}

func TestNew_InvalidProvider(t *testing.T) {
	if _, err := New("invalid", "key", ""); err == nil {
		t.Error("expected error for invalid provider")
	}
}

func TestCompletionRequest_Split(t *testing.T) {
	req := CompletionRequest{
		SystemPrompt: "base",
		Messages: []Message{
			{Role: RoleSystem, Content: "persona"},
			{Role: RoleUser, Content: "hola"},
			{Role: RoleAssistant, Content: "¿en qué puedo ayudarte?"},
		},
		UserMessage: "busco un loft",
	}
	system, turns := req.split()
	if system != "base\n\npersona" {
		t.Errorf("system: got %q", system)
	}
	if len(turns) != 3 {
		t.Fatalf("turns: got %d, want 3", len(turns))
	}
	if turns[2].Role != RoleUser || turns[2].Content != "busco un loft" {
		t.Errorf("last turn: got %+v", turns[2])
	}
}

func TestCollect(t *testing.T) {
	ch := make(chan StreamChunk, 3)
	ch <- StreamChunk{Text: "Hola "}
	ch <- StreamChunk{Text: "mundo"}
	close(ch)
	got, err := Collect(ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hola mundo" {
		t.Errorf("got %q", got)
	}

	failing := make(chan StreamChunk, 2)
	failing <- StreamChunk{Text: "parcial"}
	failing <- StreamChunk{Error: errors.New("boom")}
	close(failing)
	if _, err := Collect(failing); err == nil {
		t.Error("expected stream error")
	}
}

func TestBuildGeminiRequest_Roles(t *testing.T) {
	body := buildGeminiRequest(CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "Eres Sara"},
			{Role: RoleUser, Content: "hola"},
			{Role: RoleAssistant, Content: "hola, ¿qué buscas?"},
		},
		UserMessage: "un ático",
		Temperature: 0.4,
	})
	if body.SystemInstruction == nil || body.SystemInstruction.Parts[0].Text != "Eres Sara" {
		t.Fatalf("system instruction: got %+v", body.SystemInstruction)
	}
	if len(body.Contents) != 3 {
		t.Fatalf("contents: got %d, want 3", len(body.Contents))
	}
	if body.Contents[1].Role != "model" {
		t.Errorf("assistant role should map to model, got %q", body.Contents[1].Role)
	}
	if body.GenerationConfig.MaxOutputTokens != 2048 {
		t.Errorf("max tokens default: got %d", body.GenerationConfig.MaxOutputTokens)
	}
}

func TestGeminiComplete_NonStreaming(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"candidates": [{
				"content": {
					"parts": [{"text": "Hola desde Gemini"}],
					"role": "model"
				}
			}]
		}`)
	}))
	defer server.Close()

	g := &geminiAdapter{apiKey: "test-key", baseURL: server.URL, client: server.Client()}

	stream, err := g.Complete(context.Background(), CompletionRequest{UserMessage: "hola", Model: "gemini-pro"})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	text, err := Collect(stream)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if text != "Hola desde Gemini" {
		t.Errorf("got %q, want %q", text, "Hola desde Gemini")
	}
	if gotPath != "/models/gemini-pro:generateContent" {
		t.Errorf("path: got %q", gotPath)
	}
}

func TestGeminiComplete_StreamingSSE(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, text := range []string{"Hola ", "Ana"} {
			data, _ := json.Marshal(geminiGenerateResponse{
				Candidates: []geminiCandidate{{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer server.Close()

	g := &geminiAdapter{apiKey: "test-key", baseURL: server.URL, client: server.Client()}
	stream, err := g.Complete(context.Background(), CompletionRequest{UserMessage: "hola", Stream: true})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	got, err := Collect(stream)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if got != "Hola Ana" {
		t.Errorf("streamed text: got %q, want %q", got, "Hola Ana")
	}
}

func TestGeminiComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key invalid"}}`)
	}))
	defer server.Close()

	g := &geminiAdapter{apiKey: "bad-key", client: server.Client()}
	_, err := g.doGenerate(context.Background(), server.URL+"/models/gemini-pro:generateContent?key=bad-key",
		[]byte(`{"contents":[{"role":"user","parts":[{"text":"Hello"}]}]}`))
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error should mention status code 403: %v", err)
	}
}

func TestOllamaComplete_NonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req ollamaChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem {
			t.Errorf("messages: got %+v", req.Messages)
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"Claro"},"done":true}`+"\n")
	}))
	defer server.Close()

	o := NewOllama(server.URL + "/")
	stream, err := o.Complete(context.Background(), CompletionRequest{SystemPrompt: "Eres Sara", UserMessage: "hola"})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	got, err := Collect(stream)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if got != "Claro" {
		t.Errorf("got %q", got)
	}
}
