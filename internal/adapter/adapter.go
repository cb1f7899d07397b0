// Package adapter provides a unified interface for text-completion providers.
package adapter

import (
	"context"
	"fmt"
	"strings"
)

// Provider name constants.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamChunk is a single token or error delivered during streaming.
type StreamChunk struct {
	Text  string
	Error error
}

// CompletionRequest holds the parameters for a completion call.
type CompletionRequest struct {
	SystemPrompt string
	// Messages is the prior conversation. System entries are merged into the
	// provider's system instruction.
	Messages    []Message
	UserMessage string
	Model       string
	MaxTokens   int
	Temperature float64
	Stream      bool
}

// ModelInfo describes the capabilities of a model.
type ModelInfo struct {
	Name              string
	Provider          string
	MaxContextWindow  int
	SupportsStreaming bool
}

// LLMAdapter is the common interface all provider adapters implement.
type LLMAdapter interface {
	// Complete sends a prompt and streams the response.
	Complete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// Info returns metadata about the adapter/model.
	Info() ModelInfo
}

// New constructs the LLMAdapter for the named provider.
//
//   - provider: "claude", "openai", "gemini", "ollama"
//   - apiKey: provider API key (empty = read from env in the concrete adapter)
//   - ollamaHost: base URL for the Ollama server (used only when provider == "ollama")
func New(provider, apiKey, ollamaHost string) (LLMAdapter, error) {
	switch provider {
	case ProviderClaude:
		return NewClaude(apiKey), nil
	case ProviderOpenAI:
		return NewOpenAI(apiKey), nil
	case ProviderGemini:
		return NewGemini(apiKey), nil
	case ProviderOllama:
		host := ollamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllama(host), nil
	default:
		return nil, fmt.Errorf("adapter: unknown provider %q; valid providers: claude, openai, gemini, ollama", provider)
	}
}

// Collect drains a completion stream into a single string.
func Collect(stream <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return sb.String(), chunk.Error
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}

// split separates the request into one system text and the ordered
// user/assistant turns, with UserMessage appended last.
func (r CompletionRequest) split() (string, []Message) {
	var system []string
	if r.SystemPrompt != "" {
		system = append(system, r.SystemPrompt)
	}
	turns := make([]Message, 0, len(r.Messages)+1)
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if r.UserMessage != "" {
		turns = append(turns, Message{Role: RoleUser, Content: r.UserMessage})
	}
	return strings.Join(system, "\n\n"), turns
}
