// Package llm adapts the supported chat-completion providers to a single
// streaming interface.
package llm

import (
	"context"
	"fmt"

	"github/itish2003/pdfchat/config"
)

// Request is a single-turn chat completion: one system instruction and one
// user message. No earlier turns are ever sent.
type Request struct {
	Model  string
	System string
	User   string
}

// Stream yields incremental text fragments. Recv returns io.EOF once the
// provider signals normal completion; any other error is terminal.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider opens streaming chat completions against an upstream model.
type Provider interface {
	Name() string
	Model() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// NewProvider builds the provider selected by cfg.LLMProvider.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.LLMProvider {
	case "", "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, modelOr(cfg.LLMModel, DefaultOpenAIModel)), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, modelOr(cfg.LLMModel, DefaultGeminiModel))
	case "anthropic":
		return NewAnthropicProvider(cfg.AnthropicAPIKey, modelOr(cfg.LLMModel, DefaultAnthropicModel), cfg.AnthropicMaxTokens), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaHost, modelOr(cfg.LLMModel, DefaultOllamaModel))
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
}

func modelOr(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}
