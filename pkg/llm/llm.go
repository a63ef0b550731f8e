// Package llm abstracts the analysis providers behind a single completion
// interface. The orchestrator's stage executors build prompts, hand them to a
// Provider, and parse the JSON documents that come back.
package llm

import (
	"context"
	"fmt"

	"github.com/socworks/argus/pkg/models"
)

// Request is one completion call. Stage identifies the requesting pipeline
// stage so the mock provider can shape its canned answer; real providers
// ignore it.
type Request struct {
	Stage       models.Stage
	System      string
	Prompt      string
	Temperature float64
}

// Provider produces a completion for a request. Implementations are safe for
// concurrent use by multiple workflow runners.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	// Provider is one of "openai", "gemini", "mock" (alias "mock-data").
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	// TimeoutSeconds bounds a single completion HTTP call.
	TimeoutSeconds int
}

// New builds the provider named by the config. The mock provider needs no
// credentials and keeps the whole pipeline runnable offline.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}

		return NewOpenAIProvider(cfg), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}

		return NewGeminiProvider(cfg), nil
	case "mock", "mock-data", "":
		return NewMockProvider(0), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
