// Package ai talks to LLM providers for module selection and result
// analysis. Providers share a single completion interface; the prompts and
// response schemas live in selector.go and analyzer.go.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// Request is a single completion request. JSONMode asks the provider for a
// machine-parseable JSON body where the API supports it.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// Client is a minimal LLM completion client.
type Client interface {
	// Complete returns the raw text of the model's reply.
	Complete(ctx context.Context, req Request) (string, error)
	// Name identifies the provider and model, e.g. "openai/gpt-4o".
	Name() string
}

// NewClient builds a provider client. The gemini provider dials out during
// construction, hence the context.
func NewClient(ctx context.Context, provider, apiKey, model string) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", provider)
	}
	switch provider {
	case "openai":
		return newOpenAI(apiKey, model), nil
	case "anthropic":
		return newAnthropic(apiKey, model), nil
	case "gemini":
		return newGemini(ctx, apiKey, model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// stripFences removes a surrounding markdown code fence. Models asked for
// "JSON only" still wrap the body in ```json fences often enough that every
// caller wants this.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
