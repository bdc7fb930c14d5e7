// Package llm wraps the chat and embedding providers behind small interfaces
// so the pipeline stages can be exercised with in-process fakes.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/config"
)

// Request is a single structured-output completion.
type Request struct {
	System            string
	User              string
	SchemaName        string
	SchemaDescription string
	Schema            map[string]any
}

// Client issues structured-output completions and returns the raw JSON text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient builds the chat client selected by cfg.Provider.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(cfg, logger), nil
	case config.ProviderGoogleAI:
		return NewGoogleAIClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// ExtractJSON strips markdown fences and surrounding prose from a model reply.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func withTimeout(ctx context.Context, cfg config.LLMConfig) (context.Context, context.CancelFunc) {
	if d := cfg.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
