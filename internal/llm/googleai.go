package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/config"
)

// GoogleAIClient uses Gemini through langchaingo. Gemini has no strict schema
// mode here, so the schema is spelled out in the prompt and JSON mode is forced.
type GoogleAIClient struct {
	model  llms.Model
	cfg    config.LLMConfig
	logger *zap.Logger
}

func NewGoogleAIClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GoogleAIClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini model: %w", err)
	}
	return &GoogleAIClient{model: model, cfg: cfg, logger: logger.Named("googleai")}, nil
}

func (c *GoogleAIClient) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, c.cfg)
	defer cancel()

	prompt, err := singlePrompt(req)
	if err != nil {
		return "", err
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	c.logger.Debug("gemini completion", zap.String("schema", req.SchemaName), zap.Int("bytes", len(out)))
	return ExtractJSON(out), nil
}

func singlePrompt(req Request) (string, error) {
	var b strings.Builder
	b.WriteString(req.System)
	if req.Schema != nil {
		schema, err := json.MarshalIndent(req.Schema, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode response schema: %w", err)
		}
		b.WriteString("\n\nRespond with a single JSON object that conforms to this JSON Schema and nothing else:\n")
		b.Write(schema)
	}
	b.WriteString("\n\n")
	b.WriteString(req.User)
	return b.String(), nil
}
