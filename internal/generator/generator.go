package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/llm"
	"github.com/spec-kit/ticket-router/internal/tokenizer"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

const (
	schemaName = "cited_answer"

	// DefaultContextBudget bounds the context sent with one question, in tokens.
	DefaultContextBudget = 6000
)

type modelAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Generator writes a cited answer from retrieved chunks.
type Generator struct {
	client    llm.Client
	validator *llm.Validator
	schema    map[string]any
	tokenizer tokenizer.Tokenizer
	budget    int
	logger    *zap.Logger
}

func New(client llm.Client, tok tokenizer.Tokenizer, budget int, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tok == nil {
		tok = tokenizer.Runes{}
	}
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	schema := responseSchema()
	validator, err := llm.NewValidator(schema)
	if err != nil {
		return nil, err
	}
	return &Generator{
		client:    client,
		validator: validator,
		schema:    schema,
		tokenizer: tok,
		budget:    budget,
		logger:    logger.Named("generator"),
	}, nil
}

// Generate answers question from chunks. With no chunks it returns the
// refusal without calling the model. Returned sources are always a subset of
// the chunk sources, deduplicated, in first-seen order.
func (g *Generator) Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (domain.Answer, error) {
	if len(chunks) == 0 {
		g.logger.Debug("no context, refusing")
		return domain.RefusalAnswer(), nil
	}

	used, contextText := g.buildContext(chunks)
	allowed := domain.ChunkSources(used)

	start := time.Now()
	raw, err := g.client.Complete(ctx, llm.Request{
		System:            systemPrompt,
		User:              userPrompt(question, allowed, contextText),
		SchemaName:        schemaName,
		SchemaDescription: "Answer text with inline citations and the list of cited sources",
		Schema:            llm.ProviderSchema(g.schema),
	})
	if err != nil {
		g.logger.Warn("generation call failed", zap.Error(err))
		return domain.Answer{}, apperrors.NewGenerationError(err)
	}

	out, err := g.decode(raw)
	if err != nil {
		g.logger.Warn("generation output rejected", zap.Error(err))
		return domain.Answer{}, err
	}

	text := strings.TrimSpace(out.Answer)
	if isRefusal(text) {
		g.logger.Info("model refused from context", zap.Int("chunks", len(used)))
		return domain.RefusalAnswer(), nil
	}

	sources := citedSources(allowed, out.Sources, text)
	g.logger.Info("answer generated",
		zap.Int("chunks", len(used)),
		zap.Int("sources", len(sources)),
		zap.Duration("duration", time.Since(start)),
	)
	return domain.Answer{Text: text, Sources: sources}, nil
}

// buildContext concatenates chunks in order until the token budget is spent.
// The first chunk is always included, truncated if needed.
func (g *Generator) buildContext(chunks []domain.RetrievedChunk) ([]domain.RetrievedChunk, string) {
	var (
		parts     []string
		used      []domain.RetrievedChunk
		spent     int
		sepTokens = tokenizer.Count(g.tokenizer, chunkSeparator)
	)
	for i, chunk := range chunks {
		part := formatChunk(chunk)
		cost := tokenizer.Count(g.tokenizer, part)
		if i > 0 {
			cost += sepTokens
		}
		if spent+cost > g.budget {
			if i == 0 {
				parts = append(parts, tokenizer.Truncate(g.tokenizer, part, g.budget))
				used = append(used, chunk)
			} else {
				g.logger.Debug("context budget reached", zap.Int("kept", i), zap.Int("dropped", len(chunks)-i))
			}
			break
		}
		parts = append(parts, part)
		used = append(used, chunk)
		spent += cost
	}
	return used, strings.Join(parts, chunkSeparator)
}

func (g *Generator) decode(raw string) (modelAnswer, error) {
	doc := []byte(llm.ExtractJSON(raw))
	violations, err := g.validator.Violations(doc)
	if err != nil {
		return modelAnswer{}, apperrors.NewSchemaViolationError(nil, err)
	}
	if len(violations) > 0 {
		return modelAnswer{}, apperrors.NewSchemaViolationError(violations, nil)
	}
	var out modelAnswer
	if err := json.Unmarshal(doc, &out); err != nil {
		return modelAnswer{}, apperrors.NewSchemaViolationError(nil, fmt.Errorf("decode answer: %w", err))
	}
	return out, nil
}

func isRefusal(text string) bool {
	normalized := strings.ToLower(strings.TrimRight(strings.TrimSpace(text), "."))
	normalized = strings.ReplaceAll(normalized, "’", "'")
	return normalized == "" || normalized == "i don't know"
}

// citationPattern matches inline citations of the form (Source: <url>), also
// with several URLs separated by commas or semicolons.
var citationPattern = regexp.MustCompile(`\(Sources?:\s*([^()]*)\)`)

// inlineCitations returns the URLs cited inline in text.
func inlineCitations(text string) map[string]struct{} {
	cited := map[string]struct{}{}
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, field := range strings.FieldsFunc(match[1], func(r rune) bool {
			return r == ',' || r == ';' || unicode.IsSpace(r)
		}) {
			cited[field] = struct{}{}
		}
	}
	return cited
}

// citedSources keeps the allowed sources the model cited, either in its
// sources list or inline as (Source: <url>). Matching is exact. When it cited
// none of them every allowed source is returned.
func citedSources(allowed, modelSources []string, text string) []string {
	cited := inlineCitations(text)
	for _, s := range modelSources {
		cited[strings.TrimSpace(s)] = struct{}{}
	}
	out := make([]string, 0, len(allowed))
	for _, s := range allowed {
		if _, ok := cited[s]; ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string{}, allowed...)
	}
	return out
}
