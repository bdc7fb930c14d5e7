package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "found %d configuration error(s):\n", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, err.Field, err.Message)
	}
	return b.String()
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs ValidationErrors

	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" && !isLocalURL(c.LLM.BaseURL) {
			errs = append(errs, ValidationError{Field: "LLM_API_KEY", Message: "required unless LLM_BASE_URL points at a local endpoint"})
		}
	case ProviderGoogleAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, ValidationError{Field: "LLM_API_KEY", Message: "required for the googleai provider"})
		}
	default:
		errs = append(errs, ValidationError{Field: "LLM_PROVIDER", Message: fmt.Sprintf("unsupported provider %q", c.LLM.Provider)})
	}
	if c.LLM.Model == "" {
		errs = append(errs, ValidationError{Field: "LLM_MODEL", Message: "must not be empty"})
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{Field: "LLM_TEMPERATURE", Message: "must be within [0, 2]"})
	}

	if c.Embedding.Model == "" {
		errs = append(errs, ValidationError{Field: "EMBEDDING_MODEL", Message: "must not be empty"})
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, ValidationError{Field: "EMBEDDING_DIMENSIONS", Message: "must be positive"})
	}
	if c.VectorDB.Address == "" {
		errs = append(errs, ValidationError{Field: "MILVUS_ADDRESS", Message: "must not be empty"})
	}
	if c.VectorDB.DocsCollection == "" || c.VectorDB.DeveloperCollection == "" {
		errs = append(errs, ValidationError{Field: "MILVUS_*_COLLECTION", Message: "collection names must not be empty"})
	}

	if c.RAG.TopK <= 0 {
		errs = append(errs, ValidationError{Field: "RAG_TOP_K", Message: "must be positive"})
	}
	if c.RAG.ContextTokenBudget <= 0 {
		errs = append(errs, ValidationError{Field: "RAG_CONTEXT_TOKEN_BUDGET", Message: "must be positive"})
	}
	if c.Ingest.ChunkSize <= 0 || c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, ValidationError{Field: "INGEST_CHUNK_OVERLAP", Message: "overlap must be non-negative and smaller than the chunk size"})
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, ValidationError{Field: "BATCH_WORKERS", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isLocalURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
