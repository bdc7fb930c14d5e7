package llm

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks model output against a compiled JSON Schema.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(schema map[string]any) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Violations returns one message per schema error. A document that is not
// JSON at all yields an error instead.
func (v *Validator) Violations(raw []byte) ([]string, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	out := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		out = append(out, e.String())
	}
	return out, nil
}

// unsupportedStrictKeywords are rejected by strict structured-output mode.
var unsupportedStrictKeywords = []string{"minLength", "maxLength", "minItems", "maxItems", "pattern", "format"}

// ProviderSchema returns a deep copy of schema without the keywords strict
// mode rejects. The full schema is still enforced locally by a Validator.
func ProviderSchema(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if isUnsupported(k) {
			continue
		}
		if props, ok := v.(map[string]any); ok && k == "properties" {
			// keys here are field names, not keywords
			copied := make(map[string]any, len(props))
			for name, prop := range props {
				copied[name] = copySchemaValue(prop)
			}
			out[k] = copied
			continue
		}
		out[k] = copySchemaValue(v)
	}
	return out
}

func copySchemaValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return ProviderSchema(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = copySchemaValue(item)
		}
		return items
	default:
		return v
	}
}

func isUnsupported(keyword string) bool {
	for _, k := range unsupportedStrictKeywords {
		if k == keyword {
			return true
		}
	}
	return false
}
