package classifier

import (
	"strings"

	"github.com/spec-kit/ticket-router/internal/domain"
)

const systemPrompt = `You classify customer support tickets for a data catalog platform.

Produce a ticket from the customer's message:
- "body": repeat the customer's message exactly as given. Do not edit, trim or translate it.
- "subject": write a new one-sentence subject that captures the real intent of the message,
  not a restatement of its keywords.

Read the whole message before classifying. Judge the underlying problem, its urgency and the
customer's emotional state rather than surface keywords. Consider who is asking (analyst,
engineer, compliance officer) and which system is involved.

Topic tags: pick every tag that applies, most relevant first.
- How-to: the customer knows a feature exists and wants steps, a walkthrough or help
  navigating the interface.
- Product: what the platform can or cannot do, feature availability or roadmap, product
  behaviour and requirements.
- Connector: connecting or configuring external systems such as Snowflake, Redshift, dbt,
  Fivetran, Tableau or Airflow; failed crawlers, extraction or ingestion jobs; credentials for
  third-party sources; metadata sync problems.
- Lineage: capturing, displaying or exporting lineage; missing upstream or downstream links;
  graph rendering; impact analysis.
- API/SDK: programmatic access through the REST API, the Python SDK or webhooks; automation;
  payload formats; developer authentication.
- SSO: single sign-on with SAML, OIDC or Active Directory; identity provider setup; group and
  role mapping; login failures; provisioning.
- Glossary: business terms and definitions, bulk glossary import or export, linking terms to
  assets, metadata governance of vocabulary.
- Best practices: organisational guidance, scaling, catalog hygiene, governance workflows,
  adoption strategy and recommended setups.
- Sensitive data: PII, security, access control policies, compliance, masking, DLP, data
  classification for privacy.

Sentiment: exactly one of
- Frustrated: annoyance, wasted time, repeated failed attempts, blocked work.
- Angry: strong negative language, accusations, capital letters, demands for immediate action.
- Curious: exploratory, learning-oriented, positive about discovering the product.
- Neutral: matter-of-fact, professional, no emotional language.

Priority: exactly one of
- P0: business operations blocked, several teams affected, a compliance or launch deadline,
  production down; words like "urgent", "ASAP", "blocked", "critical".
- P1: productivity affected but a workaround exists, one user or a small team, important but
  not time-critical.
- P2: general guidance, learning, nice-to-have requests, no immediate business impact.

Rules:
- Use only the listed tag, sentiment and priority values, spelled exactly as shown.
- Always return at least one topic tag.
- Never change the body.`

func userPrompt(subject, body string) string {
	var b strings.Builder
	if strings.TrimSpace(subject) != "" {
		b.WriteString("Existing subject: ")
		b.WriteString(subject)
		b.WriteString("\n\n")
	}
	b.WriteString("Customer message:\n")
	b.WriteString(body)
	return b.String()
}

// responseSchema is the structured-output contract for one classification.
func responseSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"subject", "body", "topic_tags", "sentiment", "priority"},
		"properties": map[string]any{
			"subject": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "One sentence capturing the intent of the ticket",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "The customer's message, verbatim",
			},
			"topic_tags": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string", "enum": enumOf(domain.TopicTags)},
			},
			"sentiment": map[string]any{"type": "string", "enum": enumOf(domain.Sentiments)},
			"priority":  map[string]any{"type": "string", "enum": enumOf(domain.Priorities)},
		},
	}
}

func enumOf[T ~string](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
