package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/api/http/handlers"
	"github.com/spec-kit/ticket-router/internal/auth"
	"github.com/spec-kit/ticket-router/internal/classifier"
	"github.com/spec-kit/ticket-router/internal/domain"
	"github.com/spec-kit/ticket-router/internal/observability"
	"github.com/spec-kit/ticket-router/internal/repository"
	"github.com/spec-kit/ticket-router/internal/service"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

type stubPipeline struct{}

func (stubPipeline) Run(_ context.Context, question string) domain.PipelineResult {
	if strings.TrimSpace(question) == "" {
		return domain.PipelineResult{Error: "question must not be empty", Code: apperrors.CodeEmptyInput}
	}
	if question == "down" {
		return domain.PipelineResult{Error: "retrieval unavailable", Code: apperrors.CodeRetrievalUnavailable}
	}
	state := domain.NewPipelineState(question)
	ticket := domain.Ticket{
		ID:        domain.NewTicketID(),
		Subject:   "SDK question",
		Body:      question,
		TopicTags: []domain.TopicTag{domain.TagAPISDK},
		Sentiment: domain.SentimentCurious,
		Priority:  domain.PriorityP2,
	}
	_ = state.ApplyClassification(domain.ClassificationResult{Ticket: ticket})
	_ = state.ApplyRoute(domain.RouteDecision{Route: domain.RouteRAG, Collection: "developer", MatchedTag: domain.TagAPISDK})
	chunks := []domain.RetrievedChunk{{Text: "x", Source: "https://developer.example.com/a"}}
	_ = state.ApplyRetrieval(domain.RetrievalResult{Collection: "developer", Chunks: chunks})
	_ = state.ApplyGeneration(domain.GenerationResult{Answer: domain.Answer{
		Text:    "Use **save()** (Source: https://developer.example.com/a).",
		Sources: []string{"https://developer.example.com/a"},
	}})
	return domain.PipelineResult{State: state}
}

type stubClassifier struct{}

func (stubClassifier) ClassifyTicket(_ context.Context, in classifier.Input) (domain.Ticket, error) {
	return domain.Ticket{ID: in.ID, Subject: "s", Body: in.Body, TopicTags: []domain.TopicTag{domain.TagGlossary},
		Sentiment: domain.SentimentNeutral, Priority: domain.PriorityP2}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := repository.NewMemoryTicketRepository()
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("ticket-router", "test",
			handlers.Dependency{Name: "postgres"},
			handlers.Dependency{Name: "redis", Check: failingPinger{}, Optional: true},
		),
		Tickets: handlers.NewTicketsHandler(
			service.NewTicketService(service.TicketDependencies{Pipeline: stubPipeline{}, TicketRepo: repo}),
			service.NewBatchService(service.BatchDependencies{Classifier: stubClassifier{}, TicketRepo: repo}),
		),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body string, role auth.Role) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, _, err := s.tokens.GenerateToken("agent-1", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/v1/tickets/analyze", `{"question":"How do I use the Python SDK?"}`, "")
	require.Equal(t, fiber.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "How do I use the Python SDK?", data["body"])
	assert.Equal(t, []any{"API/SDK"}, data["topic_tags"])
	assert.Equal(t, "rag", data["route"])
	assert.Equal(t, "generated", data["stage"])
	assert.Contains(t, data["answer_html"], "<strong>save()</strong>")
	assert.Equal(t, []any{"https://developer.example.com/a"}, data["sources"])
}

func TestAnalyzeFailureRendersOnlyError(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/v1/tickets/analyze", `{"question":""}`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotContains(t, body, "data")
	assert.Equal(t, apperrors.CodeEmptyInput, body["error"].(map[string]any)["code"])

	status, body = s.do(t, "POST", "/v1/tickets/analyze", `{"question":"down"}`, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, apperrors.CodeRetrievalUnavailable, body["error"].(map[string]any)["code"])

	status, _ = s.do(t, "POST", "/v1/tickets/analyze", `{not json`, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestDashboardRequiresStaff(t *testing.T) {
	s := newTestServer(t)
	_, _ = s.do(t, "POST", "/v1/tickets/analyze", `{"question":"How do I use the Python SDK?"}`, "")

	status, body := s.do(t, "GET", "/v1/tickets", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, body["error"].(map[string]any)["code"])

	status, body = s.do(t, "GET", "/v1/tickets?tag=API/SDK", "", auth.RoleSupportAgent)
	require.Equal(t, fiber.StatusOK, status, body)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "ANSWERED", item["status"])

	status, body = s.do(t, "GET", "/v1/tickets/"+item["id"].(string), "", auth.RoleSupportAgent)
	assert.Equal(t, fiber.StatusOK, status, body)

	status, _ = s.do(t, "GET", "/v1/tickets/missing", "", auth.RoleSupportAgent)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "GET", "/v1/tickets?tag=Billing", "", auth.RoleSupportAgent)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestClassifyRequiresLead(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, "POST", "/v1/tickets", `{"subject":"Glossary","body":"How do I import terms?"}`, "")
	require.Equal(t, fiber.StatusCreated, status)

	status, body := s.do(t, "POST", "/v1/tickets/classify", "", auth.RoleSupportAgent)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, body["error"].(map[string]any)["code"])

	status, body = s.do(t, "POST", "/v1/tickets/classify", `{"limit":10}`, auth.RoleSupportLead)
	require.Equal(t, fiber.StatusOK, status, body)
	report := body["data"].(map[string]any)
	assert.EqualValues(t, 1, report["total"])
	assert.EqualValues(t, 1, report["classified"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "GET", "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "connection refused", deps["redis"])

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")

	status, body = s.do(t, "GET", "/nope", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, body["error"].(map[string]any)["code"])
}
