package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/marketsense/internal/profile"
	"github.com/hrygo/marketsense/plugin/ai/agent"
	"github.com/hrygo/marketsense/store"
)

// stubOrchestrator returns a canned envelope or error and records the
// prompts it was asked to run.
type stubOrchestrator struct {
	envelope *agent.Envelope
	err      error
	prompts  []string
	contexts []*agent.ExecutionContext
}

func (o *stubOrchestrator) Orchestrate(_ context.Context, prompt string, ectx *agent.ExecutionContext) (*agent.Envelope, error) {
	o.prompts = append(o.prompts, prompt)
	o.contexts = append(o.contexts, ectx)
	if o.err != nil {
		return nil, o.err
	}
	return o.envelope, nil
}

type testEnv struct {
	echo         *echo.Echo
	store        *store.Store
	sessions     *store.SessionStore
	orchestrator *stubOrchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	st := store.New(dir)
	sessions := store.NewSessionStore(dir)
	orchestrator := &stubOrchestrator{envelope: testEnvelope("campaign_generation")}

	p := &profile.Profile{Mode: "dev", Data: dir, MaxConcurrentOrchestrations: 4}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAPIV1Service(p, st, sessions, orchestrator, logger)

	e := echo.New()
	service.Register(e)

	return &testEnv{
		echo:         e,
		store:        st,
		sessions:     sessions,
		orchestrator: orchestrator,
	}
}

func testEnvelope(intent string) *agent.Envelope {
	return &agent.Envelope{
		Intent:              intent,
		Classification:      &agent.Classification{Intent: intent, Confidence: 0.9, Reasoning: "stubbed"},
		CampaignConfig:      map[string]any{"type": "campaign", "name": "Stub Campaign"},
		ExperiencePanelType: "form",
		ReasoningSteps: []agent.StepResult{
			{Step: 1, Agent: "research", Success: true},
			{Step: 2, Agent: "campaign", Success: true},
		},
		Success:   true,
		Rationale: "Generated a campaign for the requested goal.",
	}
}

func (env *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
