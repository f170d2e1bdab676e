package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/marketsense/plugin/ai/agent"
	"github.com/hrygo/marketsense/server/internal/observability"
	"github.com/hrygo/marketsense/store"
)

// OrchestrateRequest is the body of POST /api/v1/agent/orchestrate.
type OrchestrateRequest struct {
	Prompt    string             `json:"prompt"`
	SessionID string             `json:"sessionId,omitempty"`
	Context   OrchestrateContext `json:"context"`
}

// OrchestrateContext carries optional conversation history and reference
// knowledge for the agents.
type OrchestrateContext struct {
	ConversationHistory []agent.Turn         `json:"conversation_history,omitempty"`
	Knowledge           []agent.KnowledgeDoc `json:"knowledge,omitempty"`
}

func (s *APIV1Service) orchestrate(c echo.Context) error {
	var req OrchestrateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	ctx := c.Request().Context()
	reqCtx := observability.NewRequestContext(s.Logger, req.SessionID)
	ctx = observability.WithRequestContext(ctx, reqCtx)

	if err := s.orchestrationSemaphore.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is at capacity")
	}
	defer s.orchestrationSemaphore.Release(1)

	ectx := agent.NewExecutionContext()
	ectx.History = req.Context.ConversationHistory
	ectx.Knowledge = req.Context.Knowledge

	reqCtx.Info("Orchestrate: request started", slog.Int("prompt_length", len(req.Prompt)))
	envelope, err := s.Orchestrator.Orchestrate(ctx, req.Prompt, ectx)
	if err != nil {
		var oerr *agent.OrchestrationError
		if errors.As(err, &oerr) {
			reqCtx.Error("Orchestrate: pipeline failed", err,
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
			// Pipeline failures are part of the dialog contract, not HTTP
			// errors: the client renders the error envelope.
			return c.JSON(http.StatusOK, oerr.Envelope())
		}
		return err
	}

	reqCtx.Info("Orchestrate: request finished",
		slog.String(observability.LogFieldIntent, envelope.Intent),
		slog.Int(observability.LogFieldSteps, len(envelope.ReasoningSteps)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))

	if req.SessionID != "" {
		s.recordTurn(reqCtx, req.SessionID, req.Prompt, envelope)
	}
	return c.JSON(http.StatusOK, envelope)
}

// recordTurn appends the user prompt and the assistant's answer to the
// dialog session. Lock contention degrades to responding without
// persisting the turn.
func (s *APIV1Service) recordTurn(reqCtx *observability.RequestContext, sessionID, prompt string, envelope *agent.Envelope) {
	userMsg := store.NewMessage("user", prompt)
	assistantMsg := store.NewMessage("assistant", envelope.Rationale)
	assistantMsg.ReasoningSteps = reasoningStepMaps(envelope.ReasoningSteps)

	err := s.Sessions.AppendMessages(sessionID, userMsg, assistantMsg)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrSessionNotFound):
		reqCtx.Warn("Orchestrate: session not found, turn not persisted")
	case errors.Is(err, store.ErrLockTimeout):
		reqCtx.Warn("Orchestrate: session store contended, turn not persisted")
	default:
		reqCtx.Error("Orchestrate: failed to persist turn", err)
	}
}

func reasoningStepMaps(steps []agent.StepResult) []map[string]any {
	maps := make([]map[string]any, 0, len(steps))
	for _, step := range steps {
		m := map[string]any{
			"step":    step.Step,
			"agent":   step.Agent,
			"success": step.Success,
		}
		if step.Error != "" {
			m["error"] = step.Error
		}
		if step.Result != nil {
			m["result"] = step.Result.AsMap()
		}
		maps = append(maps, m)
	}
	return maps
}
