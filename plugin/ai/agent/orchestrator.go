package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hrygo/marketsense/plugin/ai"
	"github.com/hrygo/marketsense/store"
)

// validIntents are the recognized classification categories.
var validIntents = map[string]bool{
	"research":            true,
	"campaign_generation": true,
	"audience_generation": true,
	"search":              true,
}

// OrchestrationError is the terminal error state of an orchestration call.
// It serializes as {error: true, error_type, message}.
type OrchestrationError struct {
	Type    string
	Message string
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Envelope renders the structured error body returned to the client.
func (e *OrchestrationError) Envelope() map[string]any {
	return map[string]any{
		"error":      true,
		"error_type": e.Type,
		"message":    e.Message,
	}
}

// Orchestrator is the top-level state machine: classify, plan, execute,
// format. A single linear pass per request; retries live inside the
// gateway, not here.
type Orchestrator struct {
	classification Agent
	planning       *PlanningAgent
	validation     *ValidationAgent
	executor       *PlanExecutor
	formatter      *Formatter
}

// New wires the full agent pipeline over one gateway and one data store.
func New(gateway ai.Gateway, st *store.Store) *Orchestrator {
	tools := NewToolExecutor(st)
	research := NewResearchAgent(gateway, tools)
	audience := NewAudienceAgent(gateway)
	journey := NewJourneyAgent(gateway)
	campaign := NewCampaignAgent(gateway, audience, journey)

	agents := map[string]Agent{
		"research": research,
		"audience": audience,
		"journey":  journey,
		"campaign": campaign,
	}

	return &Orchestrator{
		classification: NewClassificationAgent(gateway),
		planning:       NewPlanningAgent(gateway),
		validation:     NewValidationAgent(gateway),
		executor:       NewPlanExecutor(agents, st),
		formatter:      NewFormatter(st),
	}
}

// NewWithComponents assembles an orchestrator from pre-built parts.
func NewWithComponents(classification Agent, planning *PlanningAgent, validation *ValidationAgent, executor *PlanExecutor, formatter *Formatter) *Orchestrator {
	return &Orchestrator{
		classification: classification,
		planning:       planning,
		validation:     validation,
		executor:       executor,
		formatter:      formatter,
	}
}

// Orchestrate runs one request through the pipeline. A degraded turn still
// returns a structurally valid envelope; only a failure escaping
// classify/plan/execute surfaces as *OrchestrationError.
func (o *Orchestrator) Orchestrate(ctx context.Context, prompt string, ectx *ExecutionContext) (envelope *Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Orchestrator: panic", "panic", r)
			envelope, err = nil, &OrchestrationError{Type: "orchestration_error", Message: fmt.Sprint(r)}
		}
	}()

	if ectx == nil {
		ectx = NewExecutionContext()
	}

	slog.Info("Orchestrator: classifying user intent")
	classification, cerr := o.classifyIntent(ctx, prompt, ectx)
	if cerr != nil {
		return nil, cerr
	}
	slog.Info("Orchestrator: intent classified", "intent", classification.Intent, "confidence", classification.Confidence)

	slog.Info("Orchestrator: creating execution plan")
	plan, perr := o.createPlan(ctx, prompt, classification, ectx)
	if perr != nil {
		return nil, perr
	}

	slog.Info("Orchestrator: executing plan", "steps", len(plan.Steps))
	execution := o.executor.Execute(ctx, plan, ectx)

	return o.formatter.Format(classification.Intent, classification, execution), nil
}

// Validate scores a finished result against the user's request. Optional
// post-pass, not part of the main state machine.
func (o *Orchestrator) Validate(ctx context.Context, prompt string, output *Result, agentType string, ectx *ExecutionContext) *Result {
	return o.validation.Validate(ctx, prompt, output, agentType, ectx)
}

// classifyIntent classifies the prompt. An unrecognized intent value is
// force-overridden to campaign_generation at half confidence: a fuzzy
// classifier must not block the pipeline.
func (o *Orchestrator) classifyIntent(ctx context.Context, prompt string, ectx *ExecutionContext) (*Classification, *OrchestrationError) {
	result := o.classification.Invoke(ctx, prompt, ectx)
	if result.Error {
		return nil, &OrchestrationError{Type: result.ErrorType, Message: result.Message}
	}

	classification := result.Classification()
	if !validIntents[classification.Intent] {
		slog.Warn("Orchestrator: unrecognized intent, defaulting", "intent", classification.Intent)
		classification.Intent = "campaign_generation"
		classification.Confidence = 0.5
	}
	return classification, nil
}

// createPlan asks the planning agent for a plan and falls back to a fixed
// per-intent template when it returns none. The fallback guarantees
// forward progress even when the planning model degenerates.
func (o *Orchestrator) createPlan(ctx context.Context, prompt string, classification *Classification, ectx *ExecutionContext) (*Plan, *OrchestrationError) {
	result := o.planning.PlanFor(ctx, prompt, classification, ectx)
	if result.Error {
		return nil, &OrchestrationError{Type: result.ErrorType, Message: result.Message}
	}
	if len(result.Plan) > 0 {
		return &Plan{Steps: result.Plan, EstimatedSteps: result.EstimatedSteps}, nil
	}

	slog.Warn("Orchestrator: planning produced no usable plan, synthesizing default", "intent", classification.Intent)
	return defaultPlan(classification.Intent, prompt), nil
}

// defaultPlan is the fixed fallback template per intent.
func defaultPlan(intent, prompt string) *Plan {
	switch intent {
	case "audience_generation":
		return &Plan{
			Steps: []PlanStep{
				{Step: 1, Agent: "audience", Action: "Generate audience segment", Input: map[string]any{"prompt": prompt}},
			},
			EstimatedSteps: 1,
		}
	case "research":
		return &Plan{
			Steps: []PlanStep{
				{Step: 1, Agent: "research", Action: "Perform research analysis", Input: map[string]any{"prompt": prompt}},
			},
			EstimatedSteps: 1,
		}
	case "search":
		return &Plan{
			Steps: []PlanStep{
				{Step: 1, Agent: "search", Action: "Search for items", Input: map[string]any{"query": prompt}},
			},
			EstimatedSteps: 1,
		}
	default: // campaign_generation
		return &Plan{
			Steps: []PlanStep{
				{Step: 1, Agent: "research", Action: "Analyze campaign requirements", Input: map[string]any{"prompt": prompt}},
				{Step: 2, Agent: "campaign", Action: "Generate campaign configuration", Input: map[string]any{"prompt": prompt}},
			},
			EstimatedSteps: 2,
		}
	}
}
