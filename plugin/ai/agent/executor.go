package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// Searcher is the multi-collection substring search backing the "search"
// plan sentinel. *store.Store satisfies it.
type Searcher interface {
	SearchAll(query string) ([]map[string]any, error)
}

// PlanExecutor runs plan steps strictly in order. A single step's failure
// never aborts the remaining plan: the step is recorded unsuccessful and
// execution continues.
type PlanExecutor struct {
	agents   map[string]Agent
	searcher Searcher
}

// NewPlanExecutor creates a plan executor over the given agent registry.
func NewPlanExecutor(agents map[string]Agent, searcher Searcher) *PlanExecutor {
	return &PlanExecutor{agents: agents, searcher: searcher}
}

// Execute runs the plan against the shared execution context. The result
// of the last step executed, successful or not, becomes the final result.
func (pe *PlanExecutor) Execute(ctx context.Context, plan *Plan, ectx *ExecutionContext) *ExecutionResult {
	if ectx == nil {
		ectx = NewExecutionContext()
	}
	if ectx.Results == nil {
		ectx.Results = map[string]*Result{}
	}

	var finalResult *Result
	for _, step := range plan.Steps {
		slog.Info("PlanExecutor: executing step", "step", step.Step, "agent", step.Agent, "action", step.Action)

		result, err := pe.executeStep(ctx, step, ectx)
		if err != nil {
			ectx.StepResults = append(ectx.StepResults, StepResult{
				Step:  step.Step,
				Agent: step.Agent,
				Error: err.Error(),
			})
			slog.Error("PlanExecutor: step failed", "step", step.Step, "agent", step.Agent, "error", err)
			continue
		}

		ectx.StepResults = append(ectx.StepResults, StepResult{
			Step:    step.Step,
			Agent:   step.Agent,
			Result:  result,
			Success: !result.Error,
		})
		ectx.Results[step.Agent] = result
		finalResult = result
	}

	if finalResult == nil {
		return &ExecutionResult{
			Success:     false,
			AllResults:  ectx.Results,
			StepResults: ectx.StepResults,
			Error:       "no steps executed",
		}
	}
	return &ExecutionResult{
		Success:     !finalResult.Error,
		FinalResult: finalResult,
		AllResults:  ectx.Results,
		StepResults: ectx.StepResults,
	}
}

// executeStep runs one step. The returned error covers step-level crashes
// (search failures, panics); agent-level failures arrive as error-envelope
// results instead.
func (pe *PlanExecutor) executeStep(ctx context.Context, step PlanStep, ectx *ExecutionContext) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("step panic: %v", r)
		}
	}()

	// "search" is a plan sentinel, not an agent: it runs a synchronous
	// multi-collection substring search instead of an LLM call.
	if step.Agent == "search" {
		query := stepInput(step, "query")
		if query == "" {
			query = stepInput(step, "prompt")
		}
		records, err := pe.searcher.SearchAll(query)
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, len(records))
		for _, r := range records {
			items = append(items, r)
		}
		return &Result{Items: items}, nil
	}

	agent, ok := pe.agents[step.Agent]
	if !ok {
		return &Result{Error: true, Message: fmt.Sprintf("Unknown agent: %s", step.Agent)}, nil
	}

	prompt := stepInput(step, "prompt")

	// The campaign agent builds on the research agent's last output.
	if campaign, ok := agent.(*CampaignAgent); ok {
		return campaign.InvokeWithResearch(ctx, prompt, ectx.Results["research"], ectx), nil
	}
	return agent.Invoke(ctx, prompt, ectx), nil
}

func stepInput(step PlanStep, key string) string {
	value, _ := step.Input[key].(string)
	return value
}
