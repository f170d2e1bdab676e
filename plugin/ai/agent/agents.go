package agent

import (
	"context"
	"fmt"

	"github.com/hrygo/marketsense/plugin/ai"
)

// Sampling parameters per agent kind. Deterministic work (classification,
// validation) runs cold; generative work runs warmer with a larger budget.
var agentConfigs = map[string]RunnerConfig{
	"classification": {Name: "classification", SystemPrompt: classificationPrompt, Temperature: 0.3, MaxTokens: 100},
	"planning":       {Name: "planning", SystemPrompt: planningPrompt, Temperature: 0.5, MaxTokens: 500},
	"research":       {Name: "research", SystemPrompt: researchPrompt, Temperature: 0.7, MaxTokens: 2000, UseTools: true},
	"audience":       {Name: "audience", SystemPrompt: audiencePrompt, Temperature: 0.6, MaxTokens: 1500},
	"campaign":       {Name: "campaign", SystemPrompt: campaignPrompt, Temperature: 0.7, MaxTokens: 3000},
	"journey":        {Name: "journey", SystemPrompt: journeyPrompt, Temperature: 0.7, MaxTokens: 2500},
	"validation":     {Name: "validation", SystemPrompt: validationPrompt, Temperature: 0.3, MaxTokens: 1500},
}

func newAgentRunner(name string, gateway ai.Gateway, tools *ToolExecutor) *Runner {
	return NewRunner(agentConfigs[name], gateway, tools)
}

// NewClassificationAgent classifies user prompts into intent categories.
func NewClassificationAgent(gateway ai.Gateway) *Runner {
	return newAgentRunner("classification", gateway, nil)
}

// NewResearchAgent analyzes historical data with tool calling.
func NewResearchAgent(gateway ai.Gateway, tools *ToolExecutor) *Runner {
	return newAgentRunner("research", gateway, tools)
}

// NewAudienceAgent generates audience segments.
func NewAudienceAgent(gateway ai.Gateway) *Runner {
	return newAgentRunner("audience", gateway, nil)
}

// PlanningAgent turns a classified request into a multi-step plan.
type PlanningAgent struct {
	*Runner
}

// NewPlanningAgent creates the planning agent.
func NewPlanningAgent(gateway ai.Gateway) *PlanningAgent {
	return &PlanningAgent{Runner: newAgentRunner("planning", gateway, nil)}
}

// PlanFor asks for an execution plan, carrying the classification verdict
// in the prompt so the plan template matches the intent.
func (p *PlanningAgent) PlanFor(ctx context.Context, prompt string, classification *Classification, ectx *ExecutionContext) *Result {
	enhanced := fmt.Sprintf(`User intent: %s
Confidence: %g
Reasoning: %s

User prompt: %s

Create an execution plan for this request.`,
		classification.Intent, classification.Confidence, classification.Reasoning, prompt)
	return p.Invoke(ctx, enhanced, ectx)
}

// JourneyAgent designs multi-variant marketing funnels.
type JourneyAgent struct {
	*Runner
}

// NewJourneyAgent creates the journey agent.
func NewJourneyAgent(gateway ai.Gateway) *JourneyAgent {
	return &JourneyAgent{Runner: newAgentRunner("journey", gateway, nil)}
}

// GenerateJourney builds a journey for a goal, segment and duration.
func (j *JourneyAgent) GenerateJourney(ctx context.Context, goal, segmentName string, durationDays int, ectx *ExecutionContext) *Result {
	prompt := fmt.Sprintf(`Create a marketing journey with:
Campaign Goal: %s
Audience Segment: %s
Campaign Duration: %d days

Generate a complete journey configuration.`, goal, segmentName, durationDays)
	return j.Invoke(ctx, prompt, ectx)
}

// ValidationAgent scores another agent's output for quality and coherence.
type ValidationAgent struct {
	*Runner
}

// NewValidationAgent creates the validation agent.
func NewValidationAgent(gateway ai.Gateway) *ValidationAgent {
	return &ValidationAgent{Runner: newAgentRunner("validation", gateway, nil)}
}

// Validate checks an agent output against the original user request.
func (v *ValidationAgent) Validate(ctx context.Context, userPrompt string, output *Result, agentType string, ectx *ExecutionContext) *Result {
	prompt := fmt.Sprintf(`Validate the following %s agent output:

Original User Prompt: %s

Agent Output:
%s

Perform comprehensive validation and provide detailed feedback.`,
		agentType, userPrompt, stringify(output.AsMap()))
	return v.Invoke(ctx, prompt, ectx)
}
