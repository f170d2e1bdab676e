package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/marketsense/plugin/ai"
)

func newTestOrchestrator(classificationGW, planningGW ai.Gateway, agents map[string]Agent, searcher Searcher) *Orchestrator {
	return NewWithComponents(
		NewClassificationAgent(classificationGW),
		NewPlanningAgent(planningGW),
		NewValidationAgent(newFakeGateway()),
		NewPlanExecutor(agents, searcher),
		NewFormatter(nil),
	)
}

func TestOrchestrateSearchEndToEnd(t *testing.T) {
	classification := newFakeGateway(textReply(`{"intent": "search", "confidence": 0.95, "reasoning": "lookup"}`))
	planning := newFakeGateway(textReply(`{"not_a_plan": true}`)) // forces the fallback template
	searcher := &stubSearcher{records: []map[string]any{
		{"type": "campaign", "id": "camp-1", "title": "Summer Sale", "description": "Seasonal discount push"},
	}}
	o := newTestOrchestrator(classification, planning, map[string]Agent{}, searcher)

	envelope, err := o.Orchestrate(context.Background(), "find summer campaigns", nil)
	require.NoError(t, err)
	require.Equal(t, "search", envelope.Intent)
	require.Equal(t, 0.95, envelope.Classification.Confidence)
	require.Equal(t, "search_results", envelope.ExperiencePanelType)
	require.True(t, envelope.Success)

	// The fallback search plan sends the raw prompt as the query.
	require.Equal(t, []string{"find summer campaigns"}, searcher.queries)
	require.Len(t, envelope.ReasoningSteps, 1)
	require.Equal(t, "search", envelope.ReasoningSteps[0].Agent)
}

func TestOrchestrateUnrecognizedIntentDefaults(t *testing.T) {
	classification := newFakeGateway(textReply(`{"intent": "weather_forecast", "confidence": 0.99}`))
	planning := newFakeGateway(textReply(`{}`))
	research := &stubAgent{name: "research", fn: func(string, *ExecutionContext) *Result {
		return &Result{Rationale: "r"}
	}}
	campaign := &stubAgent{name: "campaign", fn: func(string, *ExecutionContext) *Result {
		return decodeResult(t, `{"campaign": {"name": "Defaulted"}}`)
	}}
	o := newTestOrchestrator(classification, planning, map[string]Agent{"research": research, "campaign": campaign}, &stubSearcher{})

	envelope, err := o.Orchestrate(context.Background(), "hmm", nil)
	require.NoError(t, err)
	require.Equal(t, "campaign_generation", envelope.Intent)
	require.Equal(t, 0.5, envelope.Classification.Confidence)

	// The two-step fallback template ran: research then campaign.
	require.Len(t, envelope.ReasoningSteps, 2)
	require.Equal(t, "research", envelope.ReasoningSteps[0].Agent)
	require.Equal(t, "campaign", envelope.ReasoningSteps[1].Agent)
	require.Equal(t, "Defaulted", envelope.CampaignConfig["name"])
}

func TestOrchestratePlanFromModelIsUsed(t *testing.T) {
	classification := newFakeGateway(textReply(`{"intent": "audience_generation", "confidence": 0.9}`))
	planning := newFakeGateway(textReply(`{
		"plan": [{"step": 1, "agent": "audience", "action": "segment", "input": {"prompt": "night owls"}}],
		"estimated_steps": 1
	}`))
	var prompts []string
	audience := &stubAgent{name: "audience", fn: func(prompt string, _ *ExecutionContext) *Result {
		prompts = append(prompts, prompt)
		return decodeResult(t, `{"segment": {"id": "seg-9", "name": "Night Owls"}}`)
	}}
	o := newTestOrchestrator(classification, planning, map[string]Agent{"audience": audience}, &stubSearcher{})

	envelope, err := o.Orchestrate(context.Background(), "segment night owls", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"night owls"}, prompts, "the plan's own input text wins over the user prompt")
	require.Equal(t, "segment", envelope.CampaignConfig["primaryComponent"])
}

func TestOrchestrateClassificationFailureIsTerminal(t *testing.T) {
	classification := newFakeGateway(errReply(ai.ClassifyError(errors.New("model down"))))
	o := newTestOrchestrator(classification, newFakeGateway(), map[string]Agent{}, &stubSearcher{})

	envelope, err := o.Orchestrate(context.Background(), "anything", nil)
	require.Nil(t, envelope)

	var oerr *OrchestrationError
	require.ErrorAs(t, err, &oerr)
	require.Contains(t, oerr.Message, "model down")

	body := oerr.Envelope()
	require.Equal(t, true, body["error"])
	require.NotEmpty(t, body["error_type"])
}

func TestOrchestratePlanningFailureIsTerminal(t *testing.T) {
	classification := newFakeGateway(textReply(`{"intent": "research", "confidence": 0.9}`))
	planning := newFakeGateway(errReply(ai.ClassifyError(errors.New("planner down"))))
	o := newTestOrchestrator(classification, planning, map[string]Agent{}, &stubSearcher{})

	_, err := o.Orchestrate(context.Background(), "analyze", nil)

	var oerr *OrchestrationError
	require.ErrorAs(t, err, &oerr)
	require.Contains(t, oerr.Message, "planner down")
}

func TestOrchestrateDegradedStepStillRendersComponent(t *testing.T) {
	classification := newFakeGateway(textReply(`{"intent": "research", "confidence": 0.8}`))
	planning := newFakeGateway(textReply(`{}`))
	research := &stubAgent{name: "research", fn: func(string, *ExecutionContext) *Result {
		return &Result{Error: true, ErrorType: "gateway_error", Message: "exhausted retries", Agent: "research"}
	}}
	o := newTestOrchestrator(classification, planning, map[string]Agent{"research": research}, &stubSearcher{})

	envelope, err := o.Orchestrate(context.Background(), "analyze trends", nil)
	require.NoError(t, err)
	require.False(t, envelope.Success)
	require.NotEmpty(t, envelope.CampaignConfig["uiComponents"])
}
