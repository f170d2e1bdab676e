package agent

import (
	"context"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/marketsense/plugin/ai"
	"github.com/hrygo/marketsense/store"
)

// fakeGateway replays scripted completions in order and records every
// request it receives.
type fakeGateway struct {
	mu       sync.Mutex
	script   []fakeReply
	requests []ai.CompletionRequest
}

type fakeReply struct {
	completion *ai.Completion
	err        error
}

func textReply(text string) fakeReply {
	return fakeReply{completion: &ai.Completion{Text: text}}
}

func toolReply(calls ...openai.ToolCall) fakeReply {
	return fakeReply{completion: &ai.Completion{ToolCalls: calls}}
}

func errReply(err error) fakeReply {
	return fakeReply{err: err}
}

func newFakeGateway(script ...fakeReply) *fakeGateway {
	return &fakeGateway{script: script}
}

func (g *fakeGateway) Complete(_ context.Context, req ai.CompletionRequest) (*ai.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.script) == 0 {
		return &ai.Completion{Text: "{}"}, nil
	}
	reply := g.script[0]
	g.script = g.script[1:]
	if reply.err != nil {
		return nil, reply.err
	}
	return reply.completion, nil
}

// fakeCatalog is an in-memory tool-executor data surface.
type fakeCatalog struct {
	campaigns []store.Record
	segments  []store.Record
}

func (f *fakeCatalog) FilterCampaigns(filters store.CampaignFilters) ([]store.Record, error) {
	if filters.Limit > 0 && filters.Limit < len(f.campaigns) {
		return f.campaigns[:filters.Limit], nil
	}
	return f.campaigns, nil
}

func (f *fakeCatalog) FilterSegments(store.SegmentFilters) ([]store.Record, error) {
	return f.segments, nil
}

func (f *fakeCatalog) CampaignMetrics(campaignID string) (store.Record, error) {
	return store.Record{"campaign_id": campaignID, "conversion_rate": 0.045}, nil
}

func TestRunnerInvokeParsesJSON(t *testing.T) {
	gateway := newFakeGateway(textReply(`{"intent": "search", "confidence": 0.9}`))
	runner := NewClassificationAgent(gateway)

	result := runner.Invoke(context.Background(), "find my campaigns", nil)
	require.False(t, result.Error)
	require.Equal(t, "search", result.Intent)
	require.Equal(t, 0.9, result.Confidence)
}

func TestRunnerGatewayErrorBecomesEnvelope(t *testing.T) {
	gateway := newFakeGateway(errReply(ai.ClassifyError(context.DeadlineExceeded)))
	runner := NewClassificationAgent(gateway)

	result := runner.Invoke(context.Background(), "classify this", nil)
	require.True(t, result.Error)
	require.Equal(t, "classification", result.Agent)
	require.NotEmpty(t, result.Message)
}

func TestRunnerMessageOrder(t *testing.T) {
	gateway := newFakeGateway(textReply(`{"intent": "research"}`))
	runner := NewClassificationAgent(gateway)

	ectx := NewExecutionContext()
	ectx.Knowledge = []KnowledgeDoc{{Title: "Email Best Practices", Body: "Keep subject lines short."}}
	ectx.History = []Turn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	runner.Invoke(context.Background(), "current question", ectx)

	require.Len(t, gateway.requests, 1)
	messages := gateway.requests[0].Messages
	require.Len(t, messages, 5)
	require.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	require.Equal(t, openai.ChatMessageRoleSystem, messages[1].Role)
	require.Contains(t, messages[1].Content, "Email Best Practices")
	require.Equal(t, "earlier question", messages[2].Content)
	require.Equal(t, "earlier answer", messages[3].Content)
	require.Equal(t, "current question", messages[4].Content)
}

func TestRunnerResolvesToolCalls(t *testing.T) {
	gateway := newFakeGateway(
		toolReply(openai.ToolCall{
			ID:   "call-1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "get_campaigns",
				Arguments: `{"limit": 1}`,
			},
		}),
		textReply(`{"rationale": "grounded in one campaign", "analysis": {}}`),
	)
	catalog := &fakeCatalog{campaigns: []store.Record{
		{"id": "camp-1", "name": "Summer Sale"},
		{"id": "camp-2", "name": "Winter Launch"},
	}}
	runner := NewResearchAgent(gateway, NewToolExecutor(catalog))

	result := runner.Invoke(context.Background(), "analyze past campaigns", nil)
	require.False(t, result.Error)
	require.Equal(t, "grounded in one campaign", result.Rationale)

	// The first round announces the tool catalog; the follow-up runs with
	// tools disabled and carries the tool result plus the JSON-only nudge.
	require.Len(t, gateway.requests, 2)
	require.NotEmpty(t, gateway.requests[0].Tools)
	require.Empty(t, gateway.requests[1].Tools)

	followUp := gateway.requests[1].Messages
	last := followUp[len(followUp)-1]
	require.Equal(t, openai.ChatMessageRoleUser, last.Role)
	require.Contains(t, last.Content, "single JSON object only")

	var sawToolResult bool
	for _, msg := range followUp {
		if msg.Role == openai.ChatMessageRoleTool {
			sawToolResult = true
			require.Equal(t, "call-1", msg.ToolCallID)
			require.Contains(t, msg.Content, "camp-1")
		}
	}
	require.True(t, sawToolResult)
}

func TestRunnerToleratesRepeatedToolCalls(t *testing.T) {
	call := openai.ToolCall{
		ID:       "call-1",
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: "get_segments", Arguments: `{}`},
	}
	gateway := newFakeGateway(
		toolReply(call),
		toolReply(call), // model probes again after being told to stop
		textReply(`{"rationale": "finally"}`),
	)
	runner := NewResearchAgent(gateway, NewToolExecutor(&fakeCatalog{}))

	result := runner.Invoke(context.Background(), "analyze", nil)
	require.False(t, result.Error)
	require.Equal(t, "finally", result.Rationale)
	require.Len(t, gateway.requests, 3)
}

func TestRunnerRawFallback(t *testing.T) {
	gateway := newFakeGateway(textReply("plain prose, no JSON at all"))
	runner := NewAudienceAgent(gateway)

	result := runner.Invoke(context.Background(), "make a segment", nil)
	require.True(t, result.Raw)
	require.Equal(t, "plain prose, no JSON at all", result.Content)
}
