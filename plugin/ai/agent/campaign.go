package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/marketsense/plugin/ai"
)

// CampaignAgent generates complete campaign configurations. It prefers a
// single completion that produces everything inline; only when the answer
// still lacks an audience segment or a journey does it issue one-shot
// fallback calls to the audience and journey agents. The fallbacks never
// recurse further.
type CampaignAgent struct {
	runner   *Runner
	audience Agent
	journey  *JourneyAgent
}

var _ Agent = (*CampaignAgent)(nil)

// NewCampaignAgent creates the campaign agent with its fallback sub-agents.
func NewCampaignAgent(gateway ai.Gateway, audience Agent, journey *JourneyAgent) *CampaignAgent {
	return &CampaignAgent{
		runner:   newAgentRunner("campaign", gateway, nil),
		audience: audience,
		journey:  journey,
	}
}

func (c *CampaignAgent) Name() string { return "campaign" }

// Invoke generates a campaign without research context.
func (c *CampaignAgent) Invoke(ctx context.Context, prompt string, ectx *ExecutionContext) *Result {
	return c.InvokeWithResearch(ctx, prompt, nil, ectx)
}

// InvokeWithResearch generates a campaign, folding prior research findings
// into the prompt when available.
func (c *CampaignAgent) InvokeWithResearch(ctx context.Context, prompt string, research *Result, ectx *ExecutionContext) *Result {
	result := c.runner.Invoke(ctx, c.buildPrompt(prompt, research), ectx)
	if result.Error {
		return result
	}

	ensureRationale(result)
	c.fillMissingAudience(ctx, prompt, result, ectx)
	c.fillMissingJourney(ctx, result, ectx)
	return result
}

func (c *CampaignAgent) buildPrompt(prompt string, research *Result) string {
	instructions := `Generate a complete campaign configuration. Include:
1. A detailed rationale explaining your campaign design decisions and recommendations
2. A complete campaign structure with all fields populated
3. Audience segment information (generate inline if not specified)
4. User journey/flow configuration (generate inline if not specified)

Generate everything in a single response with both analysis text and structured data.`

	if research == nil {
		return fmt.Sprintf("User Request: %s\n\n%s", prompt, instructions)
	}
	return fmt.Sprintf("User Request: %s\n\nResearch Analysis:\n%s\n\nBased on the user request and research analysis above, generate a complete campaign configuration. Include:\n1. A detailed rationale explaining your campaign design decisions and recommendations\n2. A complete campaign structure with all fields populated\n3. Audience segment information (generate inline if not specified)\n4. User journey/flow configuration (generate inline if not specified)\n\nGenerate everything in a single response with both analysis text and structured data.",
		prompt, formatResearch(research))
}

// formatResearch renders research findings as prose for the campaign
// prompt.
func formatResearch(research *Result) string {
	var parts []string
	if research.Rationale != "" {
		parts = append(parts, "Research Rationale: "+research.Rationale)
	}
	if analysis := research.Analysis; analysis != nil {
		if goal, ok := analysis["optimal_goal"]; ok {
			parts = append(parts, "Optimal Goals: "+stringify(goal))
		}
		if channels, ok := analysis["recommended_channels"].([]any); ok {
			names := make([]string, 0, len(channels))
			for _, ch := range channels {
				names = append(names, fmt.Sprint(ch))
			}
			parts = append(parts, "Recommended Channels: "+strings.Join(names, ", "))
		}
		if schedule, ok := analysis["recommended_schedule"].(map[string]any); ok {
			var window []string
			if start, ok := schedule["startDate"].(string); ok && start != "" {
				window = append(window, "Start: "+start)
			}
			if end, ok := schedule["endDate"].(string); ok && end != "" {
				window = append(window, "End: "+end)
			}
			if len(window) > 0 {
				parts = append(parts, "Schedule: "+strings.Join(window, ", "))
			}
		}
	}
	if evidence := research.Evidence; evidence != nil {
		if campaigns, ok := evidence["historical_campaigns"].([]any); ok && len(campaigns) > 0 {
			parts = append(parts, fmt.Sprintf("Found %d relevant historical campaigns", len(campaigns)))
		}
	}
	if len(parts) == 0 {
		return stringify(research.AsMap())
	}
	return strings.Join(parts, "\n")
}

// ensureRationale synthesizes a minimal rationale for the dialog panel
// when the model omitted one.
func ensureRationale(result *Result) {
	if result.Rationale != "" || result.Campaign == nil {
		return
	}
	name, _ := result.Campaign["name"].(string)
	if name == "" {
		name = "Campaign"
	}
	rationale := fmt.Sprintf("Generated campaign '%s'", name)
	if goals, ok := result.Campaign["goals"].([]any); ok && len(goals) > 0 {
		names := make([]string, 0, len(goals))
		for _, g := range goals {
			names = append(names, fmt.Sprint(g))
		}
		rationale += " with goals: " + strings.Join(names, ", ")
	}
	result.Rationale = rationale
}

func (c *CampaignAgent) fillMissingAudience(ctx context.Context, prompt string, result *Result, ectx *ExecutionContext) {
	if hasSegmentIDs(result.Campaign) || result.AudienceSegment != nil {
		return
	}

	goal := prompt
	if goals, ok := result.Campaign["goals"].([]any); ok && len(goals) > 0 {
		goal = fmt.Sprint(goals[0])
	}

	audienceResult := c.audience.Invoke(ctx, "Create an audience segment for campaign goal: "+goal, ectx)
	if audienceResult.Error {
		slog.Warn("CampaignAgent: audience fallback failed", "error", audienceResult.Message)
		return
	}
	if result.Campaign == nil {
		result.Campaign = map[string]any{}
	}
	result.Campaign["segmentIds"] = []any{"generated_segment_1"}
	result.AudienceSegment = audienceResult.Segment
}

func (c *CampaignAgent) fillMissingJourney(ctx context.Context, result *Result, ectx *ExecutionContext) {
	if result.Campaign == nil {
		return
	}
	if _, ok := result.Campaign["userFlowConfig"]; ok {
		return
	}

	goal := "engagement"
	if goals, ok := result.Campaign["goals"].([]any); ok && len(goals) > 0 {
		goal = fmt.Sprint(goals[0])
	}

	journeyResult := c.journey.GenerateJourney(ctx, goal, "Target Audience", campaignDurationDays(result.Campaign), ectx)
	if journeyResult.Error || journeyResult.Journey == nil {
		if journeyResult.Error {
			slog.Warn("CampaignAgent: journey fallback failed", "error", journeyResult.Message)
		}
		return
	}
	result.Campaign["userFlowConfig"] = journeyResult.Journey
}

func hasSegmentIDs(campaign map[string]any) bool {
	ids, ok := campaign["segmentIds"].([]any)
	return ok && len(ids) > 0
}

// campaignDurationDays derives the journey duration from the campaign
// schedule, defaulting to 30 days.
func campaignDurationDays(campaign map[string]any) int {
	start, ok1 := campaign["startDate"].(string)
	end, ok2 := campaign["endDate"].(string)
	if !ok1 || !ok2 {
		return 30
	}
	startTime, err1 := parseISODate(start)
	endTime, err2 := parseISODate(end)
	if err1 != nil || err2 != nil {
		return 30
	}
	return int(endTime.Sub(startTime).Hours() / 24)
}

func parseISODate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", value)
}
