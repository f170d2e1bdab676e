package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func executionWith(final *Result, steps ...StepResult) *ExecutionResult {
	all := map[string]*Result{}
	for _, sr := range steps {
		if sr.Result != nil {
			all[sr.Agent] = sr.Result
		}
	}
	return &ExecutionResult{
		Success:     true,
		FinalResult: final,
		AllResults:  all,
		StepResults: steps,
	}
}

func componentTypes(config map[string]any) []string {
	components := config["uiComponents"].([]map[string]any)
	types := make([]string, 0, len(components))
	for _, c := range components {
		types = append(types, c["type"].(string))
	}
	return types
}

// Every recognized intent must yield at least one renderable component and
// a primary drawn from the list, whatever the final result looks like.
func TestFormatAlwaysYieldsComponents(t *testing.T) {
	finals := map[string]*Result{
		"plain":   decodeResult(t, `{"rationale": "something"}`),
		"raw":     {Raw: true, Content: "prose"},
		"error":   {Error: true, ErrorType: "gateway_error", Message: "boom"},
		"listing": decodeResult(t, `[{"type": "campaign", "id": "camp-1", "title": "Summer Sale"}]`),
	}

	f := NewFormatter(nil)
	for _, intent := range []string{"research", "campaign_generation", "audience_generation", "search"} {
		for label, final := range finals {
			t.Run(intent+"_"+label, func(t *testing.T) {
				envelope := f.Format(intent, &Classification{Intent: intent, Confidence: 0.9}, executionWith(final))

				types := componentTypes(envelope.CampaignConfig)
				require.NotEmpty(t, types)
				primary := envelope.CampaignConfig["primaryComponent"].(string)
				require.Contains(t, types, primary)
			})
		}
	}
}

func TestFormatCampaignGeneration(t *testing.T) {
	final := decodeResult(t, `{
		"rationale": "seasonal push works",
		"campaign": {"name": "Summer Sale", "goals": ["purchase"]}
	}`)

	envelope := NewFormatter(nil).Format("campaign_generation", &Classification{Intent: "campaign_generation"}, executionWith(final))

	require.Equal(t, "campaign_form", envelope.ExperiencePanelType)
	require.Equal(t, "Summer Sale", envelope.CampaignConfig["name"])
	require.Equal(t, "campaign_form", envelope.CampaignConfig["primaryComponent"])

	types := componentTypes(envelope.CampaignConfig)
	require.Equal(t, []string{"campaign_form"}, types)

	// The form snapshot must not contain the presentation keys.
	components := envelope.CampaignConfig["uiComponents"].([]map[string]any)
	snapshot := components[0]["config"].(map[string]any)
	require.NotContains(t, snapshot, "uiComponents")
	require.NotContains(t, snapshot, "primaryComponent")
}

func TestFormatCampaignFormStaysPrimaryOverChart(t *testing.T) {
	final := decodeResult(t, `{
		"campaign": {"name": "Summer Sale", "weekly_spend": [100, 200, 300]}
	}`)

	envelope := NewFormatter(nil).Format("campaign_generation", &Classification{Intent: "campaign_generation"}, executionWith(final))

	types := componentTypes(envelope.CampaignConfig)
	require.Contains(t, types, "chart")
	require.Equal(t, "campaign_form", envelope.CampaignConfig["primaryComponent"])
}

func TestFormatResearchPrefersChart(t *testing.T) {
	final := decodeResult(t, `{
		"rationale": "trend is up",
		"analysis": {"weekly": [1, 2, 3]}
	}`)

	envelope := NewFormatter(nil).Format("research", &Classification{Intent: "research"}, executionWith(final))

	types := componentTypes(envelope.CampaignConfig)
	require.Contains(t, types, "chart")
	require.NotContains(t, types, "research_analysis")
	require.Equal(t, "chart", envelope.CampaignConfig["primaryComponent"])
}

func TestFormatResearchWithoutDetectionsFallsBackToAnalysis(t *testing.T) {
	final := decodeResult(t, `{"rationale": "nothing visual", "analysis": {"note": "text only"}}`)

	envelope := NewFormatter(nil).Format("research", &Classification{Intent: "research"}, executionWith(final))

	require.Equal(t, []string{"research_analysis"}, componentTypes(envelope.CampaignConfig))
	require.Equal(t, "research_analysis", envelope.CampaignConfig["primaryComponent"])
}

func TestFormatAudienceGeneration(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{"existing_entity", `{"segment": {"id": "seg-1", "name": "High Spenders"}}`, "segment"},
		{"new_segment", `{"segment": {"name": "Night Owls", "estimated_size": 1200}}`, "segment_form"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			final := decodeResult(t, tc.raw)
			envelope := NewFormatter(nil).Format("audience_generation", &Classification{Intent: "audience_generation"}, executionWith(final))

			require.Equal(t, tc.expected, envelope.CampaignConfig["primaryComponent"])
			require.Equal(t, "segment_form", envelope.ExperiencePanelType)
		})
	}
}

func TestFormatSearchResults(t *testing.T) {
	final := decodeResult(t, `[
		{"type": "campaign", "id": "camp-1", "title": "Summer Sale", "description": "Seasonal discount push"}
	]`)

	envelope := NewFormatter(nil).Format("search", &Classification{Intent: "search"}, executionWith(final))

	require.Equal(t, "search_results", envelope.ExperiencePanelType)
	require.Equal(t, "search_results", envelope.CampaignConfig["type"])
	require.Equal(t, "recommendations", envelope.CampaignConfig["primaryComponent"])
	require.Len(t, envelope.CampaignConfig["items"], 1)
}

func TestFormatRationaleFromAnalysis(t *testing.T) {
	final := decodeResult(t, `{"analysis": {"rationale": "nested rationale"}}`)

	envelope := NewFormatter(nil).Format("research", &Classification{Intent: "research"}, executionWith(final))
	require.Equal(t, "nested rationale", envelope.Rationale)
}

func TestFormatRationaleBasedOnBlock(t *testing.T) {
	// Seven distinct campaigns plus a duplicate id; only five names make
	// the block, in first-discovery order.
	var campaigns []any
	for i := 1; i <= 7; i++ {
		campaigns = append(campaigns, map[string]any{
			"id":    fmt.Sprintf("camp-%d", i),
			"name":  fmt.Sprintf("Campaign %d", i),
			"goals": []any{"purchase"},
		})
	}
	campaigns = append(campaigns, map[string]any{"id": "camp-1", "name": "Campaign 1 Again", "goals": []any{}})

	research := &Result{
		Evidence: map[string]any{
			"historical_campaigns": campaigns,
			"segments": []any{
				map[string]any{"id": "seg-1", "name": "High Spenders", "size": float64(5000)},
			},
		},
	}
	final := &Result{Rationale: "base rationale", Analysis: map[string]any{}}
	execution := executionWith(final, StepResult{Step: 1, Agent: "research", Result: research, Success: true})

	envelope := NewFormatter(nil).Format("research", &Classification{Intent: "research"}, execution)

	require.Contains(t, envelope.Rationale, "base rationale")
	require.Contains(t, envelope.Rationale, "**Based on:**")
	require.Contains(t, envelope.Rationale, "Campaign 1, Campaign 2, Campaign 3, Campaign 4, Campaign 5")
	require.NotContains(t, envelope.Rationale, "Campaign 6")
	require.NotContains(t, envelope.Rationale, "Campaign 1 Again")
	require.Contains(t, envelope.Rationale, "Segments: High Spenders")
	require.Equal(t, 1, strings.Count(envelope.Rationale, "Campaign 1,"))
}

func TestFormatErrorFinalStillRenders(t *testing.T) {
	final := &Result{Error: true, ErrorType: "gateway_error", Message: "model unavailable", Agent: "research"}
	execution := &ExecutionResult{
		Success:     false,
		FinalResult: final,
		AllResults:  map[string]*Result{"research": final},
		StepResults: []StepResult{{Step: 1, Agent: "research", Result: final}},
	}

	envelope := NewFormatter(nil).Format("research", &Classification{Intent: "research"}, execution)
	require.False(t, envelope.Success)
	require.NotEmpty(t, componentTypes(envelope.CampaignConfig))
}
