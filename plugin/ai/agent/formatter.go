package agent

import (
	"strings"
)

// Envelope is the UI-ready response of one orchestration call. Immutable
// after return.
type Envelope struct {
	Intent              string          `json:"intent"`
	Classification      *Classification `json:"classification"`
	CampaignConfig      map[string]any  `json:"campaignConfig"`
	ExperiencePanelType string          `json:"experiencePanelType"`
	ReasoningSteps      []StepResult    `json:"reasoningSteps"`
	Success             bool            `json:"success"`
	Rationale           string          `json:"rationale,omitempty"`
}

// Formatter shapes the plan executor's output into the response envelope:
// rationale extraction, chart/recommendation detection, component assembly
// and the primary-component choice.
type Formatter struct {
	segments SegmentResolver
}

// NewFormatter creates a response formatter.
func NewFormatter(segments SegmentResolver) *Formatter {
	return &Formatter{segments: segments}
}

const (
	componentCampaignForm     = "campaign_form"
	componentSegment          = "segment"
	componentSegmentForm      = "segment_form"
	componentChart            = "chart"
	componentRecommendations  = "recommendations"
	componentResearchAnalysis = "research_analysis"
)

// Format builds the response envelope. Whatever the execution produced,
// the returned config always carries a non-empty uiComponents list and a
// primaryComponent drawn from it.
func (f *Formatter) Format(intent string, classification *Classification, execution *ExecutionResult) *Envelope {
	final := execution.FinalResult
	config := f.baseConfig(final)

	rationale := f.rationale(final, execution)
	chart := DetectChart(final, execution.StepResults)
	recommendations := DetectRecommendations(final, execution.StepResults, f.segments)

	components := f.assembleComponents(intent, config, final, rationale, chart, recommendations)
	if len(components) == 0 {
		// Safety net: the envelope must never go out without a renderable
		// component.
		components = []map[string]any{{
			"type":      componentResearchAnalysis,
			"analysis":  config,
			"rationale": rationale,
		}}
	}

	config["uiComponents"] = components
	config["primaryComponent"] = primaryComponent(intent, components)
	if rationale != "" {
		config["rationale"] = rationale
	}

	return &Envelope{
		Intent:              intent,
		Classification:      classification,
		CampaignConfig:      config,
		ExperiencePanelType: experiencePanelType(intent),
		ReasoningSteps:      execution.StepResults,
		Success:             execution.Success,
		Rationale:           rationale,
	}
}

// baseConfig derives the config object from the final result: the campaign
// payload when one exists, a search-results wrapper for list-shaped
// results, otherwise the whole result.
func (f *Formatter) baseConfig(final *Result) map[string]any {
	if final == nil {
		return map[string]any{}
	}
	if final.Campaign != nil {
		config := map[string]any{}
		for k, v := range final.Campaign {
			config[k] = v
		}
		return config
	}
	if final.Items != nil {
		return map[string]any{"type": "search_results", "items": final.Items}
	}
	return final.AsMap()
}

// rationale pulls the human-readable rationale out of the final result and
// appends a "Based on:" block naming the campaigns and segments the
// research step cited as evidence.
func (f *Formatter) rationale(final *Result, execution *ExecutionResult) string {
	var rationale string
	if final != nil {
		rationale = final.Rationale
		if rationale == "" && final.Analysis != nil {
			rationale, _ = final.Analysis["rationale"].(string)
		}
	}

	research := execution.AllResults["research"]
	if research == nil || research.Evidence == nil {
		return rationale
	}
	campaigns, segments := collectEvidenceEntities(research.Evidence)
	if len(campaigns) == 0 && len(segments) == 0 {
		return rationale
	}

	var b strings.Builder
	b.WriteString(rationale)
	b.WriteString("\n\n**Based on:**")
	if len(campaigns) > 0 {
		b.WriteString("\n- Campaigns: " + strings.Join(campaigns, ", "))
	}
	if len(segments) > 0 {
		b.WriteString("\n- Segments: " + strings.Join(segments, ", "))
	}
	return b.String()
}

const maxEvidenceNames = 5

// collectEvidenceEntities walks the research evidence and names up to 5
// distinct campaigns and 5 distinct segments, deduplicated by id, in order
// of first discovery. Entries past the cap are dropped silently.
func collectEvidenceEntities(evidence map[string]any) (campaigns, segments []string) {
	seenCampaigns := map[string]bool{}
	seenSegments := map[string]bool{}

	walkObjects(evidence, func(m map[string]any) bool {
		id, hasID := m["id"].(string)
		name, hasName := m["name"].(string)
		if !hasID || !hasName {
			return false
		}
		switch {
		case hasAnyKey(m, "goals", "segmentIds", "channels", "status"):
			if !seenCampaigns[id] && len(campaigns) < maxEvidenceNames {
				seenCampaigns[id] = true
				campaigns = append(campaigns, name)
			}
		case hasAnyKey(m, "size", "criteria", "filters", "pastConversionRate"):
			if !seenSegments[id] && len(segments) < maxEvidenceNames {
				seenSegments[id] = true
				segments = append(segments, name)
			}
		}
		return false
	})
	return campaigns, segments
}

func (f *Formatter) assembleComponents(intent string, config map[string]any, final *Result, rationale string, chart, recommendations map[string]any) []map[string]any {
	var components []map[string]any

	switch intent {
	case "campaign_generation":
		components = append(components, map[string]any{
			"type":   componentCampaignForm,
			"config": configSnapshot(config),
		})
	case "audience_generation":
		segment := segmentPayload(final, config)
		componentType := componentSegmentForm
		if id, ok := segment["id"].(string); ok && id != "" {
			componentType = componentSegment
		}
		components = append(components, map[string]any{
			"type":    componentType,
			"segment": segment,
		})
	case "search":
		items := []any{}
		if final != nil && final.Items != nil {
			items = final.Items
		}
		components = append(components, map[string]any{
			"type":            componentRecommendations,
			"recommendations": recommendationPayload("mixed", items, "Search Results"),
		})
	case "research":
		if chart == nil && recommendations == nil {
			components = append(components, map[string]any{
				"type":      componentResearchAnalysis,
				"analysis":  analysisPayload(final),
				"rationale": rationale,
			})
		}
	}

	if chart != nil && !hasComponent(components, componentChart) {
		components = append(components, map[string]any{
			"type":  componentChart,
			"chart": chart,
		})
	}
	if recommendations != nil && !hasComponent(components, componentRecommendations) {
		components = append(components, map[string]any{
			"type":            componentRecommendations,
			"recommendations": recommendations,
		})
	}
	return components
}

// configSnapshot shallow-copies the config without the self-referencing
// presentation keys.
func configSnapshot(config map[string]any) map[string]any {
	snapshot := map[string]any{}
	for k, v := range config {
		if k == "uiComponents" || k == "primaryComponent" {
			continue
		}
		snapshot[k] = v
	}
	return snapshot
}

func segmentPayload(final *Result, config map[string]any) map[string]any {
	if final != nil && final.Segment != nil {
		return final.Segment
	}
	return config
}

func analysisPayload(final *Result) map[string]any {
	if final != nil && final.Analysis != nil {
		return final.Analysis
	}
	if final != nil {
		return final.AsMap()
	}
	return map[string]any{}
}

func hasComponent(components []map[string]any, componentType string) bool {
	for _, c := range components {
		if c["type"] == componentType {
			return true
		}
	}
	return false
}

// primaryComponent picks exactly one component type by intent-specific
// precedence. Generation intents keep the editable form on top so it is
// never hidden behind an auto-detected card; exploratory intents surface
// data visualizations first.
//
//	campaign_generation: campaign_form > recommendations > chart > first
//	audience_generation: segment | segment_form > recommendations > chart > first
//	other intents:       chart > recommendations > campaign/segment form > first
func primaryComponent(intent string, components []map[string]any) string {
	var precedence [][]string
	switch intent {
	case "campaign_generation":
		precedence = [][]string{
			{componentCampaignForm},
			{componentRecommendations},
			{componentChart},
		}
	case "audience_generation":
		precedence = [][]string{
			{componentSegment, componentSegmentForm},
			{componentRecommendations},
			{componentChart},
		}
	default:
		precedence = [][]string{
			{componentChart},
			{componentRecommendations},
			{componentCampaignForm, componentSegment, componentSegmentForm},
		}
	}

	for _, group := range precedence {
		for _, c := range components {
			componentType, _ := c["type"].(string)
			for _, want := range group {
				if componentType == want {
					return componentType
				}
			}
		}
	}
	if len(components) > 0 {
		componentType, _ := components[0]["type"].(string)
		return componentType
	}
	return ""
}

func experiencePanelType(intent string) string {
	switch intent {
	case "campaign_generation":
		return "campaign_form"
	case "audience_generation":
		return "segment_form"
	case "search":
		return "search_results"
	case "research":
		return "research_analysis"
	default:
		return "default"
	}
}
