// Package agent implements the marketing agent pipeline: specialized
// agents over the completion gateway, the plan executor, the orchestrator
// state machine, and the UI response formatter.
package agent

import (
	"encoding/json"
	"sort"
)

// Result is one agent's structured output: a tagged, partially populated
// record. Fields the model did not produce stay zero; fields outside the
// known shape land in Extra so downstream scanners can still see them.
type Result struct {
	// Error envelope. A gateway failure is converted into these fields at
	// the call boundary and never raised to the caller.
	Error     bool   `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
	Agent     string `json:"agent,omitempty"`

	// Raw content fallback when the model's answer was not valid JSON.
	Raw     bool   `json:"raw,omitempty"`
	Content string `json:"content,omitempty"`

	// Classification output.
	Intent     string  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`

	// Planning output.
	Plan           []PlanStep `json:"plan,omitempty"`
	EstimatedSteps int        `json:"estimated_steps,omitempty"`

	// Domain payloads.
	Rationale       string         `json:"rationale,omitempty"`
	Analysis        map[string]any `json:"analysis,omitempty"`
	Evidence        map[string]any `json:"evidence,omitempty"`
	Campaign        map[string]any `json:"campaign,omitempty"`
	Segment         map[string]any `json:"segment,omitempty"`
	Journey         map[string]any `json:"journey,omitempty"`
	Chart           map[string]any `json:"chart,omitempty"`
	Recommendations any            `json:"recommendations,omitempty"`
	AudienceSegment map[string]any `json:"audience_segment,omitempty"`

	// Items holds list-shaped results (search).
	Items []any `json:"items,omitempty"`

	// Extra is the unknown-field bag for forward compatibility.
	Extra map[string]any `json:"-"`
}

// PlanStep is one step of an execution plan.
type PlanStep struct {
	Step   int            `json:"step"`
	Agent  string         `json:"agent"`
	Action string         `json:"action"`
	Input  map[string]any `json:"input"`
}

// Plan is an ordered list of agent invocations. Immutable once handed to
// the plan executor.
type Plan struct {
	Steps          []PlanStep `json:"plan"`
	EstimatedSteps int        `json:"estimated_steps"`
}

// Classification is the classified category of a user request.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// knownResultKeys are the JSON keys captured into typed fields, in the
// order scanners visit them.
var knownResultKeys = []string{
	"error", "error_type", "message", "agent",
	"raw", "content",
	"intent", "confidence", "reasoning",
	"plan", "estimated_steps",
	"rationale", "analysis", "evidence",
	"campaign", "segment", "journey",
	"chart", "recommendations", "audience_segment",
	"items",
}

// ResultFromValue builds a Result from a decoded JSON value. Objects map
// onto the known fields with the remainder in Extra; arrays become Items.
func ResultFromValue(value any) *Result {
	switch v := value.(type) {
	case map[string]any:
		return resultFromMap(v)
	case []any:
		return &Result{Items: v}
	default:
		return &Result{Raw: true, Content: stringify(v)}
	}
}

func resultFromMap(m map[string]any) *Result {
	// Round-trip through json so typed fields (plan steps, numbers) decode
	// uniformly regardless of how the map was produced.
	raw, err := json.Marshal(m)
	if err != nil {
		return &Result{Raw: true, Content: stringify(m)}
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return &Result{Raw: true, Content: string(raw)}
	}

	for key, value := range m {
		if !isKnownResultKey(key) {
			if r.Extra == nil {
				r.Extra = map[string]any{}
			}
			r.Extra[key] = value
		}
	}
	return &r
}

func isKnownResultKey(key string) bool {
	for _, k := range knownResultKeys {
		if k == key {
			return true
		}
	}
	return false
}

// AsMap renders the populated fields plus Extra as a plain map, the shape
// handed to the UI and to the structural scanners.
func (r *Result) AsMap() map[string]any {
	if r == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	for key, value := range r.Extra {
		m[key] = value
	}
	return m
}

// ScanKeys returns the map's keys in deterministic scan order: known keys
// in their declared priority, then unknown keys sorted. Go maps have no
// insertion order, so unknown keys sort to keep detection stable.
func ScanKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for _, k := range knownResultKeys {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	var extras []string
	for k := range m {
		if !isKnownResultKey(k) {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(keys, extras...)
}

// Classification returns the typed classification carried by the result.
func (r *Result) Classification() *Classification {
	return &Classification{
		Intent:     r.Intent,
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning,
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// errorResult builds the error envelope for a failed agent call.
func errorResult(agentName, errorType string, err error) *Result {
	return &Result{
		Error:     true,
		ErrorType: errorType,
		Message:   err.Error(),
		Agent:     agentName,
	}
}
