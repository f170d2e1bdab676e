package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/marketsense/store"
)

// SegmentResolver expands segment-id references found inside audience
// recommendations. *store.Store satisfies it.
type SegmentResolver interface {
	SegmentByID(id string) (store.Record, bool)
}

// DetectChart finds embeddable chart data in the final result, falling
// back to a secondary pass over every step's raw result. Depth-first, first
// match wins. At each object the matchers run in priority order:
//
//  1. an explicit pre-built chart payload (itself, or under a "chart" key)
//  2. a "historical_performance" numeric series
//  3. any array of >=2 uniform numeric values
//  4. any array of {x,y} points
//
// and the visit order is: the object's own values first, then list
// elements in order, then nested object values last.
func DetectChart(final *Result, steps []StepResult) map[string]any {
	if final != nil {
		if chart := scanForChart(final.AsMap(), ""); chart != nil {
			return chart
		}
	}
	for _, sr := range steps {
		if sr.Result == nil {
			continue
		}
		if chart := scanForChart(sr.Result.AsMap(), ""); chart != nil {
			return chart
		}
	}
	return nil
}

func scanForChart(value any, key string) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		if isChartPayload(v) {
			return v
		}
		if nested, ok := v["chart"].(map[string]any); ok && isChartPayload(nested) {
			return nested
		}

		keys := ScanKeys(v)
		for _, k := range keys {
			if k == "historical_performance" {
				if chart := performanceChart(v[k]); chart != nil {
					return chart
				}
			}
			if list, ok := v[k].([]any); ok {
				if chart := arrayChart(list, k); chart != nil {
					return chart
				}
			}
		}
		for _, k := range keys {
			if list, ok := v[k].([]any); ok {
				for _, element := range list {
					if chart := scanForChart(element, k); chart != nil {
						return chart
					}
				}
			}
		}
		for _, k := range keys {
			if nested, ok := v[k].(map[string]any); ok {
				if chart := scanForChart(nested, k); chart != nil {
					return chart
				}
			}
		}
	case []any:
		if chart := arrayChart(v, key); chart != nil {
			return chart
		}
		for _, element := range v {
			if chart := scanForChart(element, key); chart != nil {
				return chart
			}
		}
	}
	return nil
}

// isChartPayload recognizes the shape emitted by the chart-shaping tool.
func isChartPayload(m map[string]any) bool {
	data, ok := m["data"].(map[string]any)
	if !ok {
		return false
	}
	_, hasDatasets := data["datasets"].([]any)
	_, hasLabels := data["labels"].([]any)
	return hasDatasets && hasLabels
}

// arrayChart converts a numeric or {x,y}-point array into a line chart.
func arrayChart(list []any, key string) map[string]any {
	if values, ok := uniformNumbers(list); ok && len(values) >= 2 {
		labels := make([]any, len(values))
		for i := range values {
			labels[i] = fmt.Sprintf("Point %d", i+1)
		}
		return buildLineChart(chartTitle(key), labels, values)
	}

	if labels, values, ok := xyPoints(list); ok {
		return buildLineChart(chartTitle(key), labels, values)
	}
	return nil
}

func uniformNumbers(list []any) ([]float64, bool) {
	if len(list) == 0 {
		return nil, false
	}
	values := make([]float64, 0, len(list))
	for _, element := range list {
		n, ok := element.(float64)
		if !ok {
			return nil, false
		}
		values = append(values, n)
	}
	return values, true
}

func xyPoints(list []any) ([]any, []float64, bool) {
	if len(list) == 0 {
		return nil, nil, false
	}
	labels := make([]any, 0, len(list))
	values := make([]float64, 0, len(list))
	for _, element := range list {
		point, ok := element.(map[string]any)
		if !ok {
			return nil, nil, false
		}
		x, hasX := point["x"]
		y, hasY := point["y"].(float64)
		if !hasX || !hasY {
			return nil, nil, false
		}
		labels = append(labels, fmt.Sprint(x))
		values = append(values, y)
	}
	return labels, values, true
}

// performanceChart converts an evidence time series. Accepts either a
// {labels, values} pair or a plain name->number map (keys sorted).
func performanceChart(value any) map[string]any {
	series, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	if rawLabels, ok := series["labels"].([]any); ok {
		if values, ok := uniformNumbers(anyList(series["values"])); ok && len(values) == len(rawLabels) {
			return buildLineChart("Historical Performance", rawLabels, values)
		}
	}

	keys := make([]string, 0, len(series))
	for k := range series {
		if _, ok := series[k].(float64); !ok {
			return nil
		}
		keys = append(keys, k)
	}
	if len(keys) < 2 {
		return nil
	}
	sort.Strings(keys)
	labels := make([]any, len(keys))
	values := make([]float64, len(keys))
	for i, k := range keys {
		labels[i] = k
		values[i] = series[k].(float64)
	}
	return buildLineChart("Historical Performance", labels, values)
}

func anyList(v any) []any {
	list, _ := v.([]any)
	return list
}

func buildLineChart(title string, labels []any, values []float64) map[string]any {
	return map[string]any{
		"title":  title,
		"xLabel": "Label",
		"yLabel": "Value",
		"type":   "line",
		"data": map[string]any{
			"labels": labels,
			"datasets": []any{map[string]any{
				"label":           "Data",
				"data":            values,
				"borderColor":     "rgb(59, 130, 246)",
				"backgroundColor": "rgba(59, 130, 246, 0.1)",
			}},
		},
	}
}

func chartTitle(key string) string {
	if key == "" || key == "items" {
		return "Data Visualization"
	}
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = capitalize(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// DetectRecommendations finds an embeddable recommendation list using a
// layered precedence; each layer checks the final result first and then
// every step's raw result. First non-empty match wins.
//
//  1. an explicit pre-built recommendations payload
//  2. explicit recommended_campaigns / recommended_segments fields
//  3. analysis.audience_recommendations, resolving existing-segment ids
//     against the segment collection
//  4. campaign-like items inside evidence.historical_campaigns
//  5. a flat list of items inferred by telltale fields (goals/segmentIds
//     mean campaign-like, size/criteria mean segment-like)
func DetectRecommendations(final *Result, steps []StepResult, segments SegmentResolver) map[string]any {
	layers := []func(map[string]any) map[string]any{
		prebuiltRecommendations,
		explicitRecommendationFields,
		func(m map[string]any) map[string]any { return audienceRecommendations(m, segments) },
		historicalCampaignRecommendations,
		inferredRecommendations,
	}

	trees := resultTrees(final, steps)
	for _, layer := range layers {
		for _, tree := range trees {
			if payload := layer(tree); payload != nil {
				return payload
			}
		}
	}
	return nil
}

func resultTrees(final *Result, steps []StepResult) []map[string]any {
	var trees []map[string]any
	if final != nil {
		trees = append(trees, final.AsMap())
	}
	for _, sr := range steps {
		if sr.Result != nil {
			trees = append(trees, sr.Result.AsMap())
		}
	}
	return trees
}

// prebuiltRecommendations looks for the payload shape emitted by the
// recommendation-shaping tool, anywhere under a "recommendations" key.
func prebuiltRecommendations(tree map[string]any) map[string]any {
	var found map[string]any
	walkObjects(tree, func(m map[string]any) bool {
		nested, ok := m["recommendations"].(map[string]any)
		if !ok {
			return false
		}
		if items, ok := nested["items"].([]any); !ok || len(items) == 0 {
			return false
		}
		found = nested
		return true
	})
	return found
}

func explicitRecommendationFields(tree map[string]any) map[string]any {
	var campaigns, segments []any
	walkObjects(tree, func(m map[string]any) bool {
		if list, ok := m["recommended_campaigns"].([]any); ok && len(list) > 0 && campaigns == nil {
			campaigns = list
		}
		if list, ok := m["recommended_segments"].([]any); ok && len(list) > 0 && segments == nil {
			segments = list
		}
		return campaigns != nil && segments != nil
	})

	switch {
	case campaigns != nil && segments != nil:
		return recommendationPayload("mixed", append(append([]any{}, campaigns...), segments...), "Recommendations")
	case campaigns != nil:
		return recommendationPayload("campaign", campaigns, "Recommended Campaigns")
	case segments != nil:
		return recommendationPayload("segment", segments, "Recommended Segments")
	default:
		return nil
	}
}

// audienceRecommendations expands analysis.audience_recommendations:
// existing-segment references resolve against the segment collection and
// new-segment suggestions are carried inline.
func audienceRecommendations(tree map[string]any, segments SegmentResolver) map[string]any {
	analysis, ok := tree["analysis"].(map[string]any)
	if !ok {
		return nil
	}
	audience, ok := analysis["audience_recommendations"].(map[string]any)
	if !ok {
		return nil
	}

	var items []any
	for _, ref := range anyList(audience["existing_segments"]) {
		switch r := ref.(type) {
		case string:
			if segments == nil {
				continue
			}
			if record, ok := segments.SegmentByID(r); ok {
				items = append(items, map[string]any(record))
			}
		case map[string]any:
			items = append(items, r)
		}
	}
	for _, suggestion := range anyList(audience["new_segment_suggestions"]) {
		if m, ok := suggestion.(map[string]any); ok {
			item := map[string]any{"suggested": true}
			for k, v := range m {
				item[k] = v
			}
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return nil
	}
	return recommendationPayload("segment", items, "Audience Recommendations")
}

func historicalCampaignRecommendations(tree map[string]any) map[string]any {
	var found []any
	walkObjects(tree, func(m map[string]any) bool {
		evidence, ok := m["evidence"].(map[string]any)
		if !ok {
			return false
		}
		list := anyList(evidence["historical_campaigns"])
		if len(list) == 0 {
			return false
		}
		found = list
		return true
	})
	if found == nil {
		return nil
	}
	return recommendationPayload("campaign", found, "Historical Campaigns")
}

// inferredRecommendations classifies a flat item list by telltale fields.
func inferredRecommendations(tree map[string]any) map[string]any {
	items := anyList(tree["items"])
	if len(items) == 0 {
		return nil
	}

	var matched []any
	sawCampaign, sawSegment := false, false
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch {
		case hasAnyKey(m, "goals", "segmentIds"):
			sawCampaign = true
			matched = append(matched, m)
		case hasAnyKey(m, "size", "criteria"):
			sawSegment = true
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	recType := "mixed"
	title := "Recommendations"
	switch {
	case sawCampaign && !sawSegment:
		recType, title = "campaign", "Recommended Campaigns"
	case sawSegment && !sawCampaign:
		recType, title = "segment", "Recommended Segments"
	}
	return recommendationPayload(recType, matched, title)
}

func recommendationPayload(recType string, items []any, title string) map[string]any {
	return map[string]any{
		"uiComponent": "recommendations",
		"type":        recType,
		"items":       items,
		"title":       title,
	}
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// walkObjects visits every object in the tree depth-first, in ScanKeys
// order, stopping when visit returns true.
func walkObjects(value any, visit func(map[string]any) bool) bool {
	switch v := value.(type) {
	case map[string]any:
		if visit(v) {
			return true
		}
		for _, k := range ScanKeys(v) {
			if walkObjects(v[k], visit) {
				return true
			}
		}
	case []any:
		for _, element := range v {
			if walkObjects(element, visit) {
				return true
			}
		}
	}
	return false
}
