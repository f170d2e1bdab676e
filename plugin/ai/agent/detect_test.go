package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/marketsense/store"
)

func decodeResult(t *testing.T, raw string) *Result {
	t.Helper()
	var value any
	require.NoError(t, json.Unmarshal([]byte(raw), &value))
	return ResultFromValue(value)
}

func chartData(t *testing.T, chart map[string]any) ([]any, []float64) {
	t.Helper()
	require.NotNil(t, chart)
	data, ok := chart["data"].(map[string]any)
	require.True(t, ok)
	labels, ok := data["labels"].([]any)
	require.True(t, ok)
	datasets, ok := data["datasets"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, datasets)
	series, ok := datasets[0].(map[string]any)["data"].([]float64)
	require.True(t, ok)
	return labels, series
}

func TestDetectChartNumericArray(t *testing.T) {
	final := decodeResult(t, `{"analysis": {"monthly_clicks": [1, 2, 3, 4]}}`)

	chart := DetectChart(final, nil)
	labels, series := chartData(t, chart)
	require.Equal(t, []any{"Point 1", "Point 2", "Point 3", "Point 4"}, labels)
	require.Equal(t, []float64{1, 2, 3, 4}, series)
	require.Equal(t, "line", chart["type"])
	require.Equal(t, "Monthly Clicks", chart["title"])
}

func TestDetectChartXYPoints(t *testing.T) {
	final := decodeResult(t, `{"analysis": {"trend": [{"x": "Jan", "y": 5}, {"x": "Feb", "y": 7}]}}`)

	labels, series := chartData(t, DetectChart(final, nil))
	require.Equal(t, []any{"Jan", "Feb"}, labels)
	require.Equal(t, []float64{5.0, 7.0}, series)
}

func TestDetectChartPrebuiltTakesPrecedence(t *testing.T) {
	final := decodeResult(t, `{
		"chart": {
			"title": "Prebuilt",
			"type": "line",
			"data": {"labels": ["a"], "datasets": [{"label": "Data", "data": [1]}]}
		},
		"analysis": {"raw_series": [9, 8, 7]}
	}`)

	chart := DetectChart(final, nil)
	require.Equal(t, "Prebuilt", chart["title"])
}

func TestDetectChartHistoricalPerformance(t *testing.T) {
	final := decodeResult(t, `{
		"evidence": {"historical_performance": {"jan": 0.1, "feb": 0.2, "mar": 0.3}}
	}`)

	labels, series := chartData(t, DetectChart(final, nil))
	require.Equal(t, []any{"feb", "jan", "mar"}, labels)
	require.Equal(t, []float64{0.2, 0.1, 0.3}, series)
}

func TestDetectChartSingleNumberIsNotAChart(t *testing.T) {
	final := decodeResult(t, `{"analysis": {"lonely": [42], "mixed": [1, "two", 3]}}`)
	require.Nil(t, DetectChart(final, nil))
}

func TestDetectChartSecondaryPassOverSteps(t *testing.T) {
	final := decodeResult(t, `{"rationale": "nothing to plot here"}`)
	research := decodeResult(t, `{"analysis": {"weekly": [10, 20, 30]}}`)
	steps := []StepResult{{Step: 1, Agent: "research", Result: research, Success: true}}

	_, series := chartData(t, DetectChart(final, steps))
	require.Equal(t, []float64{10, 20, 30}, series)
}

type fakeSegmentResolver map[string]store.Record

func (f fakeSegmentResolver) SegmentByID(id string) (store.Record, bool) {
	record, ok := f[id]
	return record, ok
}

func TestDetectRecommendationsPrebuiltWins(t *testing.T) {
	final := decodeResult(t, `{
		"recommendations": {"uiComponent": "recommendations", "type": "campaign", "items": [{"id": "camp-1", "name": "Summer Sale"}], "title": "Picked"},
		"recommended_campaigns": [{"id": "camp-2", "name": "Winter Launch"}]
	}`)

	payload := DetectRecommendations(final, nil, nil)
	require.NotNil(t, payload)
	require.Equal(t, "Picked", payload["title"])
}

func TestDetectRecommendationsExplicitFields(t *testing.T) {
	final := decodeResult(t, `{"recommended_segments": [{"id": "seg-1", "name": "High Spenders"}]}`)

	payload := DetectRecommendations(final, nil, nil)
	require.NotNil(t, payload)
	require.Equal(t, "segment", payload["type"])
	require.Equal(t, "Recommended Segments", payload["title"])
	require.Len(t, payload["items"], 1)
}

func TestDetectRecommendationsAudienceResolvesIDs(t *testing.T) {
	final := decodeResult(t, `{
		"analysis": {
			"audience_recommendations": {
				"existing_segments": ["seg-1", "seg-404"],
				"new_segment_suggestions": [{"name": "Night Owls"}]
			}
		}
	}`)
	resolver := fakeSegmentResolver{"seg-1": {"id": "seg-1", "name": "High Spenders"}}

	payload := DetectRecommendations(final, nil, resolver)
	require.NotNil(t, payload)
	items := payload["items"].([]any)
	require.Len(t, items, 2, "unresolvable ids are dropped")
	require.Equal(t, "High Spenders", items[0].(map[string]any)["name"])
	require.Equal(t, true, items[1].(map[string]any)["suggested"])
}

func TestDetectRecommendationsHistoricalCampaigns(t *testing.T) {
	final := decodeResult(t, `{
		"evidence": {"historical_campaigns": [{"id": "camp-1", "name": "Summer Sale", "goals": ["purchase"]}]}
	}`)

	payload := DetectRecommendations(final, nil, nil)
	require.NotNil(t, payload)
	require.Equal(t, "campaign", payload["type"])
	require.Equal(t, "Historical Campaigns", payload["title"])
}

func TestDetectRecommendationsInferredFromFlatList(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		expectedType string
	}{
		{"campaign_like", `[{"id": "c1", "name": "A", "goals": ["purchase"]}]`, "campaign"},
		{"segment_like", `[{"id": "s1", "name": "B", "size": 100}]`, "segment"},
		{"mixed", `[{"id": "c1", "goals": []}, {"id": "s1", "criteria": {}}]`, "mixed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := DetectRecommendations(decodeResult(t, tc.raw), nil, nil)
			require.NotNil(t, payload)
			require.Equal(t, tc.expectedType, payload["type"])
		})
	}
}

func TestDetectRecommendationsIgnoresPlainItems(t *testing.T) {
	final := decodeResult(t, `[{"type": "knowledge", "id": "kb-1", "title": "Email Best Practices"}]`)
	require.Nil(t, DetectRecommendations(final, nil, nil))
}
