package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hrygo/marketsense/store"
)

// Catalog is the data surface the tool executor reads from. *store.Store
// satisfies it.
type Catalog interface {
	FilterCampaigns(filters store.CampaignFilters) ([]store.Record, error)
	FilterSegments(filters store.SegmentFilters) ([]store.Record, error)
	CampaignMetrics(campaignID string) (store.Record, error)
}

// ToolExecutor runs the fixed tool catalog on behalf of an agent loop.
// Execute never panics and never returns a Go error: failures come back as
// {"success": false, "error": ...} payloads the model can read.
type ToolExecutor struct {
	catalog Catalog
}

// NewToolExecutor creates a tool executor over the given catalog.
func NewToolExecutor(catalog Catalog) *ToolExecutor {
	return &ToolExecutor{catalog: catalog}
}

// toolDefinitions is the function-calling catalog announced to the model.
var toolDefinitions = []openai.Tool{
	functionTool("get_campaigns",
		"Retrieve historical campaigns with optional filters. Use this to analyze past campaign performance and configurations.",
		`{
			"type": "object",
			"properties": {
				"goal": {"type": "string", "description": "Filter campaigns by goal (e.g., 'purchase', 'activation', 'engagement')"},
				"status": {"type": "string", "description": "Filter by status: 'active', 'completed', or 'draft'", "enum": ["active", "completed", "draft"]},
				"limit": {"type": "integer", "description": "Maximum number of campaigns to return (default: 10)", "default": 10}
			}
		}`),
	functionTool("get_segments",
		"Retrieve audience segments with optional filters. Use this to find suitable audience segments for campaigns.",
		`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Filter segments by name (fuzzy match)"},
				"min_conversion_rate": {"type": "number", "description": "Minimum conversion rate threshold"},
				"limit": {"type": "integer", "description": "Maximum number of segments to return (default: 10)", "default": 10}
			}
		}`),
	functionTool("get_campaign_metrics",
		"Get performance metrics for a specific campaign. Use this to analyze campaign effectiveness.",
		`{
			"type": "object",
			"properties": {
				"campaign_id": {"type": "string", "description": "The ID of the campaign to get metrics for"}
			},
			"required": ["campaign_id"]
		}`),
	functionTool("create_chart",
		"Create a chart visualization for data extracted during research. Use this to visualize time-series data, performance metrics, or any numeric data arrays.",
		`{
			"type": "object",
			"properties": {
				"data": {"type": "array", "description": "Array of data points. Each point should have 'x' (label) and 'y' (value) properties, or be a number array with corresponding labels array.", "items": {"type": "object", "properties": {"x": {"type": ["string", "number"]}, "y": {"type": "number"}}}},
				"title": {"type": "string", "description": "Chart title"},
				"xLabel": {"type": "string", "description": "X-axis label"},
				"yLabel": {"type": "string", "description": "Y-axis label"},
				"chartType": {"type": "string", "description": "Chart type (default: 'line')", "enum": ["line"], "default": "line"},
				"labels": {"type": "array", "description": "Optional array of labels for X-axis (if data is just numbers)", "items": {"type": "string"}},
				"datasetLabel": {"type": "string", "description": "Label for the dataset (default: 'Data')", "default": "Data"}
			},
			"required": ["data", "title", "xLabel", "yLabel"]
		}`),
	functionTool("show_recommendations",
		"Display recommended campaigns or audience segments as cards in the experience panel. Use this when you identify campaigns or segments that should be recommended to the user.",
		`{
			"type": "object",
			"properties": {
				"items": {"type": "array", "description": "Array of recommendation objects. Each item should be a campaign or segment object with at least 'id' and 'name' fields.", "items": {"type": "object"}},
				"type": {"type": "string", "description": "Type of recommendations", "enum": ["campaign", "segment", "mixed"], "default": "mixed"},
				"title": {"type": "string", "description": "Optional title for the recommendations section (e.g., 'Recommended Campaigns', 'Suggested Segments')"},
				"description": {"type": "string", "description": "Optional description explaining why these items are recommended"}
			},
			"required": ["items"]
		}`),
}

func functionTool(name, description, schema string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(schema),
		},
	}
}

// toolsForAgent returns the catalog for an agent kind. Only research runs
// with tools.
func toolsForAgent(agentName string) []openai.Tool {
	if agentName == "research" {
		return toolDefinitions
	}
	return nil
}

// Execute runs one named tool.
func (te *ToolExecutor) Execute(toolName string, arguments map[string]any) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ToolExecutor: tool panicked", "tool", toolName, "panic", r)
			result = map[string]any{"success": false, "error": fmt.Sprint(r)}
		}
	}()

	switch toolName {
	case "get_campaigns":
		return te.getCampaigns(arguments)
	case "get_segments":
		return te.getSegments(arguments)
	case "get_campaign_metrics":
		return te.getCampaignMetrics(arguments)
	case "create_chart":
		return createChart(arguments)
	case "show_recommendations":
		return showRecommendations(arguments)
	default:
		return map[string]any{"success": false, "error": fmt.Sprintf("Unknown tool: %s", toolName)}
	}
}

func (te *ToolExecutor) getCampaigns(args map[string]any) map[string]any {
	filters := store.CampaignFilters{
		Goal:   argString(args, "goal"),
		Status: argString(args, "status"),
		Limit:  argInt(args, "limit", 10),
	}
	records, err := te.catalog.FilterCampaigns(filters)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}
	return map[string]any{"success": true, "data": records, "count": len(records)}
}

func (te *ToolExecutor) getSegments(args map[string]any) map[string]any {
	filters := store.SegmentFilters{
		Name:              argString(args, "name"),
		MinConversionRate: argFloat(args, "min_conversion_rate"),
		Limit:             argInt(args, "limit", 10),
	}
	records, err := te.catalog.FilterSegments(filters)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}
	return map[string]any{"success": true, "data": records, "count": len(records)}
}

func (te *ToolExecutor) getCampaignMetrics(args map[string]any) map[string]any {
	campaignID := argString(args, "campaign_id")
	if campaignID == "" {
		return map[string]any{"success": false, "error": "campaign_id is required"}
	}
	metrics, err := te.catalog.CampaignMetrics(campaignID)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}
	return map[string]any{"success": true, "data": metrics}
}

// createChart shapes a point list or number list into the line-chart
// payload the frontend renders directly.
func createChart(args map[string]any) map[string]any {
	data, _ := args["data"].([]any)
	title := argStringDefault(args, "title", "Chart")
	xLabel := argStringDefault(args, "xLabel", "X Axis")
	yLabel := argStringDefault(args, "yLabel", "Y Axis")
	chartType := argStringDefault(args, "chartType", "line")
	datasetLabel := argStringDefault(args, "datasetLabel", "Data")

	var chartLabels []any
	var chartData []float64

	if labels, ok := args["labels"].([]any); ok && len(labels) > 0 {
		chartLabels = labels
		for _, point := range data {
			switch p := point.(type) {
			case map[string]any:
				chartData = append(chartData, numberOf(p["y"]))
			case float64:
				chartData = append(chartData, p)
			}
		}
	} else {
		for _, point := range data {
			switch p := point.(type) {
			case map[string]any:
				chartLabels = append(chartLabels, fmt.Sprint(p["x"]))
				chartData = append(chartData, numberOf(p["y"]))
			case float64:
				chartLabels = append(chartLabels, strconv.Itoa(len(chartLabels)+1))
				chartData = append(chartData, p)
			}
		}
	}

	if len(chartData) == 0 {
		return map[string]any{"success": false, "error": "No valid data points found"}
	}

	return map[string]any{
		"success": true,
		"chart": map[string]any{
			"title":  title,
			"xLabel": xLabel,
			"yLabel": yLabel,
			"type":   chartType,
			"data": map[string]any{
				"labels": chartLabels,
				"datasets": []any{map[string]any{
					"label":           datasetLabel,
					"data":            chartData,
					"borderColor":     "rgb(59, 130, 246)",
					"backgroundColor": "rgba(59, 130, 246, 0.1)",
				}},
			},
		},
	}
}

func showRecommendations(args map[string]any) map[string]any {
	items, ok := args["items"].([]any)
	if !ok || len(items) == 0 {
		return map[string]any{"success": false, "error": "items array is required and must be a list"}
	}
	recType := argStringDefault(args, "type", "mixed")

	title := argString(args, "title")
	if title == "" {
		title = "Recommendations"
		if recType != "mixed" {
			title = fmt.Sprintf("Recommended %ss", capitalize(recType))
		}
	}

	return map[string]any{
		"success": true,
		"recommendations": map[string]any{
			"uiComponent": "recommendations",
			"type":        recType,
			"items":       items,
			"title":       title,
			"description": argString(args, "description"),
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argStringDefault(args map[string]any, key, fallback string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func argInt(args map[string]any, key string, fallback int) int {
	if n, ok := args[key].(float64); ok {
		return int(n)
	}
	return fallback
}

func argFloat(args map[string]any, key string) float64 {
	n, _ := args[key].(float64)
	return n
}

func numberOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
