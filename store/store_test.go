package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	campaigns := []Record{
		{
			"id": "camp-1", "name": "Summer Sale", "description": "Seasonal discount push",
			"status": "completed", "goals": []any{"purchase"}, "channels": []any{"email", "sms"},
			"estimatedAudienceSize": float64(12000),
		},
		{
			"id": "camp-2", "name": "Winter Launch", "description": "New product launch",
			"status": "active", "goals": []any{"activation", "purchase"}, "channels": []any{"push"},
			"estimatedAudienceSize": float64(8000),
		},
		{
			"id": "camp-3", "name": "Loyalty Boost", "description": "Retention campaign",
			"status": "draft", "goals": []any{"engagement"}, "channels": []any{"email"},
			"estimatedAudienceSize": float64(4000),
		},
	}
	segments := []Record{
		{"id": "seg-1", "name": "High Spenders", "size": float64(5000), "pastConversionRate": 0.08, "filters": map[string]any{"spend": "high"}},
		{"id": "seg-2", "name": "Lapsed Users", "size": float64(20000), "pastConversionRate": 0.01, "filters": map[string]any{"activity": "lapsed"}},
	}
	knowledge := []Record{
		{"id": "kb-1", "title": "Email Best Practices", "content": "# Subject lines\n\nKeep them **short** and direct."},
	}

	writeCollection(t, dir, "campaigns.json", campaigns)
	writeCollection(t, dir, "segments.json", segments)
	writeCollection(t, dir, "knowledge.json", knowledge)
	return New(dir)
}

func writeCollection(t *testing.T, dir, file string, records []Record) {
	t.Helper()
	raw, err := json.MarshalIndent(records, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), raw, 0o644))
}

func TestLoadMissingCollection(t *testing.T) {
	s := New(t.TempDir())
	campaigns, err := s.Campaigns()
	require.NoError(t, err)
	require.Empty(t, campaigns)
}

func TestFilterCampaigns(t *testing.T) {
	s := newTestStore(t)

	testCases := []struct {
		name        string
		filters     CampaignFilters
		expectedIDs []string
	}{
		{"no_filters", CampaignFilters{}, []string{"camp-1", "camp-2", "camp-3"}},
		{"by_goal", CampaignFilters{Goal: "purchase"}, []string{"camp-1", "camp-2"}},
		{"by_status", CampaignFilters{Status: "active"}, []string{"camp-2"}},
		{"goal_and_status", CampaignFilters{Goal: "purchase", Status: "completed"}, []string{"camp-1"}},
		{"with_limit", CampaignFilters{Limit: 2}, []string{"camp-1", "camp-2"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := s.FilterCampaigns(tc.filters)
			require.NoError(t, err)
			require.Equal(t, tc.expectedIDs, recordIDs(records))
		})
	}
}

func TestFilterSegments(t *testing.T) {
	s := newTestStore(t)

	records, err := s.FilterSegments(SegmentFilters{MinConversionRate: 0.05})
	require.NoError(t, err)
	require.Equal(t, []string{"seg-1"}, recordIDs(records))

	records, err = s.FilterSegments(SegmentFilters{Name: "lapsed"})
	require.NoError(t, err)
	require.Equal(t, []string{"seg-2"}, recordIDs(records))
}

func TestSearchAllMergeOrder(t *testing.T) {
	s := newTestStore(t)

	// "s" matches campaigns, segments and the knowledge article; collection
	// order must be campaigns, then segments, then knowledge.
	results, err := s.SearchAll("s")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var types []string
	for _, r := range results {
		types = append(types, r["type"].(string))
	}
	lastCampaign, firstSegment := -1, len(types)
	lastSegment, firstKnowledge := -1, len(types)
	for i, typ := range types {
		switch typ {
		case "campaign":
			lastCampaign = i
		case "segment":
			if i < firstSegment {
				firstSegment = i
			}
			lastSegment = i
		case "knowledge":
			if i < firstKnowledge {
				firstKnowledge = i
			}
		}
	}
	require.Less(t, lastCampaign, firstSegment)
	require.Less(t, lastSegment, firstKnowledge)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)

	results, err := s.SearchCampaigns("SUMMER")
	require.NoError(t, err)
	require.Equal(t, []string{"camp-1"}, recordIDs(results))
}

func TestSearchSegmentDescription(t *testing.T) {
	s := newTestStore(t)

	results, err := s.SearchAll("Lapsed")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Segment with 20000 members", results[0]["description"])
}

func TestCampaignMetrics(t *testing.T) {
	s := newTestStore(t)

	metrics, err := s.CampaignMetrics("camp-1")
	require.NoError(t, err)
	require.Equal(t, "camp-1", metrics["campaign_id"])
	require.Equal(t, 0.045, metrics["conversion_rate"])

	_, err = s.CampaignMetrics("missing")
	require.Error(t, err)
}

func TestSegmentByID(t *testing.T) {
	s := newTestStore(t)

	seg, ok := s.SegmentByID("seg-2")
	require.True(t, ok)
	require.Equal(t, "Lapsed Users", seg["name"])

	_, ok = s.SegmentByID("seg-404")
	require.False(t, ok)
}

func TestAppendCampaign(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendCampaign(Record{"id": "camp-4", "name": "Flash Sale"}))
	campaigns, err := s.Campaigns()
	require.NoError(t, err)
	require.Len(t, campaigns, 4)
	require.Equal(t, "Flash Sale", campaigns[3]["name"])
}

func TestPlainText(t *testing.T) {
	text := PlainText("# Subject lines\n\nKeep them **short** and [direct](https://example.com).")
	require.Equal(t, "Subject lines Keep them short and direct.", text)
}

func recordIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r["id"].(string))
	}
	return ids
}
