// Package store provides the file-backed persistence layer: the campaign,
// segment and knowledge catalogs, and the advisory-locked session store.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	campaignsFile = "campaigns.json"
	segmentsFile  = "segments.json"
	knowledgeFile = "knowledge.json"
)

// Record is an open-shaped catalog document. Catalog schemas belong to the
// UI; the backend never narrows them.
type Record = map[string]any

// Store is the JSON-file catalog store.
type Store struct {
	dataDir string

	// mu serializes in-process catalog writes. Cross-process safety is only
	// required for the session file, which carries its own advisory locks.
	mu sync.Mutex
}

// New creates a store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// DataDir returns the directory holding the JSON files.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) loadCollection(file string) ([]Record, error) {
	path := filepath.Join(s.dataDir, file)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, errors.Wrapf(err, "read %s", file)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.Wrapf(err, "decode %s", file)
	}
	return records, nil
}

func (s *Store) saveCollection(file string, records []Record) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", file)
	}
	path := filepath.Join(s.dataDir, file)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", file)
	}
	return nil
}

// Campaigns returns all campaigns.
func (s *Store) Campaigns() ([]Record, error) {
	return s.loadCollection(campaignsFile)
}

// Segments returns all segments.
func (s *Store) Segments() ([]Record, error) {
	return s.loadCollection(segmentsFile)
}

// Knowledge returns all knowledge articles.
func (s *Store) Knowledge() ([]Record, error) {
	return s.loadCollection(knowledgeFile)
}

// AppendCampaign persists a new campaign.
func (s *Store) AppendCampaign(record Record) error {
	return s.appendTo(campaignsFile, record)
}

// AppendSegment persists a new segment.
func (s *Store) AppendSegment(record Record) error {
	return s.appendTo(segmentsFile, record)
}

// AppendKnowledge persists a new knowledge article.
func (s *Store) AppendKnowledge(record Record) error {
	return s.appendTo(knowledgeFile, record)
}

func (s *Store) appendTo(file string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadCollection(file)
	if err != nil {
		return err
	}
	records = append(records, record)
	return s.saveCollection(file, records)
}

// CampaignByID returns the campaign with the given id.
func (s *Store) CampaignByID(id string) (Record, bool) {
	return s.findByID(campaignsFile, id)
}

// SegmentByID returns the segment with the given id. Used when expanding
// audience-recommendation references.
func (s *Store) SegmentByID(id string) (Record, bool) {
	return s.findByID(segmentsFile, id)
}

func (s *Store) findByID(file, id string) (Record, bool) {
	records, err := s.loadCollection(file)
	if err != nil {
		return nil, false
	}
	for _, r := range records {
		if stringField(r, "id") == id {
			return r, true
		}
	}
	return nil, false
}

// CampaignFilters narrows campaign retrieval for the research tools.
type CampaignFilters struct {
	Goal   string
	Status string
	Limit  int
}

// FilterCampaigns returns campaigns matching the given filters.
func (s *Store) FilterCampaigns(f CampaignFilters) ([]Record, error) {
	campaigns, err := s.Campaigns()
	if err != nil {
		return nil, err
	}

	filtered := campaigns
	if f.Goal != "" {
		goal := strings.ToLower(f.Goal)
		var next []Record
		for _, c := range filtered {
			if strings.Contains(strings.ToLower(fmt.Sprint(c["goals"])), goal) {
				next = append(next, c)
			}
		}
		filtered = next
	}
	if f.Status != "" {
		status := strings.ToLower(f.Status)
		var next []Record
		for _, c := range filtered {
			if strings.ToLower(stringField(c, "status")) == status {
				next = append(next, c)
			}
		}
		filtered = next
	}
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, nil
}

// SegmentFilters narrows segment retrieval for the research tools.
type SegmentFilters struct {
	Name              string
	MinConversionRate float64
	Limit             int
}

// FilterSegments returns segments matching the given filters.
func (s *Store) FilterSegments(f SegmentFilters) ([]Record, error) {
	segments, err := s.Segments()
	if err != nil {
		return nil, err
	}

	filtered := segments
	if f.Name != "" {
		name := strings.ToLower(f.Name)
		var next []Record
		for _, seg := range filtered {
			if strings.Contains(strings.ToLower(stringField(seg, "name")), name) {
				next = append(next, seg)
			}
		}
		filtered = next
	}
	if f.MinConversionRate > 0 {
		var next []Record
		for _, seg := range filtered {
			if numberField(seg, "pastConversionRate") >= f.MinConversionRate {
				next = append(next, seg)
			}
		}
		filtered = next
	}
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, nil
}

// CampaignMetrics returns performance metrics for a campaign. Metrics
// delivery is an external concern; the values are synthetic but the
// campaign must exist.
func (s *Store) CampaignMetrics(campaignID string) (Record, error) {
	if _, ok := s.CampaignByID(campaignID); !ok {
		return nil, errors.Errorf("campaign %s not found", campaignID)
	}
	return Record{
		"campaign_id":     campaignID,
		"delivered":       10000,
		"opened":          3500,
		"clicked":         1200,
		"converted":       450,
		"open_rate":       0.35,
		"click_rate":      0.12,
		"conversion_rate": 0.045,
	}, nil
}

func stringField(r Record, key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func numberField(r Record, key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}
