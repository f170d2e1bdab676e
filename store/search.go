package store

import (
	"fmt"
	"strings"
)

// SearchCampaigns returns campaigns whose name or description contains the
// query, case-insensitively.
func (s *Store) SearchCampaigns(query string) ([]Record, error) {
	campaigns, err := s.Campaigns()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var results []Record
	for _, c := range campaigns {
		if strings.Contains(strings.ToLower(stringField(c, "name")), q) ||
			strings.Contains(strings.ToLower(stringField(c, "description")), q) {
			results = append(results, c)
		}
	}
	return results, nil
}

// SearchSegments returns segments whose name or filter definition contains
// the query, case-insensitively.
func (s *Store) SearchSegments(query string) ([]Record, error) {
	segments, err := s.Segments()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var results []Record
	for _, seg := range segments {
		if strings.Contains(strings.ToLower(stringField(seg, "name")), q) ||
			strings.Contains(strings.ToLower(fmt.Sprint(seg["filters"])), q) {
			results = append(results, seg)
		}
	}
	return results, nil
}

// SearchKnowledge returns knowledge articles whose title or content contains
// the query, case-insensitively.
func (s *Store) SearchKnowledge(query string) ([]Record, error) {
	articles, err := s.Knowledge()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var results []Record
	for _, a := range articles {
		if strings.Contains(strings.ToLower(stringField(a, "title")), q) ||
			strings.Contains(strings.ToLower(stringField(a, "content")), q) {
			results = append(results, a)
		}
	}
	return results, nil
}

// SearchAll searches all collections and merges results in the fixed order
// campaigns, then segments, then knowledge, each preserving source order.
func (s *Store) SearchAll(query string) ([]Record, error) {
	var results []Record

	campaigns, err := s.SearchCampaigns(query)
	if err != nil {
		return nil, err
	}
	for _, c := range campaigns {
		results = append(results, Record{
			"type":        "campaign",
			"id":          c["id"],
			"title":       c["name"],
			"description": stringField(c, "description"),
		})
	}

	segments, err := s.SearchSegments(query)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		results = append(results, Record{
			"type":        "segment",
			"id":          seg["id"],
			"title":       seg["name"],
			"description": fmt.Sprintf("Segment with %d members", int(numberField(seg, "size"))),
		})
	}

	articles, err := s.SearchKnowledge(query)
	if err != nil {
		return nil, err
	}
	for _, a := range articles {
		results = append(results, Record{
			"type":        "knowledge",
			"id":          a["id"],
			"title":       a["title"],
			"description": snippet(PlainText(stringField(a, "content")), 100),
		})
	}

	return results, nil
}

func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
