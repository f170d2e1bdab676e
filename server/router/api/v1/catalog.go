package v1

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/marketsense/store"
)

// CreateCampaignRequest is the body of POST /api/v1/campaigns.
type CreateCampaignRequest struct {
	SessionID             string         `json:"sessionId,omitempty"`
	Name                  string         `json:"name"`
	Description           string         `json:"description,omitempty"`
	Goals                 []string       `json:"goals,omitempty"`
	Schedule              map[string]any `json:"schedule,omitempty"`
	UserFlowConfig        map[string]any `json:"userFlowConfig,omitempty"`
	EstimatedAudienceSize int            `json:"estimatedAudienceSize,omitempty"`
	SegmentIDs            []string       `json:"segmentIds,omitempty"`
	Channels              []string       `json:"channels,omitempty"`
	Variants              []any          `json:"variants,omitempty"`
}

// CreateSegmentRequest is the body of POST /api/v1/segments.
type CreateSegmentRequest struct {
	Name         string         `json:"name"`
	Filters      map[string]any `json:"filters,omitempty"`
	Demographics map[string]any `json:"demographics,omitempty"`
	Behaviors    map[string]any `json:"behaviors,omitempty"`
}

// CreateCompendiumRequest is the body of POST /api/v1/compendium.
type CreateCompendiumRequest struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	ArticleType string         `json:"articleType,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// listCampaigns returns all campaigns, optionally narrowed by a CEL
// filter expression over name, description, status, goals, channels and
// estimatedAudienceSize, e.g. ?filter=status == "active".
func (s *APIV1Service) listCampaigns(c echo.Context) error {
	campaigns, err := s.Store.Campaigns()
	if err != nil {
		return err
	}

	if expr := c.QueryParam("filter"); expr != "" {
		filter, err := store.CompileCampaignFilter(expr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid filter: "+err.Error())
		}
		var matched []store.Record
		for _, campaign := range campaigns {
			if filter.Match(campaign) {
				matched = append(matched, campaign)
			}
		}
		campaigns = matched
	}
	if campaigns == nil {
		campaigns = []store.Record{}
	}
	return c.JSON(http.StatusOK, campaigns)
}

func (s *APIV1Service) createCampaign(c echo.Context) error {
	var req CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	now := time.Now().Format(time.RFC3339)
	campaign := store.Record{
		"id":                    uuid.New().String(),
		"sessionId":             req.SessionID,
		"name":                  req.Name,
		"description":           req.Description,
		"goals":                 req.Goals,
		"status":                "draft",
		"schedule":              orEmptyMap(req.Schedule),
		"userFlowConfig":        orEmptyMap(req.UserFlowConfig),
		"estimatedAudienceSize": req.EstimatedAudienceSize,
		"segmentIds":            req.SegmentIDs,
		"channels":              req.Channels,
		"variants":              req.Variants,
		"createdAt":             now,
		"updatedAt":             now,
	}
	if err := s.Store.AppendCampaign(campaign); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, campaign)
}

func (s *APIV1Service) getCampaign(c echo.Context) error {
	campaign, ok := s.Store.CampaignByID(c.Param("campaignId"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Campaign not found")
	}
	return c.JSON(http.StatusOK, campaign)
}

func (s *APIV1Service) getCampaignMetrics(c echo.Context) error {
	metrics, err := s.Store.CampaignMetrics(c.Param("campaignId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Campaign not found")
	}
	return c.JSON(http.StatusOK, metrics)
}

func (s *APIV1Service) listSegments(c echo.Context) error {
	segments, err := s.Store.Segments()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, segments)
}

func (s *APIV1Service) createSegment(c echo.Context) error {
	var req CreateSegmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	segment := store.Record{
		"id":                 uuid.New().String(),
		"name":               req.Name,
		"filters":            orEmptyMap(req.Filters),
		"size":               0,
		"pastConversionRate": 0.0,
		"demographics":       orEmptyMap(req.Demographics),
		"behaviors":          orEmptyMap(req.Behaviors),
		"createdAt":          time.Now().Format(time.RFC3339),
	}
	if err := s.Store.AppendSegment(segment); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, segment)
}

func (s *APIV1Service) listCompendium(c echo.Context) error {
	articles, err := s.Store.Knowledge()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, articles)
}

func (s *APIV1Service) createCompendium(c echo.Context) error {
	var req CreateCompendiumRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	now := time.Now().Format(time.RFC3339)
	article := store.Record{
		"id":          uuid.New().String(),
		"title":       req.Title,
		"content":     req.Content,
		"articleType": req.ArticleType,
		"metadata":    orEmptyMap(req.Metadata),
		"createdAt":   now,
		"updatedAt":   now,
	}
	if err := s.Store.AppendKnowledge(article); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// search runs the multi-collection substring search, optionally limited to
// one collection with ?type=campaign|segment|knowledge.
func (s *APIV1Service) search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	var (
		results []store.Record
		err     error
	)
	switch c.QueryParam("type") {
	case "", "all":
		results, err = s.Store.SearchAll(query)
	case "campaign":
		results, err = s.Store.SearchCampaigns(query)
	case "segment":
		results, err = s.Store.SearchSegments(query)
	case "knowledge", "compendium":
		results, err = s.Store.SearchKnowledge(query)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown search type")
	}
	if err != nil {
		return err
	}
	if results == nil {
		results = []store.Record{}
	}
	return c.JSON(http.StatusOK, results)
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
