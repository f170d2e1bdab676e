// Package v1 exposes the REST API: agent orchestration, dialog sessions,
// and the campaign/segment/compendium catalogs.
package v1

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/marketsense/internal/profile"
	"github.com/hrygo/marketsense/plugin/ai/agent"
	"github.com/hrygo/marketsense/store"
)

// Orchestrator runs one prompt through the agent pipeline.
type Orchestrator interface {
	Orchestrate(ctx context.Context, prompt string, ectx *agent.ExecutionContext) (*agent.Envelope, error)
}

// APIV1Service wires the HTTP surface over the store and the agent
// pipeline.
type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	Sessions     *store.SessionStore
	Orchestrator Orchestrator
	Logger       *slog.Logger

	// orchestrationSemaphore bounds concurrent pipeline runs; each run may
	// hold several model calls in flight.
	orchestrationSemaphore *semaphore.Weighted
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(p *profile.Profile, st *store.Store, sessions *store.SessionStore, orchestrator Orchestrator, logger *slog.Logger) *APIV1Service {
	maxConcurrent := int64(p.MaxConcurrentOrchestrations)
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &APIV1Service{
		Profile:                p,
		Store:                  st,
		Sessions:               sessions,
		Orchestrator:           orchestrator,
		Logger:                 logger,
		orchestrationSemaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Register mounts all v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	api := e.Group("/api/v1")

	api.POST("/agent/orchestrate", s.orchestrate)

	api.GET("/dialog/sessions", s.listSessions)
	api.POST("/dialog/sessions", s.createSession)
	api.GET("/dialog/sessions/:sessionId", s.getSession)
	api.POST("/dialog/sessions/:sessionId/messages", s.addSessionMessage)

	api.GET("/campaigns", s.listCampaigns)
	api.POST("/campaigns", s.createCampaign)
	api.GET("/campaigns/:campaignId", s.getCampaign)
	api.GET("/campaigns/:campaignId/metrics", s.getCampaignMetrics)

	api.GET("/segments", s.listSegments)
	api.POST("/segments", s.createSegment)

	api.GET("/compendium", s.listCompendium)
	api.POST("/compendium", s.createCompendium)

	api.GET("/search", s.search)
}
