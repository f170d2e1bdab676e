// Package server assembles the HTTP server over the store and the agent
// pipeline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/marketsense/internal/profile"
	"github.com/hrygo/marketsense/plugin/ai"
	"github.com/hrygo/marketsense/plugin/ai/agent"
	"github.com/hrygo/marketsense/server/middleware"
	apiv1 "github.com/hrygo/marketsense/server/router/api/v1"
	"github.com/hrygo/marketsense/store"
)

// Server is the HTTP server for the campaign orchestration API.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer  *echo.Echo
	rateLimiter *middleware.RateLimiter
}

// NewServer creates a server with the full pipeline wired.
func NewServer(p *profile.Profile) (*Server, error) {
	st := store.New(p.Data)
	sessions := store.NewSessionStore(p.Data)

	gateway := ai.NewProvider(&ai.Config{
		BaseURL:    p.LLMBaseURL,
		APIKey:     p.LLMAPIKey,
		ChatModel:  p.LLMModel,
		MaxRetries: p.LLMMaxRetries,
		Timeout:    p.LLMTimeout,
	})
	orchestrator := agent.New(gateway, st)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	rateLimiter := middleware.NewRateLimiter(10, 20)
	e.Use(rateLimiter.Middleware())

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"message": "AI-native Campaign Orchestrator API",
			"version": p.Version,
		})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiService := apiv1.NewAPIV1Service(p, st, sessions, orchestrator, slog.Default())
	apiService.Register(e)

	return &Server{
		Profile:     p,
		Store:       st,
		echoServer:  e,
		rateLimiter: rateLimiter,
	}, nil
}

// Start runs the server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("Server: starting", "address", address, "mode", s.Profile.Mode)

	s.rateLimiter.StartCleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the HTTP server, allowing in-flight requests a short
// drain window.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("Server: shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		return err
	}
	return nil
}
