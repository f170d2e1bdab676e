package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/marketsense/store"
)

// CreateSessionRequest is the body of POST /api/v1/dialog/sessions.
type CreateSessionRequest struct {
	Title        string         `json:"title"`
	State        map[string]any `json:"state,omitempty"`
	AgentContext map[string]any `json:"agentContext,omitempty"`
}

// AddMessageRequest is the body of POST /api/v1/dialog/sessions/:sessionId/messages.
type AddMessageRequest struct {
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	ReasoningSteps []map[string]any `json:"reasoningSteps,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

func (s *APIV1Service) listSessions(c echo.Context) error {
	sessions, err := s.Sessions.Load()
	if err != nil {
		return sessionStoreError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *APIV1Service) createSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	session, err := s.Sessions.Create(req.Title, req.State, req.AgentContext)
	if err != nil {
		return sessionStoreError(err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *APIV1Service) getSession(c echo.Context) error {
	session, err := s.Sessions.Get(c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Session not found")
		}
		return sessionStoreError(err)
	}
	return c.JSON(http.StatusOK, session)
}

func (s *APIV1Service) addSessionMessage(c echo.Context) error {
	var req AddMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	message := store.NewMessage(req.Role, req.Content)
	message.ReasoningSteps = req.ReasoningSteps
	message.Metadata = req.Metadata

	if err := s.Sessions.AppendMessages(c.Param("sessionId"), message); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Session not found")
		}
		return sessionStoreError(err)
	}
	return c.JSON(http.StatusOK, message)
}

// sessionStoreError maps store failures: lock contention reads as the
// store being busy, decode failures as corruption.
func sessionStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrLockTimeout):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store is busy")
	case errors.Is(err, store.ErrSessionDecode):
		return echo.NewHTTPError(http.StatusInternalServerError, "session store is corrupt")
	default:
		return err
	}
}
