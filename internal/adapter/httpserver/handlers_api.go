package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/screensync/internal/domain"
	apperrors "github.com/pscheid92/screensync/internal/platform/errors"
)

type announceRequest struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// API routes are called by the content management system, not by screens.
func (s *Server) registerAPIRoutes() {
	s.echo.POST("/api/announce", s.handleAnnounce)
	s.echo.GET("/api/clients", s.handleClients)
	s.echo.GET("/api/instances", s.handleInstances)
}

func (s *Server) handleAnnounce(c echo.Context) error {
	var req announceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid announce body")
	}

	kind, err := domain.ParseEventKind(req.Kind)
	if err != nil {
		return apperrors.ValidationError("unknown event kind").WithContext("kind", req.Kind)
	}

	res := s.app.Announce(c.Request().Context(), kind, req.Payload)
	if err := c.JSON(http.StatusAccepted, res); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleClients(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.Clients()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleInstances(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.Instances(c.Request().Context())); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
