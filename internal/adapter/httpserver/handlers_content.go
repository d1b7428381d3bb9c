package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/screensync/internal/platform/errors"
)

// Polling endpoints hit by every screen. They share one rate limiter.
func (s *Server) registerContentRoutes() {
	limiter := newRateLimiter(s.config.RateLimitPerSecond, s.config.RateLimitBurst)

	s.echo.GET("/change-events", s.handleChangeEvents, limiter)
	s.echo.GET("/content-status/:screenId", s.handleContentStatus, limiter)
	s.echo.GET("/stream/:screenId", s.handleStream, limiter)
}

func (s *Server) handleChangeEvents(c echo.Context) error {
	var since int64
	if raw := c.QueryParam("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.ValidationError("since must be a unix millisecond timestamp").WithContext("since", raw)
		}
		since = v
	}

	events := s.app.ChangesSince(c.Request().Context(), since)
	if err := c.JSON(http.StatusOK, events); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleContentStatus(c echo.Context) error {
	screenID := c.Param("screenId")

	status, err := s.app.ContentStatus(c.Request().Context(), screenID)
	if err != nil {
		return apperrors.InternalError("failed to compute content status", err).WithContext("screen_id", screenID)
	}

	if err := c.JSON(http.StatusOK, status); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleStream(c echo.Context) error {
	screenID := c.Param("screenId")

	index := 0
	if raw := c.QueryParam("index"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.ValidationError("index must be an integer").WithContext("index", raw)
		}
		index = v
	}

	resp, err := s.app.Stream(c.Request().Context(), screenID, index)
	if err != nil {
		// ErrNoContent becomes a not_found response.
		return apperrors.AsStructuredError(err).WithContext("screen_id", screenID)
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
