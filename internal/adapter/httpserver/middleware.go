package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/screensync/internal/platform/correlation"
)

const correlationHeader = "X-Correlation-ID"

// correlationMiddleware reuses an incoming correlation id or mints one, and
// echoes it back so screens can quote it in bug reports.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationHeader, id)
		return next(c)
	}
}
