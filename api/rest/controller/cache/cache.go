package cache

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lithium-ci/lithium/internal/cache"
)

type Controller struct {
	cache *cache.Cache
}

func New(c *cache.Cache) *Controller {
	return &Controller{cache: c}
}

// Stats returns the cache effectiveness counters.
func (ctrl *Controller) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.cache.Stats())
}

// invalidateRequest is the payload for explicit invalidation.
type invalidateRequest struct {
	Paths []string `json:"paths"`
}

// invalidateResponse reports how many entries were dropped.
type invalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// Invalidate drops every cached entry affected by the given changed
// files, including reverse dependencies.
func (ctrl *Controller) Invalidate(c echo.Context) error {
	var req invalidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invalidation request")
	}
	if len(req.Paths) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "paths is required")
	}

	return c.JSON(http.StatusOK, invalidateResponse{
		Invalidated: ctrl.cache.InvalidateChangedFiles(req.Paths...),
	})
}
