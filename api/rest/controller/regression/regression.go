package regression

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lithium-ci/lithium/internal/regression"
)

type Controller struct {
	detector *regression.Detector
}

func New(detector *regression.Detector) *Controller {
	return &Controller{detector: detector}
}

// Get returns a report over the most recent regression alerts.
func (ctrl *Controller) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.detector.Recent())
}

// Baselines returns the stored performance baselines.
func (ctrl *Controller) Baselines(c echo.Context) error {
	baselines := ctrl.detector.Baselines()
	if baselines == nil {
		baselines = []regression.Baseline{}
	}
	return c.JSON(http.StatusOK, baselines)
}

// Check evaluates a posted measurement and returns the resulting
// regression report.
func (ctrl *Controller) Check(c echo.Context) error {
	var measurement regression.Measurement
	if err := c.Bind(&measurement); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid measurement")
	}
	if measurement.Component == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "component is required")
	}

	alerts := ctrl.detector.DetectRegressions(measurement)
	return c.JSON(http.StatusOK, regression.NewReport(alerts))
}

// baselineRequest is the payload for baseline updates.
type baselineRequest struct {
	Component string                   `json:"component"`
	Results   []regression.Measurement `json:"results"`
}

// UpdateBaseline overwrites a component's baseline from posted results.
func (ctrl *Controller) UpdateBaseline(c echo.Context) error {
	var req baselineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid baseline request")
	}
	if req.Component == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "component is required")
	}

	if err := ctrl.detector.UpdateBaseline(req.Component, req.Results); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
