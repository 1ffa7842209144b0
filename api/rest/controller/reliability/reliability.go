package reliability

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lithium-ci/lithium/internal/reliability"
)

type Controller struct {
	tracker *reliability.Tracker
}

func New(tracker *reliability.Tracker) *Controller {
	return &Controller{tracker: tracker}
}

// Get returns the rolling-window reliability metrics.
func (ctrl *Controller) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.tracker.CalculateReliability())
}

// Stats returns per-build pass rate statistics over the requested
// number of days (default 7).
func (ctrl *Controller) Stats(c echo.Context) error {
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid days")
		}
		days = parsed
	}

	return c.JSON(http.StatusOK, ctrl.tracker.GetReliabilityStats(days))
}

// Flaky returns the current flaky test classification.
func (ctrl *Controller) Flaky(c echo.Context) error {
	flaky := ctrl.tracker.DetectFlakyTests()
	if flaky == nil {
		flaky = []reliability.FlakyTest{}
	}
	return c.JSON(http.StatusOK, flaky)
}
