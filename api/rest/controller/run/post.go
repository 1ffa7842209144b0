package run

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lithium-ci/lithium/internal/pipeline"
)

type Controller struct {
	pipeline *pipeline.Pipeline
}

func New(p *pipeline.Pipeline) *Controller {
	return &Controller{pipeline: p}
}

// Post executes one pipeline run and returns its summary. Test
// failures surface in the summary rather than as an HTTP error.
func (ctrl *Controller) Post(c echo.Context) error {
	summary, err := ctrl.pipeline.Run(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}
