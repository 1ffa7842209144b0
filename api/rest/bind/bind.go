package bind

import (
	"github.com/labstack/echo/v4"
	cachectl "github.com/lithium-ci/lithium/api/rest/controller/cache"
	eventctl "github.com/lithium-ci/lithium/api/rest/controller/event"
	historyctl "github.com/lithium-ci/lithium/api/rest/controller/history"
	regressionctl "github.com/lithium-ci/lithium/api/rest/controller/regression"
	reliabilityctl "github.com/lithium-ci/lithium/api/rest/controller/reliability"
	runctl "github.com/lithium-ci/lithium/api/rest/controller/run"
	"github.com/lithium-ci/lithium/internal/cache"
	"github.com/lithium-ci/lithium/internal/event"
	"github.com/lithium-ci/lithium/internal/pipeline"
	"github.com/lithium-ci/lithium/internal/regression"
	"github.com/lithium-ci/lithium/internal/reliability"
	"gorm.io/gorm"
)

// Deps are the collaborators the REST surface exposes. Optional
// members leave their endpoints unbound.
type Deps struct {
	Tracker  *reliability.Tracker
	Detector *regression.Detector
	Cache    *cache.Cache
	Pipeline *pipeline.Pipeline
	Bus      event.Bus
	DB       *gorm.DB
}

func All(g *echo.Group, deps Deps) {
	// reliability
	if deps.Tracker != nil {
		ctrl := reliabilityctl.New(deps.Tracker)
		g.GET("/reliability", ctrl.Get)
		g.GET("/reliability/stats", ctrl.Stats)
		g.GET("/flaky", ctrl.Flaky)
	}

	// regressions
	if deps.Detector != nil {
		ctrl := regressionctl.New(deps.Detector)
		g.GET("/regressions", ctrl.Get)
		g.GET("/regressions/baselines", ctrl.Baselines)
		g.POST("/regressions/baselines", ctrl.UpdateBaseline)
		g.POST("/regressions/check", ctrl.Check)
	}

	// cache
	if deps.Cache != nil {
		ctrl := cachectl.New(deps.Cache)
		g.GET("/cache/stats", ctrl.Stats)
		g.POST("/cache/invalidate", ctrl.Invalidate)
	}

	// runs
	if deps.Pipeline != nil {
		g.POST("/runs", runctl.New(deps.Pipeline).Post)
	}

	// events
	if deps.Bus != nil {
		g.GET("/events", eventctl.New(deps.Bus).Stream)
	}

	// history
	if deps.DB != nil {
		g.GET("/history", historyctl.New(deps.DB).Get)
	}
}
