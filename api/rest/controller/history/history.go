package history

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lithium-ci/lithium/api/rest/service/history"
	"gorm.io/gorm"
)

type Controller struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Controller {
	return &Controller{db: db}
}

// Get returns aggregated test run history.
func (ctrl *Controller) Get(c echo.Context) error {
	svc := history.New(c.Request().Context(), ctrl.db)
	resp, err := svc.Get()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, resp)
}
