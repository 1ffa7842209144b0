package api

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/lithium-ci/lithium/api/rest/bind"
	"github.com/lithium-ci/lithium/pkg/env"
)

var server *echo.Echo

// Start launches Lithium's API.
func Start(deps bind.Deps) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// health
	e.GET("/health", Health)

	// metrics
	prometheus.NewPrometheus("lithium", nil).Use(e)

	// REST
	bind.All(e.Group("/v1"), deps)

	server = e

	return e.Start(fmt.Sprintf(":%v", env.Variables().Port))
}

// Shutdown drains in-flight requests and stops the API.
func Shutdown() error {
	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
