// Package cron fires pipeline runs on a five-field cron schedule.
package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lithium-ci/lithium/pkg/log"
	"github.com/robfig/cron"
)

type Cron struct {
	schedule cron.Schedule
	location *time.Location
}

// New parses a standard five-field cron expression with an optional
// IANA timezone.
func New(expr, timezone string) (*Cron, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}

	parser := cron.NewParser(
		cron.Minute |
			cron.Hour |
			cron.Dom |
			cron.Month |
			cron.Dow,
	)

	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}

	var loc *time.Location
	if strings.TrimSpace(timezone) != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}

	return &Cron{schedule: sched, location: loc}, nil
}

// Next returns the first tick strictly after the given time.
func (c *Cron) Next(from time.Time) time.Time {
	if c.location != nil {
		from = from.In(c.location)
	}
	return c.schedule.Next(from)
}

// Listen fires on every tick until the context is done. Fires run
// sequentially; a tick that arrives while a fire is still executing
// waits for it.
func (c *Cron) Listen(ctx context.Context, fire func(context.Context)) {
	log.Info("schedule trigger listening")

	for {
		select {
		case <-time.After(time.Until(c.Next(time.Now()))):
			log.Info("schedule trigger firing")
			fire(ctx)
		case <-ctx.Done():
			return
		}
	}
}
