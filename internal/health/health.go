// Package health schedules a periodic sweep of the provider registry's
// health checks, purely for observability — it never mutates the registry
// or cache.
package health

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/telemetry"
)

// Sweeper runs registry.HealthCheck on a cron schedule and logs failures.
type Sweeper struct {
	cron *cron.Cron
}

// NewSweeper builds a Sweeper that calls registry.HealthCheck on spec
// (a standard cron/@every expression) and logs any provider that reports
// unhealthy. It does not start the schedule; call Start.
func NewSweeper(spec string, registry *provider.Registry, logger telemetry.Logger) (*Sweeper, error) {
	logger = telemetry.Coalesce(logger)
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		failures := registry.HealthCheck(context.Background())
		if len(failures) == 0 {
			logger.Debug("provider health sweep: all healthy", nil)
			return
		}
		// SortedNames gives deterministic log ordering instead of Go's
		// randomized map iteration.
		for _, name := range registry.SortedNames() {
			if err, unhealthy := failures[name]; unhealthy {
				logger.Warn("provider unhealthy", telemetry.Fields{"provider": name, "error": err.Error()})
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return &Sweeper{cron: c}, nil
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() { <-s.cron.Stop().Done() }
