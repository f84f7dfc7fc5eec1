package health

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/goose-osm/goose/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the preset store is down; no search can run.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	presets   Pinger
	upstreams map[string]UpstreamChecker
}

// New creates a Service. upstreams maps check names to services; nil
// entries are skipped.
func New(presets Pinger, upstreams map[string]UpstreamChecker) *Service {
	return &Service{presets: presets, upstreams: upstreams}
}

// Check runs all checks concurrently. A failing upstream degrades the
// service; a failing preset store makes it unhealthy.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	log := logger.FromContext(ctx)

	if err := s.presets.Ping(ctx); err != nil {
		log.Warn("health check failed", zap.String("check", "presets"), zap.Error(err))
		checks["presets"] = CheckError
	} else {
		checks["presets"] = CheckOK
	}

	names := make([]string, 0, len(s.upstreams))
	for name, c := range s.upstreams {
		if c != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.upstreams[name].Status(ctx); err != nil {
				log.Warn("health check failed", zap.String("check", name), zap.Error(err))
				results[i] = CheckError
				return
			}
			results[i] = CheckOK
		}()
	}
	wg.Wait()
	for i, name := range names {
		checks[name] = results[i]
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["presets"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
