package harness

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/config"
)

// healthTimeout bounds each individual health probe.
const healthTimeout = 5 * time.Second

// HealthResult is the outcome of one service probe.
type HealthResult struct {
	Service string
	URL     string
	Healthy bool
	Status  int
	Err     error
}

// HealthChecker probes service health endpoints before the load phase.
type HealthChecker struct {
	services config.ServicesConfig
	client   *http.Client
	logger   *zap.Logger
}

// NewHealthChecker builds a checker over the configured service URLs.
func NewHealthChecker(services config.ServicesConfig, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		services: services,
		client:   &http.Client{Timeout: healthTimeout},
		logger:   logger,
	}
}

// Check probes each named service once. A connect error or any non-200
// marks the service unhealthy.
func (c *HealthChecker) Check(ctx context.Context, services []string) []HealthResult {
	results := make([]HealthResult, 0, len(services))
	for _, svc := range services {
		results = append(results, c.checkOne(ctx, svc))
	}
	return results
}

// AllHealthy reports whether every result passed.
func AllHealthy(results []HealthResult) bool {
	for _, r := range results {
		if !r.Healthy {
			return false
		}
	}
	return true
}

func (c *HealthChecker) checkOne(ctx context.Context, service string) HealthResult {
	base := c.services.URLFor(service)
	path, ok := config.HealthPaths[service]
	if !ok {
		return HealthResult{Service: service, Err: fmt.Errorf("unknown service %q", service)}
	}
	url := base + path

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResult{Service: service, URL: url, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("health check failed",
			zap.String("service", service), zap.String("url", url), zap.Error(err))
		return HealthResult{Service: service, URL: url, Err: err}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	if !healthy {
		c.logger.Warn("health check unhealthy",
			zap.String("service", service), zap.Int("status", resp.StatusCode))
	}
	return HealthResult{
		Service: service,
		URL:     url,
		Healthy: healthy,
		Status:  resp.StatusCode,
	}
}
