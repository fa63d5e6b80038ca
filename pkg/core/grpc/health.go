package grpc

import (
	"context"
	"time"

	"github.com/inboxpilot/voicepilot/pkg/core/health"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService publishes a health.Registry through grpc.health.v1. The
// overall status is served under the empty service name and under each
// name passed to NewHealthService.
type HealthService struct {
	server   *grpchealth.Server
	registry *health.Registry
	interval time.Duration
	services []string
}

// NewHealthService creates the bridge. Call Register before serving.
func NewHealthService(registry *health.Registry, interval time.Duration, services ...string) *HealthService {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthService{
		server:   grpchealth.NewServer(),
		registry: registry,
		interval: interval,
		services: append([]string{""}, services...),
	}
}

// Register attaches the health service to s
func (h *HealthService) Register(s *Server) {
	healthpb.RegisterHealthServer(s.GRPCServer(), h.server)
}

// Refresh runs the registry once and updates the serving status
func (h *HealthService) Refresh(ctx context.Context) *health.Report {
	report := h.registry.Check(ctx)
	status := ServingStatus(report.Status)
	for _, name := range h.services {
		h.server.SetServingStatus(name, status)
	}
	if report.Status != health.StatusHealthy {
		serverLogger.Warn("health degraded", "status", report.Status, "checks", len(report.Checks))
	}
	return report
}

// Run refreshes at the configured interval until ctx is done, then marks
// every service NOT_SERVING.
func (h *HealthService) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, h.interval)
			h.Refresh(checkCtx)
			cancel()
		}
	}
}

// ServingStatus maps a registry status to the grpc.health.v1 enum.
// Degraded still serves.
func ServingStatus(s health.Status) healthpb.HealthCheckResponse_ServingStatus {
	switch s {
	case health.StatusHealthy, health.StatusDegraded:
		return healthpb.HealthCheckResponse_SERVING
	case health.StatusUnhealthy:
		return healthpb.HealthCheckResponse_NOT_SERVING
	default:
		return healthpb.HealthCheckResponse_UNKNOWN
	}
}
