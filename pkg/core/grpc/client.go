package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ClientConfig holds the settings for probing a health endpoint
type ClientConfig struct {
	Target  string
	Timeout time.Duration
}

// DefaultClientConfig returns a config with a 5s timeout
func DefaultClientConfig(target string) ClientConfig {
	return ClientConfig{Target: target, Timeout: 5 * time.Second}
}

// Dial opens a plaintext connection; the endpoint only listens on loopback
func Dial(cfg ClientConfig) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(cfg.Target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(logClient()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Target, err)
	}
	return conn, nil
}

// CheckHealth asks a grpc.health.v1 server for the status of service
// ("" for the overall status).
func CheckHealth(ctx context.Context, cfg ClientConfig, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := Dial(cfg)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer conn.Close()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %s: %w", cfg.Target, err)
	}
	return resp.GetStatus(), nil
}
