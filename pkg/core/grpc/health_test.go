package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/inboxpilot/voicepilot/pkg/core/health"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestServingStatus(t *testing.T) {
	tests := []struct {
		in   health.Status
		want healthpb.HealthCheckResponse_ServingStatus
	}{
		{health.StatusHealthy, healthpb.HealthCheckResponse_SERVING},
		{health.StatusDegraded, healthpb.HealthCheckResponse_SERVING},
		{health.StatusUnhealthy, healthpb.HealthCheckResponse_NOT_SERVING},
		{health.StatusUnknown, healthpb.HealthCheckResponse_UNKNOWN},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			if got := ServingStatus(tt.in); got != tt.want {
				t.Errorf("ServingStatus(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHealthService_EndToEnd(t *testing.T) {
	registry := health.NewRegistry("voicepilot", "test")
	healthy := true
	registry.RegisterFunc("controller", func(ctx context.Context) health.CheckResult {
		if healthy {
			return health.CheckResult{Status: health.StatusHealthy}
		}
		return health.CheckResult{Status: health.StatusUnhealthy, Message: "stuck in processing"}
	})

	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	srv := NewServer(cfg)

	hs := NewHealthService(registry, 0, "voicepilot.Controller")
	hs.Register(srv)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop(context.Background())

	hs.Refresh(context.Background())

	status, err := CheckHealth(context.Background(), DefaultClientConfig(srv.Address()), "voicepilot.Controller")
	if err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", status)
	}

	healthy = false
	hs.Refresh(context.Background())

	status, err = CheckHealth(context.Background(), DefaultClientConfig(srv.Address()), "")
	if err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}
	if status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", status)
	}
}

func TestRecoverUnary(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, err := recoverUnary()(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}

func TestServer_AddressBeforeStart(t *testing.T) {
	srv := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	if got := srv.Address(); got != "127.0.0.1:0" {
		t.Errorf("Address() = %v, want configured address", got)
	}
}

func TestCheckHealth_Unreachable(t *testing.T) {
	cfg := DefaultClientConfig("127.0.0.1:1")
	cfg.Timeout = 200 * time.Millisecond
	st, err := CheckHealth(context.Background(), cfg, "")
	if err == nil {
		t.Fatal("CheckHealth() expected error for closed port")
	}
	if st != healthpb.HealthCheckResponse_UNKNOWN {
		t.Errorf("status = %v, want UNKNOWN", st)
	}
}
