// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     grpc
// Description: Local gRPC endpoint that carries the grpc.health.v1 service
// Author:      Mike Stoffels
// Created:     2025-12-11
// License:     MIT
// ============================================================================

package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/inboxpilot/voicepilot/pkg/core/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

var serverLogger = logging.New("grpc-server")

// ServerConfig holds the endpoint settings
type ServerConfig struct {
	Address string
	// Reflection lets grpcurl list the services without a proto file
	Reflection bool
	Keepalive  time.Duration
}

// DefaultServerConfig listens on loopback only
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:   "127.0.0.1:9765",
		Keepalive: 30 * time.Second,
	}
}

// Server is a small gRPC server bound to one address
type Server struct {
	server *grpc.Server
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates the server with panic recovery and call logging
func NewServer(cfg ServerConfig) *Server {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: cfg.Keepalive}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(recoverUnary(), logUnary()),
		grpc.ChainStreamInterceptor(recoverStream()),
	)
	if cfg.Reflection {
		reflection.Register(server)
	}
	return &Server{server: server, config: cfg}
}

// GRPCServer returns the underlying server for service registration
func (s *Server) GRPCServer() *grpc.Server {
	return s.server
}

// Start binds the address and serves in the background. Binding errors are
// returned; errors after that are logged.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(lis); err != nil {
			serverLogger.Error("gRPC server stopped", "address", lis.Addr().String(), "error", err)
		}
	}()
	return nil
}

// Stop drains open calls, forcing the server down once ctx expires
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
}

// Address returns the bound address, which differs from the configured one
// when port 0 was requested
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}
