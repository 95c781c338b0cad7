// Package grpcserver exposes the standard gRPC health service for the
// matching service.
//
// Serving status follows the same probes as the HTTP /health endpoint, so
// orchestrators that speak grpc_health_v1 see a degraded dependency as
// NOT_SERVING.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported alongside the overall "".
const ServiceName = "jobmate.MatchingService"

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// Server wraps a grpc.Server that carries the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	probes []Probe
	log    *zap.Logger
}

// NewServer constructs a Server. Status starts as SERVING and is re-evaluated
// by Watch.
func NewServer(log *zap.Logger, probes ...Probe) *Server {
	s := &Server{
		health: health.NewServer(),
		probes: probes,
		log:    log,
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return s
}

// GRPC returns the underlying server for Serve and GracefulStop.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Watch re-runs the probes every interval until ctx is done, then marks the
// service NOT_SERVING.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh runs every probe once and publishes the combined status.
func (s *Server) Refresh(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for _, p := range s.probes {
		if err := p(probeCtx); err != nil {
			s.log.Warn("health probe failed", zap.Error(err))
			s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return
		}
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// ─── Interceptors ─────────────────────────────────────────────────────────────

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("grpc call",
		zap.String("method", info.FullMethod),
		zap.String("code", status.Code(err).String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, err
}
