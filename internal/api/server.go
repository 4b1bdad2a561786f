package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"reservo/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// EngineService is the health service name reported for the reconciliation engine.
const EngineService = "reservo.engine"

// HealthServer exposes grpc.health.v1 for the engine. The overall status and
// EngineService start NOT_SERVING until SetServing is called.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewHealthServer(cfg config.APIGRPCConfig, logger *zerolog.Logger) (*HealthServer, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newHealthServer(lis, cfg.Reflection, logger), nil
}

func newHealthServer(lis net.Listener, withReflection bool, logger *zerolog.Logger) *HealthServer {
	var serverLogger zerolog.Logger
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	} else {
		serverLogger = zerolog.Nop()
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(ChainUnaryInterceptors(
		LoggingUnaryInterceptor(&serverLogger),
	)))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(EngineService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	if withReflection {
		reflection.Register(grpcServer)
	}

	return &HealthServer{
		server:   grpcServer,
		health:   hs,
		listener: lis,
		log:      serverLogger,
	}
}

func (s *HealthServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing flips the engine status.
func (s *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(EngineService, st)
	s.log.Info().Str("status", st.String()).Msg("Health status changed")
}

func (s *HealthServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC health listening")
	return s.server.Serve(s.listener)
}

// Shutdown reports NOT_SERVING to watchers and stops the server, forcing it
// after ctx expires.
func (s *HealthServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	case <-time.After(10 * time.Second):
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
