// Package grpc serves the emotion API over gRPC with the standard health
// service.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const stopTimeout = 5 * time.Second

// Server is the gRPC listener.
type Server struct {
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewServer creates a gRPC server exposing emotion and health services.
// Both report NOT_SERVING until SetServing is called.
func NewServer(emotion EmotionServiceServer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		health: health.NewServer(),
		log:    logger.With("component", "server.grpc"),
	}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))

	healthgrpc.RegisterHealthServer(s.server, s.health)
	RegisterEmotionServiceServer(s.server, emotion)
	s.SetServing(false)
	return s
}

// SetServing updates the health status of the server and the emotion service.
func (s *Server) SetServing(serving bool) {
	st := healthgrpc.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthgrpc.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("gRPC server listening", "addr", l.Addr().String())
	if err := s.server.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight calls, forcing a stop after a timeout.
func (s *Server) Stop() {
	s.SetServing(false)

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(stopTimeout):
		s.log.Warn("Graceful stop timed out, forcing stop")
		s.server.Stop()
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("gRPC call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}
