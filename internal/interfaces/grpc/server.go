// Package grpc serves the standard gRPC health protocol next to the REST API
// so orchestrators can probe the process without HTTP.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
)

// ServiceName is the health service name reported for the molecule API.
const ServiceName = "molstruct.v1.MoleculeService"

const healthMethodPrefix = "/grpc.health.v1.Health/"

type lifecycle int

const (
	idle lifecycle = iota
	serving
	stopped
)

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.  Health probes are never logged.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReflection registers the reflection service, for grpcurl in development.
func WithReflection() Option {
	return func(s *Server) { s.reflect = true }
}

// WithGracefulTimeout bounds how long Stop waits for open calls.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.grace = d
		}
	}
}

// Server is a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	logger  logging.Logger
	reflect bool
	grace   time.Duration

	lis    net.Listener
	gs     *grpc.Server
	health *health.Server

	mu    sync.Mutex
	state lifecycle
}

// NewServer binds addr and registers the health service with both the
// overall status ("") and ServiceName SERVING.
func NewServer(addr string, opts ...Option) (*Server, error) {
	s := &Server{logger: logging.NewNopLogger(), grace: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	s.lis = lis
	s.gs = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           time.Second,
		}),
		grpc.ChainUnaryInterceptor(s.recoverPanics, s.logCalls),
	)

	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.gs, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.SetServing(true)

	if s.reflect {
		reflection.Register(s.gs)
		s.logger.Debug("grpc reflection enabled")
	}
	return s, nil
}

// Start serves until Stop.  Calling Start after Stop returns nil at once.
func (s *Server) Start() error {
	s.mu.Lock()
	switch s.state {
	case serving:
		s.mu.Unlock()
		return fmt.Errorf("grpc server already started")
	case stopped:
		s.mu.Unlock()
		return nil
	}
	s.state = serving
	s.mu.Unlock()

	s.logger.Info("grpc health server starting", logging.String("address", s.Addr()))
	return s.gs.Serve(s.lis)
}

// SetServing updates the status of ServiceName.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// TrackReadiness calls check every interval and mirrors the outcome into
// ServiceName's status until ctx is done.  Only transitions are logged.
func (s *Server) TrackReadiness(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	ready := true
	for {
		cctx, cancel := context.WithTimeout(ctx, interval)
		err := check(cctx)
		cancel()

		if now := err == nil; now != ready {
			ready = now
			s.SetServing(ready)
			if ready {
				s.logger.Info("readiness restored")
			} else {
				s.logger.Warn("readiness check failed", logging.Err(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// Stop reports NOT_SERVING for every service and drains open calls,
// forcing the stop once the graceful timeout or ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	prev := s.state
	s.state = stopped
	s.mu.Unlock()

	switch prev {
	case idle:
		return s.lis.Close()
	case stopped:
		return nil
	}

	s.logger.Info("grpc health server stopping")
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()
	drained := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.gs.Stop()
	}
	return nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.lis.Addr().String() }

// ─────────────────────────────────────────────────────────────────────────────
// Interceptors
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) recoverPanics(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("grpc panic recovered",
				logging.String("method", info.FullMethod),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())))
			err = status.Error(codes.Internal, "internal server error")
		}
	}()
	return next(ctx, req)
}

func (s *Server) logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
	if isHealthCheck(info.FullMethod) {
		return next(ctx, req)
	}
	start := time.Now()
	resp, err := next(ctx, req)
	s.logger.Info("grpc request",
		logging.String("method", info.FullMethod),
		logging.String("code", status.Code(err).String()),
		logging.Duration("duration", time.Since(start)))
	return resp, err
}

func isHealthCheck(method string) bool {
	return strings.HasPrefix(method, healthMethodPrefix)
}

//Personal.AI order the ending
