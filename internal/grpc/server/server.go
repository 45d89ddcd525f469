package server

import (
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"resumetex/internal/background"
	"resumetex/internal/config"
	"resumetex/internal/grpc/interceptors"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"
)

// HealthChecker is any dependency that can report readiness.
type HealthChecker interface {
	IsHealthy() bool
}

type Server struct {
	cfg         *config.Config
	taskManager background.TaskManager
	llm         HealthChecker
	metrics     *interceptors.MetricsCollector
	logger      types.Logger
	started     time.Time

	grpcServer *grpc.Server
	health     *health.Server
}

// NewServer builds the gRPC server. metrics may be nil.
func NewServer(cfg *config.Config, taskManager background.TaskManager, llm HealthChecker, metrics *interceptors.MetricsCollector) *Server {
	if metrics == nil {
		metrics = interceptors.GetMetricsCollector()
	}
	s := &Server{
		cfg:         cfg,
		taskManager: taskManager,
		llm:         llm,
		metrics:     metrics,
		logger:      logging.GetGlobalLogger(),
		started:     time.Now(),
		health:      health.NewServer(),
	}

	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(32*1024*1024), // 32MB
		grpc.MaxSendMsgSize(32*1024*1024), // 32MB
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryInterceptor(),
			interceptors.LoggingInterceptor(),
			interceptors.MetricsInterceptor(metrics),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecoveryInterceptor(),
			interceptors.StreamLoggingInterceptor(),
			interceptors.StreamMetricsInterceptor(metrics),
		),
	)

	RegisterPipelineServiceServer(s.grpcServer, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	// Enable reflection for debugging
	reflection.Register(s.grpcServer)

	s.health.SetServingStatus(PipelineServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Start serves on lis until Stop is called.
func (s *Server) Start(lis net.Listener) error {
	s.logger.Info("Starting gRPC server", map[string]interface{}{
		"address": lis.Addr().String(),
	})
	return s.grpcServer.Serve(lis)
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.logger.Info("Shutting down gRPC server...")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func (s *Server) Metrics() *interceptors.MetricsCollector {
	return s.metrics
}
