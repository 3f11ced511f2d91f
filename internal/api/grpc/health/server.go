package health

import (
	"context"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name of the consumption pipeline.
const ServiceName = "relay_switch.Pipeline"

// Server exposes pipeline health over gRPC.
type Server struct {
	// health holds the per-service serving status.
	health *grpchealth.Server
}

// NewServer creates a health server with the pipeline not serving yet.
func NewServer() *Server {
	h := grpchealth.NewServer()
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		health: h,
	}
}

// Register attaches the health service to a gRPC server.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(registrar, s.health)
}

// SetServing marks the pipeline as consuming.
func (s *Server) SetServing() {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// SetNotServing marks the pipeline as stopped.
func (s *Server) SetNotServing() {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Shutdown sets every service to NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// Status returns the current pipeline status.
func (s *Server) Status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}

	return resp.GetStatus()
}
