package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewHealthGRPCServer creates a gRPC server exposing only the standard health service.
// The returned health server is used to flip the serving status.
func NewHealthGRPCServer(enableReflection bool) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	if enableReflection {
		reflection.Register(grpcServer)
	}
	return grpcServer, healthSrv
}
