package health

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service reported alongside the overall
// ("") status.
const ServiceName = "growbox"

// Update publishes the checker's readiness on srv.
func Update(srv *grpchealth.Server, c Checker) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if c.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	srv.SetServingStatus("", status)
	srv.SetServingStatus(ServiceName, status)
}

// ServeGRPC serves the gRPC health protocol on addr, refreshing the status
// every interval, until ctx is cancelled.
func ServeGRPC(ctx context.Context, addr string, c Checker, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", addr, err)
	}

	hs := grpchealth.NewServer()
	Update(hs, c)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				Update(hs, c)
			}
		}
	}()

	log.Printf("health: gRPC health on %s", addr)
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("health: serve: %w", err)
	}
	return nil
}
