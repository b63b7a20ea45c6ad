package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"gambler/settlement/infrastructure/observability"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthService       = "settlement.SettlementEngine"
	healthCheckInterval = 10 * time.Second
)

// startHealthServer serves the standard gRPC health protocol on port and keeps
// the serving status in line with check until ctx is done
func startHealthServer(ctx context.Context, port int, check observability.HealthFunc) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on gRPC port %d: %w", port, err)
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	update := func() {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err := check(checkCtx); err != nil {
			log.WithError(err).Warn("Health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		healthServer.SetServingStatus("", status)
		healthServer.SetServingStatus(healthService, status)
	}
	update()

	go func() {
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				healthServer.Shutdown()
				return
			case <-ticker.C:
				update()
			}
		}
	}()

	go func() {
		if err := server.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC health server stopped")
		}
	}()

	log.WithField("port", port).Info("gRPC health server listening")
	return server, nil
}
