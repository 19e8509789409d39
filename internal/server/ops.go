package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// OpsConfig configures the operational gRPC endpoint: the standard health
// service plus reflection, for orchestrator probes and grpcurl.
type OpsConfig struct {
	Addr string // e.g. ":8080"

	// Check is polled every CheckInterval; a non-nil error flips the health
	// status to NOT_SERVING until it recovers. Nil means always serving.
	Check         func(ctx context.Context) error
	CheckInterval time.Duration
}

// ServeOps runs the ops endpoint until ctx is cancelled, then drains it.
func ServeOps(ctx context.Context, cfg OpsConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 15 * time.Second
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	if cfg.Check != nil {
		go func() {
			ticker := time.NewTicker(cfg.CheckInterval)
			defer ticker.Stop()
			serving := true
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					err := cfg.Check(ctx)
					if err != nil && serving {
						logger.Warn("ops.health.degraded", "error", err)
						hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
						serving = false
					} else if err == nil && !serving {
						logger.Info("ops.health.recovered")
						hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
						serving = true
					}
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	logger.Info("ops.serving", "addr", cfg.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		grpcServer.GracefulStop()
		return nil
	}
}
