package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/config"
	"jobmate/matching-service/internal/grpcserver"
	"jobmate/matching-service/internal/httpapi"
	"jobmate/matching-service/internal/scheduler"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, the gRPC health service and the batch scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.serve(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "HTTP port (MATCHING_PORT)")
	cmd.Flags().String("grpc-port", "", "gRPC health port (GRPC_PORT)")
	o.bind(config.KeyPort, cmd, "port")
	o.bind(config.KeyGRPCPort, cmd, "grpc-port")
	return cmd
}

func (o *rootOptions) serve(parent context.Context) error {
	cfg, log, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	// ── Scheduler ───────────────────────────────────────────────────────────
	sched := scheduler.New(a.svc, cfg.RecomputeInterval, log)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	// ── HTTP server ─────────────────────────────────────────────────────────
	checks := a.healthChecks()
	mux := http.NewServeMux()
	httpapi.NewHandler(a.svc, log, checks...).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── gRPC health ─────────────────────────────────────────────────────────
	probes := make([]grpcserver.Probe, 0, len(checks))
	for _, c := range checks {
		probes = append(probes, grpcserver.Probe(c.Check))
	}
	gs := grpcserver.NewServer(log, probes...)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go gs.Watch(ctx, 15*time.Second)

	errc := make(chan error, 2)
	go func() {
		log.Info("listening", zap.String("version", version), zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("grpc health listening", zap.String("port", cfg.GRPCPort))
		if err := gs.GRPC().Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		log.Error("server failed", zap.Error(runErr))
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	gs.GRPC().GracefulStop()
	log.Info("stopped")
	return runErr
}
