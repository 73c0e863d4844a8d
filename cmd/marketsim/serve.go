package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/marketsim/internal/metrics"
	"github.com/GoSim-25-26J-441/marketsim/internal/simd"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var httpAddr, grpcAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation daemon (HTTP and gRPC)",
		Long: `Run the simulation daemon. Settings come from MARKETSIM_* environment
variables (HTTP_ADDR, GRPC_ADDR, LOG_LEVEL, LOG_FORMAT, MAX_CONCURRENT_RUNS,
SOLVE_WORKERS, OUTPUT_DIR, SHUTDOWN_TIMEOUT); flags override the addresses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServiceConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc-addr") {
				cfg.GRPCAddr = grpcAddr
			}
			// the root flags win only when given explicitly
			if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
				logger.SetDefault(logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()))
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", ":9090", "gRPC listen address")
	return cmd
}

func serve(ctx context.Context, cfg *config.ServiceConfig) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	instruments := metrics.NewInstruments()
	notifier := simd.NewNotifier()
	store := simd.NewRunStore()
	executor := simd.NewRunExecutor(store, simd.ExecutorOptions{
		MaxConcurrent: cfg.MaxConcurrentRuns,
		SolveWorkers:  cfg.SolveWorkers,
		OutputDir:     cfg.OutputDir,
		Instruments:   instruments,
		Notifier:      notifier,
		Logger:        logger.Default,
	})

	// TODO: configure TLS and authentication for the gRPC listener before
	// exposing it beyond localhost.
	grpcServer := grpc.NewServer()
	simd.RegisterMarketSimulationServer(grpcServer, simd.NewSimulationGRPCServer(store, executor))

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           simd.NewHTTPServer(store, executor, instruments.Handler()).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			errCh <- err
			stop()
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	// cancelled runs end their record streams, so GracefulStop can return
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Runs still in flight at shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	notifier.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
