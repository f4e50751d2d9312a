package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/BrandonDHaskell/gatepass/internal/config"
	"github.com/BrandonDHaskell/gatepass/internal/events"
	"github.com/BrandonDHaskell/gatepass/internal/gatepass/service"
	"github.com/BrandonDHaskell/gatepass/internal/grpcapi"
	"github.com/BrandonDHaskell/gatepass/internal/httpapi"
	"github.com/BrandonDHaskell/gatepass/internal/jobs"
	"github.com/BrandonDHaskell/gatepass/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC admission server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closeLog, err := setup("")
			if err != nil {
				return err
			}
			defer closeLog()

			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

func asynqOptions(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

func serve(parent context.Context, cfg config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Side effects: decision events to gate displays, ticket print jobs.
	var sinks []events.Sink
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(redisOptions(cfg.Redis))
		defer rdb.Close()
		jobClient := asynq.NewClient(asynqOptions(cfg.Redis))
		defer jobClient.Close()

		sinks = append(sinks,
			events.NewRedisPublisher(rdb, cfg.Events.Channel),
			jobs.NewPrintEnqueuer(jobClient),
		)
		logger.Info("event sinks enabled", "redis", cfg.Redis.Addr, "channel", cfg.Events.Channel)
	} else {
		logger.Info("redis.addr not set; events and print jobs disabled")
	}
	dispatcher := events.NewDispatcher(events.DispatcherConfig{Buffer: cfg.Events.Buffer}, logger, m, sinks...)
	defer dispatcher.Close()

	gates := service.NewGateRegistry(st.gates)
	deps := service.Dependencies{
		Tokens: st.tokens,
		Scans:  st.scans,
		Gates:  gates,
		Settings: service.Settings{
			Issuer:               cfg.Gate.Issuer,
			DefaultExpiryMinutes: cfg.Gate.DefaultExpiryMinutes,
			DefaultMaxScans:      cfg.Gate.DefaultMaxScans,
		},
		Logger:  logger,
		Metrics: m,
		Events:  dispatcher,
	}
	tokenSvc := service.NewTokenService(deps)
	verifySvc := service.NewVerifyService(deps)

	refresher := service.NewTokenGaugeRefresher(st.tokens, m, cfg.Metrics.RefreshInterval, logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        logger,
		Addr:          cfg.HTTP.Addr,
		Tokens:        tokenSvc,
		Verifier:      verifySvc,
		Gates:         gates,
		QRPreviewSize: cfg.HTTP.QRPreviewSize,
		Health:        st.health,
		Metrics:       m,
		Gatherer:      reg,
	})

	var grpcSrv *grpc.Server
	var grpcLis net.Listener
	if cfg.GRPC.Addr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen %s: %w", cfg.GRPC.Addr, err)
		}
		var hs *health.Server
		grpcSrv, hs = grpcapi.NewServer(grpcapi.Dependencies{
			Logger:   logger,
			Tokens:   tokenSvc,
			Verifier: verifySvc,
		})
		defer hs.Shutdown()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTP.Addr, "issuer", cfg.Gate.Issuer, "store", cfg.Store.Driver)
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			logger.Info("grpc listening", "addr", cfg.GRPC.Addr)
			if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
