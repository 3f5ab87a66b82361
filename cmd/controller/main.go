package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/codec"
	"github.com/danielpatrickdp/siteplan/internal/config"
	"github.com/danielpatrickdp/siteplan/internal/env"
	"github.com/danielpatrickdp/siteplan/internal/logging"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region main
func main() {
	flags := pflag.NewFlagSet("controller", pflag.ExitOnError)
	configPath := flags.String("config", envOr("SITEPLAN_CONFIG", ""), "service config file (yaml)")
	flags.String("listen-addr", "", "gRPC listen address")
	flags.String("metrics-addr", "", "Prometheus /metrics address; empty disables")
	flags.String("db-path", "", "SQLite file to record episodes into; empty disables")
	flags.String("catalog-path", "", "catalog YAML/JSON; empty uses the embedded sample")
	flags.String("log-level", "", "debug | info | warn | error")
	flags.Bool("trace", false, "export spans to stdout")
	flags.Int("max-sessions", 0, "maximum open environments")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("controller stopped", zap.Error(err))
	}
}

// #endregion main

// #region run
func run(cfg config.ServiceConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, catalogYAML, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	if cfg.Trace {
		shutdown, err := installStdoutTracer()
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	srv := codec.NewServer(cat, cfg.ServerConfig(), logger, env.WithRewards(cfg.Rewards()))

	if cfg.DBPath != "" {
		store, err := state.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		srv.SetRecorderFactory(func(configYAML string) env.Recorder {
			if configYAML == "" {
				return logging.NewRecorder(store, catalogYAML, "remote")
			}
			return logging.NewRecorder(store, []byte(configYAML), "remote")
		})
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	codec.RegisterEnvironmentServer(gs, srv)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("environment service listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("catalog_hash", cat.Hash()),
			zap.Int("action_space", cat.ActionSpaceSize()),
			zap.Int("observation_size", cat.ObservationSize()))
		return gs.Serve(lis)
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", zap.Int("open_sessions", srv.Sessions()))
		gs.GracefulStop()
		srv.Shutdown()
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsSrv.Shutdown(sctx)
		}
		return nil
	})

	return g.Wait()
}

// #endregion run

// #region helpers
func loadCatalog(path string) (*catalog.Catalog, []byte, error) {
	if path == "" {
		return catalog.Sample(), catalog.SampleYAML(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := catalog.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, data, nil
}

func installStdoutTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
