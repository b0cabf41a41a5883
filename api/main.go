package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/meridianlabs/dealdesk/analytics"
	"github.com/meridianlabs/dealdesk/api/config"
	"github.com/meridianlabs/dealdesk/api/metrics"
	"github.com/meridianlabs/dealdesk/api/reports"
	"github.com/meridianlabs/dealdesk/api/server"
	"github.com/meridianlabs/dealdesk/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	portFlag := flag.Int("port", 8080, "HTTP server port (or set PORT env var)")
	bindFlag := flag.String("bind", "0.0.0.0", "Bind address")
	verboseFlag := flag.Bool("verbose", false, "Enable debug logging")
	sourcesFlag := flag.String("sources", "", "Path to a sources config overriding the embedded registry (or set DEALDESK_SOURCES_PATH)")
	queryTimeoutFlag := flag.Duration("query-timeout", analytics.DefaultTimeout, "Wall-clock ceiling per report query")
	maxRowsFlag := flag.Int("max-rows", analytics.DefaultMaxLimit, "Hard row-count ceiling per report query")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)
	log.Info("starting dealdesk analytics API", "version", server.Version)
	metrics.BuildInfo.WithLabelValues(server.Version, server.Commit, server.Date).Set(1)

	sourcesPath := *sourcesFlag
	if sourcesPath == "" {
		sourcesPath = os.Getenv("DEALDESK_SOURCES_PATH")
	}

	var registry *analytics.Registry
	var err error
	if sourcesPath != "" {
		registry, err = analytics.LoadRegistryFile(sourcesPath)
		log.Info("loaded sources config", "path", sourcesPath)
	} else {
		registry, err = analytics.DefaultRegistry()
	}
	if err != nil {
		return fmt.Errorf("failed to load source registry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect both stores concurrently; either failing is fatal since the
	// registry routes sources to both.
	g, connectCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return config.LoadPostgres(connectCtx, log) })
	g.Go(func() error { return config.LoadClickHouse(connectCtx, log) })
	if err := g.Wait(); err != nil {
		return err
	}
	defer config.ClosePostgres()
	defer config.CloseClickHouse()

	executor, err := analytics.NewExecutor(analytics.ExecutorConfig{
		Logger:   log,
		Registry: registry,
		Pools:    config.NewPools(),
		MaxLimit: *maxRowsFlag,
		Timeout:  *queryTimeoutFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	reportStore, err := reports.NewStore(reports.StoreConfig{
		Logger: log,
		Pool:   config.PgPool,
	})
	if err != nil {
		return fmt.Errorf("failed to create reports store: %w", err)
	}

	port := *portFlag
	if envPort := os.Getenv("PORT"); envPort != "" && !flagSet("port") {
		fmt.Sscanf(envPort, "%d", &port)
	}

	srv, err := server.New(server.Config{
		Logger:   log,
		Executor: executor,
		Registry: registry,
		Reports:  reportStore,
		Bind:     *bindFlag,
		Port:     port,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("received signal, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	log.Info("dealdesk analytics API stopped")
	return nil
}

func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
