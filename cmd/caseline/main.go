package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/caseline/caseline/internal/apiserver"
	"github.com/caseline/caseline/internal/apiserver/database"
	"github.com/caseline/caseline/internal/backend"
	"github.com/caseline/caseline/internal/common/config"
	"github.com/caseline/caseline/internal/coordinator"
	"github.com/caseline/caseline/internal/coordinator/affinity"
	"github.com/caseline/caseline/internal/realtime"
	"github.com/caseline/caseline/pkg/helper"
	"github.com/caseline/caseline/pkg/logger"
	"github.com/caseline/caseline/pkg/metrics"
	"github.com/caseline/caseline/pkg/version"

	"go.uber.org/zap"
)

var (
	configPath  = flag.String("conf", "caseline.yaml", "path to configuration file")
	pidFile     = flag.String("pid", "", "path to PID file; empty disables it")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func writePIDFile(path string) (func(), error) {
	pidPath := helper.GetPIDPath(path)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, err
	}
	return func() { _ = os.Remove(pidPath) }, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("caseline %s\n", version.Get())
		return
	}

	cfg, cfgPath, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting caseline",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	if *pidFile != "" {
		removePID, err := writePIDFile(*pidFile)
		if err != nil {
			log.Fatal("failed to write PID file", zap.Error(err))
		}
		defer removePID()
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := backend.NewRegistryFromConfig(ctx, log, cfg.Backends)
	if err != nil {
		log.Fatal("failed to initialize backends", zap.Error(err))
	}

	affinityStore, err := affinity.NewStore(log, &cfg.Affinity)
	if err != nil {
		log.Fatal("failed to initialize affinity store", zap.Error(err))
	}
	defer func() { _ = affinityStore.Close() }()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	stats := backend.NewStatsTracker()
	coord := coordinator.New(log, backends, stats, affinityStore, m, cfg.Fallback)

	registry := realtime.NewRegistry(log)
	broadcaster := realtime.NewBroadcaster(log, registry, m)
	registry.SetEventSink(broadcaster)

	sweeper := realtime.NewSweeper(log, registry, cfg.Realtime)
	go sweeper.Run(ctx)

	srv := apiserver.NewServer(log, cfg, apiserver.Deps{
		Registry:    registry,
		Broadcaster: broadcaster,
		Backends:    backends,
		Stats:       stats,
		Coordinator: coord,
		DB:          db,
		Metrics:     m,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", zap.Error(err))
	}
	log.Info("caseline stopped")
}
