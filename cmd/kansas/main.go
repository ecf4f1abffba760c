package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/alexmv/kansas/internal/config"
	"github.com/alexmv/kansas/internal/forwarder"
	"github.com/alexmv/kansas/internal/health"
	"github.com/alexmv/kansas/internal/logging"
	"github.com/alexmv/kansas/internal/metrics"
	"github.com/alexmv/kansas/internal/routing"
	"github.com/alexmv/kansas/internal/server"
	"github.com/alexmv/kansas/internal/service"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to configuration file (required)")
	validateOnly := pflag.Bool("validate", false, "validate configuration and exit")
	showVersion := pflag.BoolP("version", "v", false, "show version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("kansas %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -c/--config is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("kansas starting", map[string]interface{}{
		"version":   version,
		"listen":    cfg.ListenAddress,
		"addresses": cfg.Addresses,
	})

	snapshot := health.NewSnapshot(runtimeConfigFrom(cfg))
	routeMap := routing.NewMap()
	resolver := routing.NewResolver(routeMap, cfg.MaxPeekBytes)
	fwd := forwarder.New(logger)
	met := metrics.New(prometheus.DefaultRegisterer)

	svc := service.New(snapshot, resolver, routeMap, fwd, met, logger)

	monitor := health.NewMonitor(snapshot, logger)
	ctx, cancelMonitor := context.WithCancel(context.Background())
	go monitor.Run(ctx)

	srv := server.New(server.Config{Addr: cfg.ListenAddress, Handler: svc})
	errCh, err := srv.Start()
	if err != nil {
		logger.Error("failed to start listener", map[string]interface{}{"error": err.Error()})
		cancelMonitor()
		os.Exit(1)
	}
	logger.Info("kansas listening", map[string]interface{}{"addr": srv.Addr()})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("listener exited unexpectedly", map[string]interface{}{"error": err.Error()})
				cancelMonitor()
				os.Exit(1)
			}
			return

		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("received SIGHUP, reloading configuration", nil)
				newCfg, err := config.Load(*configPath)
				if err != nil {
					logger.Error("configuration reload failed, keeping current config", map[string]interface{}{"error": err.Error()})
					continue
				}
				snapshot.Store(runtimeConfigFrom(newCfg))
				logger.Info("configuration reloaded", map[string]interface{}{"addresses": newCfg.Addresses})

			case syscall.SIGINT, syscall.SIGTERM:
				logger.Info("shutting down", nil)
				cancelMonitor()
				monitor.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := srv.Stop(shutdownCtx); err != nil {
					logger.Error("error during shutdown", map[string]interface{}{"error": err.Error()})
				}
				cancel()

				logger.Info("shutdown complete", nil)
				return
			}
		}
	}
}

// runtimeConfigFrom builds a fresh health.RuntimeConfig from a validated
// Config, giving every backend address a new Healthy cell. Existing health
// state is intentionally not carried across a reload: the next probe round
// re-establishes it within one health_config.interval.
func runtimeConfigFrom(cfg *config.Config) *health.RuntimeConfig {
	client := &http.Client{
		Transport: &http.Transport{
			IdleConnTimeout:     cfg.PoolIdleTimeout,
			MaxIdleConnsPerHost: cfg.PoolMaxIdlePerHost,
		},
	}
	pool := health.NewBackendPool(cfg.Addresses, health.HealthConfig{
		Timeout:  cfg.HealthConfig.Timeout,
		Interval: cfg.HealthConfig.Interval,
		Path:     cfg.HealthConfig.Path,
	}, client)
	return &health.RuntimeConfig{ListenAddress: cfg.ListenAddress, Backend: pool}
}
