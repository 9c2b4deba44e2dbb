// Command loranexus runs the mesh network watcher daemon: radio connector,
// ingestion pipeline, topology engine and staleness sweeper, the two active
// probe schedulers, the optional federated uploader, and the read-only HTTP
// query surface. Wiring shape grounded on main.go's flag/config/store/
// http.Server/signal-shutdown sequence.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/loranexus/loranexus/internal/config"
	"github.com/loranexus/loranexus/internal/httpapi"
	"github.com/loranexus/loranexus/internal/ingest"
	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/schedule"
	"github.com/loranexus/loranexus/internal/store"
	"github.com/loranexus/loranexus/internal/topology"
	"github.com/loranexus/loranexus/internal/uploader"
)

func main() {
	configFile := flag.String("config", "", "path to config file (default: search ./config.yaml, data/config.yaml, etc.)")
	writeExample := flag.String("write-example-config", "", "write a commented example config to this path and exit")
	flag.Parse()

	if *writeExample != "" {
		if err := config.SaveExampleConfig(*writeExample); err != nil {
			log.Fatalf("failed to write example config: %v", err)
		}
		log.Printf("wrote example config to %s", *writeExample)
		return
	}

	cfg := config.Load(*configFile)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init zap: %v", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("store open error", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		logger.Fatal("store migrate error", zap.Error(err))
	}

	driver := radio.NewConnector(cfg.RadioHost, cfg.RadioPort, cfg.RadioRetryMin, cfg.RadioRetryMax, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := driver.Start(ctx); err != nil {
		logger.Fatal("radio connector start error", zap.Error(err))
	}

	topoEngine := topology.New(st)
	sweeper := topology.NewSweeper(st, cfg.TopologySweepInterval, cfg.TopologyStaleTimeout, logger)
	sweeper.Start()
	defer sweeper.Stop()

	ingestor := ingest.New(st, topoEngine, driver, ingest.Config{
		MaxPacketsPerNode: cfg.MaxPacketsPerNode,
	})
	go ingestor.Run(ctx)

	tracerouteSched := schedule.NewTracerouteScheduler(st, driver, schedule.TracerouteConfig{
		Interval:           cfg.TracerouteIntervalMin,
		ActiveThresholdMin: cfg.TracerouteActiveThreshold,
		TracerouteAgeHours: cfg.TracerouteAgeHours,
		MaxPerCycle:        cfg.TracerouteMaxPerCycle,
		DelaySeconds:       cfg.TracerouteDelaySeconds,
		HopLimit:           cfg.TracerouteHopLimit,
		AttemptTimeout:     cfg.AttemptTimeoutSeconds,
	})
	tracerouteSched.Start()
	defer tracerouteSched.Stop()

	telemetrySched := schedule.NewTelemetryScheduler(st, driver, schedule.TelemetryConfig{
		Interval:             cfg.TelemetryIntervalMin,
		ActiveThresholdMin:   cfg.TelemetryActiveThreshold,
		RequestAgeHours:      cfg.TelemetryRequestAgeHours,
		MaxPerCycle:          cfg.TelemetryMaxPerCycle,
		DelaySeconds:         cfg.TelemetryDelaySeconds,
		SkipRecentTraceroute: cfg.SkipNodesWithRecentTraceroute,
		TracerouteAgeHours:   cfg.SkipTracerouteAgeHours,
		AttemptTimeout:       cfg.AttemptTimeoutSeconds,
	})
	telemetrySched.Start()
	defer telemetrySched.Stop()

	up := uploader.New(st, logger, uploader.Config{
		URL:         cfg.UploadURL,
		CollectorID: cfg.CollectorID,
		Interval:    cfg.UploadInterval,
		Lookback:    cfg.UploadLookback,
	})
	if cfg.UploadEnabled {
		up.Start()
		defer up.Stop()
	}

	handler := httpapi.New(st, driver, logger, cfg.JWTSecret, cfg.Title, cfg.Subtitle, 30)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("loranexus starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, shutting down...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Warn("graceful http shutdown failed", zap.Error(err))
		if err := srv.Close(); err != nil {
			logger.Warn("http server close error", zap.Error(err))
		}
	}
	logger.Info("loranexus stopped cleanly")
}
