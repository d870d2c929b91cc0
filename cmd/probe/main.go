// Package main is the Probe process entry point: it periodically inspects
// one host, classifies and auto-fixes what it can, and ships the rest
// upstream to its parent Monitor (spec.md §4.2).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wayfind/Cortex/api/probeapi"
	"github.com/wayfind/Cortex/domain/report"
	"github.com/wayfind/Cortex/platform/config"
	"github.com/wayfind/Cortex/platform/logging"
	"github.com/wayfind/Cortex/platform/middleware"
	"github.com/wayfind/Cortex/probe/autofix"
	"github.com/wayfind/Cortex/probe/classifier"
	"github.com/wayfind/Cortex/probe/executor"
	"github.com/wayfind/Cortex/probe/scheduler"
	"github.com/wayfind/Cortex/probe/sysmetrics"
	"github.com/wayfind/Cortex/queue/sender"
	queuestore "github.com/wayfind/Cortex/queue/store"
	"github.com/wayfind/Cortex/store/memory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logCfg := logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: cfg.Logging.Console,
		Modules: cfg.Logging.Modules,
	}
	logger := logging.New(logCfg).Named("probe", logCfg)

	qstore, err := queuestore.Open(cfg.Probe.QueuePath, 10_000)
	if err != nil {
		log.Fatalf("open local queue: %v", err)
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: apiKeyTransport{apiKey: cfg.Agent.APIKey, base: http.DefaultTransport},
	}
	sendInterval := 5 * time.Second
	qsender := sender.New(qstore, httpClient, sendInterval, 20, 5)

	intents := memory.NewIntentStore()

	exec := &executor.Executor{
		AgentID:    cfg.Agent.ID,
		Metrics:    sysmetrics.New(""),
		Classifier: classifier.New(),
		Fixer:      autofix.DefaultHandlerSet(cfg.Probe.Workspace, time.Duration(cfg.Probe.TimeoutSeconds)*time.Second),
		Intent:     intents,
		Thresholds: executor.Thresholds{
			CPUPercent:    cfg.Probe.ThresholdCPUPercent,
			MemoryPercent: cfg.Probe.ThresholdMemoryPercent,
			DiskPercent:   cfg.Probe.ThresholdDiskPercent,
		},
	}

	runFn := func(ctx context.Context, now time.Time) (report.Report, error) {
		rep, err := exec.Run(ctx, now)
		if err != nil {
			return rep, err
		}
		if err := enqueueReport(qstore, cfg, rep, now); err != nil {
			logger.WithError(err).Warn("failed to enqueue report for upstream delivery")
		}
		return rep, nil
	}

	sched := scheduler.New(cfg.Probe.Schedule, time.Duration(cfg.Probe.TimeoutSeconds)*time.Second, cfg.Probe.HistorySize, runFn)
	if err := sched.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	qsender.Start(ctx)

	server := &probeapi.Server{
		Scheduler: sched,
		Config:    cfg,
		AgentID:   cfg.Agent.ID,
		CORS:      middleware.CORSConfig{},
		Log:       logger,
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Probe.Port),
		Handler:           server.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Infof("probe listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("probe server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	sched.Stop()
	qsender.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}

func enqueueReport(qstore *queuestore.Store, cfg *config.Config, rep report.Report, now time.Time) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	endpoint := cfg.Probe.MonitorURL + "/api/v1/reports"
	_, err = qstore.Enqueue(endpoint, payload, now)
	return err
}

// apiKeyTransport attaches the X-API-Key header queue/sender's plain
// http.Client can't set itself, since sender.Sender only controls the
// request body and Content-Type.
type apiKeyTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-API-Key", t.apiKey)
	return t.base.RoundTrip(req)
}
