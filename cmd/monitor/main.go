// Package main is the Monitor process entry point: it owns the cluster's
// durable state and aggregation logic (spec.md §4.1), accepting reports
// from every Probe beneath it in the tree.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wayfind/Cortex/api/monitorapi"
	"github.com/wayfind/Cortex/monitor/alertaggregator"
	"github.com/wayfind/Cortex/monitor/broadcaster"
	"github.com/wayfind/Cortex/monitor/decisionengine"
	"github.com/wayfind/Cortex/monitor/forwarder"
	"github.com/wayfind/Cortex/monitor/heartbeat"
	"github.com/wayfind/Cortex/monitor/ingest"
	"github.com/wayfind/Cortex/monitor/intentrecorder"
	"github.com/wayfind/Cortex/monitor/llmclient"
	"github.com/wayfind/Cortex/monitor/notifier"
	"github.com/wayfind/Cortex/monitor/topology"
	"github.com/wayfind/Cortex/platform/cache"
	"github.com/wayfind/Cortex/platform/config"
	"github.com/wayfind/Cortex/platform/logging"
	"github.com/wayfind/Cortex/platform/middleware"
	"github.com/wayfind/Cortex/platform/migrations"
	"github.com/wayfind/Cortex/store/memory"
	"github.com/wayfind/Cortex/store/postgres"
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
	logger := logging.New(logCfg).Named("monitor", logCfg)

	agents, reports, decisions, alerts, intents, users, tx := openStores(cfg, logger)

	c := cache.New()
	bcast := broadcaster.New(logger)
	topo := topology.New(agents, c, time.Duration(cfg.Monitor.TopologyCacheTTLSeconds)*time.Second, cfg.Monitor.RegistrationToken)

	hbChecker := heartbeat.New(agents, bcast, c,
		time.Duration(cfg.Monitor.HeartbeatCheckIntervalSeconds)*time.Second,
		time.Duration(cfg.Monitor.HeartbeatTimeoutSeconds)*time.Second,
		logger)

	intentRec := intentrecorder.New(intents)

	llm := llmclient.New("", cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	engine := decisionengine.New(llm, intents, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second, logger)

	aggregator := alertaggregator.New(alerts, intents, time.Duration(cfg.Monitor.AlertDedupWindowMinutes)*time.Minute, logger)
	notify := notifier.New(cfg.Notifier.Enabled, cfg.Notifier.BotToken, cfg.Notifier.ChatID, http.DefaultClient, logger)
	fwd := forwarder.New(http.DefaultClient)

	pipeline := &ingest.Pipeline{
		Tx:          tx,
		Agents:      agents,
		Reports:     reports,
		Decisions:   decisions,
		Intent:      intents,
		Engine:      engine,
		Forwarder:   fwd,
		Aggregator:  aggregator,
		Notifier:    notify,
		Broadcaster: bcast,
		Cache:       c,
		Log:         logger,
	}

	issuer := middleware.NewTokenIssuer(cfg.Auth.SecretKey, time.Duration(cfg.Auth.AccessTokenExpireMinutes)*time.Minute)

	server := &monitorapi.Server{
		Agents:      agents,
		Reports:     reports,
		Decisions:   decisions,
		Alerts:      alerts,
		Users:       users,
		Topology:    topo,
		Ingest:      pipeline,
		Engine:      engine,
		Aggregator:  aggregator,
		Intent:      intentRec,
		Broadcaster: bcast,
		Cache:       c,
		TokenIssuer: issuer,
		RegistrationSecret: cfg.Monitor.RegistrationToken,
		CORS:        middleware.CORSConfig{},
		Log:         logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hbChecker.Start(ctx)
	defer hbChecker.Stop()

	httpServer := &http.Server{
		Addr:              fmtAddr(cfg.Monitor.Host, cfg.Monitor.Port),
		Handler:           server.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Infof("monitor listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("monitor server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}

// txRunner is the subset of the transaction boundary ingest.Pipeline needs.
type txRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func openStores(cfg *config.Config, logger *logging.Logger) (
	monitorapi.AgentStore,
	monitorapi.ReportStore,
	monitorapi.DecisionStore,
	monitorapi.AlertStore,
	intentrecorder.Store,
	monitorapi.UserStore,
	txRunner,
) {
	if cfg.Monitor.DatabaseURL == "" {
		logger.Warn("MONITOR_DATABASE_URL not set, running against the in-memory store")
		return memory.NewAgentStore(), memory.NewReportStore(), memory.NewDecisionStore(),
			memory.NewAlertStore(), memory.NewIntentStore(), memory.NewUserStore(), memory.NoTx{}
	}

	if cfg.Monitor.MigrateOnStart {
		if err := migrations.Apply(cfg.Monitor.DatabaseURL); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	db, err := postgres.Open(cfg.Monitor.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	base := postgres.NewBaseStore(db)
	return postgres.NewAgentStore(db), postgres.NewReportStore(db), postgres.NewDecisionStore(db),
		postgres.NewAlertStore(db), postgres.NewIntentStore(db), postgres.NewUserStore(db), base
}

func fmtAddr(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, port)
}
