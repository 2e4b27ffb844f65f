// Command vozlocal runs the citizen-engagement pipeline: it attaches a chat
// transport, drives the conversation state machine, and keeps the gap metric
// cache fresh.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vozlocal/pkg/ai"
	"vozlocal/pkg/classify"
	"vozlocal/pkg/config"
	"vozlocal/pkg/convo"
	"vozlocal/pkg/dispatch"
	"vozlocal/pkg/eventlog"
	"vozlocal/pkg/gap"
	"vozlocal/pkg/identity"
	"vozlocal/pkg/limiter"
	"vozlocal/pkg/logx"
	"vozlocal/pkg/metrics"
	"vozlocal/pkg/persistence"
	"vozlocal/pkg/session"
	"vozlocal/pkg/textbudget"
	"vozlocal/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "vozlocal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger := logx.NewLogger("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := persistence.Initialize(cfg.Storage.DBPath); err != nil {
		return fmt.Errorf("initialize persistence: %w", err)
	}
	defer func() {
		if err := persistence.Close(); err != nil {
			logger.Error("close database: %v", err)
		}
	}()
	store := persistence.Ops()

	recorder := metrics.NewRecorder()
	totals, err := metrics.NewQueryService(cfg.Metrics.PrometheusURL)
	if err != nil {
		return fmt.Errorf("create metrics query service: %w", err)
	}
	metricsServer := startMetricsServer(cfg.Metrics.ListenAddr, totals, logger)
	defer shutdownMetricsServer(metricsServer, logger)

	events, err := eventlog.NewWriter(cfg.EventLog.Dir)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer func() { _ = events.Close() }()

	counter, err := textbudget.NewCounter()
	if err != nil {
		return fmt.Errorf("create token counter: %w", err)
	}

	limits := limiter.New(cfg.ModelLimits)
	defer limits.Close()

	chatClient, err := ai.NewChatClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create chat client: %w", err)
	}
	audioClient := ai.NewAudioClient(cfg)
	if audioClient == nil {
		logger.Warn("no OpenAI key configured; audio flows are disabled")
	}
	aiService := ai.NewService(chatClient, audioClient, limits, counter, &cfg.AI)

	classifier := classify.NewAdapter(aiService, &cfg.Classification)
	engine := convo.NewEngine(aiService, classifier, store,
		cfg.Conversation.NarrationCharBudget, cfg.Conversation.CurationBatchSize)

	// Console transport for local runs; the production channel adapter
	// plugs in here.
	console := transport.NewConsole(os.Stdin, os.Stdout)
	resolver := identity.NewResolver(console)
	sessions := session.NewStore()

	dispatcher := dispatch.New(dispatch.Config{
		Transport:   console,
		Resolver:    resolver,
		Sessions:    sessions,
		Engine:      engine,
		Transcriber: aiService,
		Citizens:    store,
		Records:     store,
		Events:      events,
		Recorder:    recorder,
		QueueSize:   cfg.Conversation.PerUserQueueSize,
	})

	gapEngine := gap.NewEngine(store)
	go refreshGapCache(ctx, gapEngine, recorder, logger,
		time.Duration(cfg.Gap.RefreshIntervalSecs)*time.Second)

	logger.Info("pipeline running (model %s); type \"<phone>: <message>\" to chat", chatClient.ModelName())

	if err := dispatcher.Run(ctx, console); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("dispatcher: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// refreshGapCache recomputes the gap metrics immediately and then on a
// fixed cadence until shutdown.
func refreshGapCache(ctx context.Context, engine *gap.Engine, recorder *metrics.Recorder, logger *logx.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := engine.RecomputeAll(); err != nil {
			logger.Error("gap cache refresh: %v", err)
		} else {
			recorder.GapRecomputed()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func startMetricsServer(addr string, totals metrics.TotalsSource, logger *logx.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/dashboard/totals", metrics.TotalsHandler(totals))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server, logger *logx.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown metrics server: %v", err)
	}
}
