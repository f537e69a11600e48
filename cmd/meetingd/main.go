// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/meetinglens/transcriptd/internal/aligner"
	"github.com/meetinglens/transcriptd/internal/audit"
	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/cache"
	"github.com/meetinglens/transcriptd/internal/config"
	"github.com/meetinglens/transcriptd/internal/core/urlutil"
	"github.com/meetinglens/transcriptd/internal/diarizer"
	"github.com/meetinglens/transcriptd/internal/health"
	"github.com/meetinglens/transcriptd/internal/httpapi"
	"github.com/meetinglens/transcriptd/internal/insight"
	"github.com/meetinglens/transcriptd/internal/llmrouter"
	xglog "github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/monitor"
	"github.com/meetinglens/transcriptd/internal/orchestrator"
	"github.com/meetinglens/transcriptd/internal/store"
	"github.com/meetinglens/transcriptd/internal/telemetry"
	"github.com/meetinglens/transcriptd/internal/transcriber"
	buildinfo "github.com/meetinglens/transcriptd/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// version, commit, and buildDate are copied from the internal/version
// package. Because they are initialised from other variables, `-X
// main.version=...` has no effect on them; a release build overrides
// them with `-ldflags "-X
// github.com/meetinglens/transcriptd/internal/version.Version=..."`
// (and `.Commit`, `.Date`).
var (
	version   = buildinfo.Version
	commit    = buildinfo.Commit
	buildDate = buildinfo.Date
)

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	switch {
	case len(os.Args) > 1 && os.Args[1] == "config":
		os.Exit(runConfigCLI(os.Args[2:]))
	case len(os.Args) > 1 && os.Args[1] == "healthcheck":
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	case len(os.Args) > 1 && os.Args[1] == "storage":
		os.Exit(runStorageCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "transcriptd",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        strings.EqualFold(os.Getenv("TRANSCRIPTD_TELEMETRY_ENABLED"), "true"),
		ServiceName:    "transcriptd",
		ServiceVersion: version,
		Environment:    envOrDefault("TRANSCRIPTD_ENVIRONMENT", "production"),
		ExporterType:   envOrDefault("TRANSCRIPTD_TELEMETRY_EXPORTER", "grpc"),
		Endpoint:       envOrDefault("TRANSCRIPTD_TELEMETRY_ENDPOINT", "localhost:4317"),
		SamplingRate:   1.0,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry provider")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown error")
		}
	}()

	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(os.Getenv("TRANSCRIPTD_DATA_DIR"))
		if dataDir == "" {
			dataDir = "/tmp"
		}
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	loader := config.NewLoader(effectiveConfigPath)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "transcriptd",
		Version: version,
	})

	if effectiveConfigPath != "" {
		logger.Info().Str("event", "config.loaded").Str("source", "file").Str("path", effectiveConfigPath).Msg("loaded configuration")
	} else {
		logger.Info().Str("event", "config.loaded").Str("source", "env+defaults").Msg("loaded configuration")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Msg("starting transcriptd")
	logger.Info().Msgf("-> data dir: %s", cfg.DataDir)
	logger.Info().Msgf("-> recordings dir: %s", cfg.RecordingsDir)
	if cfg.API.Token != "" {
		logger.Info().Msg("-> API token: configured")
	} else {
		logger.Warn().Str("security", "weak").Msg("-> API token: NOT configured (auth disabled)")
	}
	if cfg.Diarization.Enabled {
		logger.Info().Msgf("-> diarization worker: %s", cfg.Diarization.WorkerBin)
	} else {
		logger.Warn().Msg("-> diarization disabled; sessions run transcription-only")
	}
	for _, p := range cfg.LLM.Providers {
		logger.Info().Msgf("-> LLM provider %q: %s", p.Name, urlutil.SanitizeURL(p.BaseURL))
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("startup checks failed")
	}
	if _, err := httpapi.LoadSpec(); err != nil {
		logger.Fatal().Err(err).Msg("bundled openapi document invalid")
	}

	configMgrPath := effectiveConfigPath
	if configMgrPath == "" {
		configMgrPath = filepath.Join(cfg.DataDir, "config.yaml")
	}
	cfgHolder := config.NewHolder(cfg, config.NewLoader(configMgrPath), configMgrPath)
	if err := cfgHolder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config hot-reload watcher failed to start")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data dir")
	}
	if err := os.MkdirAll(cfg.RecordingsDir, 0o750); err != nil {
		logger.Fatal().Err(err).Msg("failed to create recordings dir")
	}

	dbPath := filepath.Join(cfg.DataDir, "db.sqlite")
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", dbPath).Msg("failed to open transcript store")
	}
	defer func() { _ = st.Close() }()

	auditLogger := audit.NewLogger()
	eventBus := bus.NewMemoryBus()

	router := llmrouter.New(cache.NewMemoryCache(time.Minute))
	for _, p := range cfg.LLM.Providers {
		priority := llmrouter.PriorityPrimary
		switch {
		case p.Priority == 1:
			priority = llmrouter.PrioritySecondary
		case p.Priority >= 2:
			priority = llmrouter.PriorityTertiary
		}
		router.Register(llmrouter.NewHTTPProvider(llmrouter.HTTPProviderConfig{
			Name:    p.Name,
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Model:   p.Model,
		}), priority)
	}
	if cfg.LLM.DefaultProvider != "" {
		if err := router.SetDefault(cfg.LLM.DefaultProvider); err != nil {
			logger.Warn().Err(err).Msg("failed to set default LLM provider")
		}
	}
	if len(cfg.LLM.Providers) > 0 {
		go router.StartHealthLoop(ctx)
	}

	var extractor insight.Extractor
	insightEnabled := cfg.Insights.Enabled && len(cfg.LLM.Providers) > 0
	if insightEnabled {
		extractor = insight.NewLLMExtractor(router)
	} else if cfg.Insights.Enabled {
		logger.Warn().Msg("-> insights enabled in config but no LLM providers registered; disabling")
	}

	diarizerCfg := diarizer.Config{
		Exe:                 cfg.Diarization.WorkerBin,
		ModelToken:          strings.TrimSpace(os.Getenv("TRANSCRIPTD_DIARIZATION_MODEL_TOKEN")),
		MinSpeakers:         cfg.Diarization.MinSpeakers,
		MaxSpeakers:         cfg.Diarization.MaxSpeakers,
		SimilarityThreshold: cfg.Diarization.SimilarityThreshold,
		StopGrace:           5 * time.Second,
	}
	transcriberCfg := transcriber.DefaultConfig(cfg.Transcription.WorkerBin)
	if cfg.Transcription.ModelSize != "" {
		transcriberCfg.ModelSize = transcriber.ModelSize(cfg.Transcription.ModelSize)
	}
	if cfg.Transcription.Language != "" {
		transcriberCfg.Language = cfg.Transcription.Language
	}

	orch := orchestrator.New(st, eventBus, auditLogger, extractor, orchestrator.Config{
		RecordingsDir: cfg.RecordingsDir,
		Diarizer:      diarizerCfg,
		Transcriber:   transcriberCfg,
		Aligner:       aligner.DefaultConfig(),
		Insight: insight.Config{
			MinChars:     cfg.Insights.BatchMinChars,
			MaxBatchWait: cfg.Insights.BatchMaxWait,
			ContextChars: insight.DefaultContextChars,
			Strictness:   insight.Strictness(cfg.Insights.Strictness),
		},
		Monitor:        monitor.DefaultConfig(),
		InsightEnabled: insightEnabled,
	})

	healthMgr := health.NewManager(version)
	healthMgr.RegisterChecker(health.NewConnectionChecker("store", func(ctx context.Context) error {
		return st.DB().PingContext(ctx)
	}))

	apiServer := httpapi.NewServer(orch, st, healthMgr, cfg.API, cfg.RecordingsDir)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.ListenAddr).Msg("failed to bind listen address")
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: ":9090", Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}
	cfgHolder.Stop()
	router.Stop()

	logger.Info().Msg("server exiting")
}
