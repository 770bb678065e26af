package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raine/katazuke-proxy/internal/advisor"
	"github.com/raine/katazuke-proxy/internal/cleanup"
	"github.com/raine/katazuke-proxy/internal/config"
	"github.com/raine/katazuke-proxy/internal/llm"
	"github.com/raine/katazuke-proxy/internal/quota"
	"github.com/raine/katazuke-proxy/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var version = "3.4"

const shutdownTimeout = 30 * time.Second

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func main() {
	config.LoadEnvFile()
	cfg := config.Load()
	setupLogging(cfg)

	if cfg.GeminiAPIKey == "" && !cfg.IsProduction() && config.IsInteractiveTerminal() {
		if config.RunSetupWizard() {
			cfg = config.Load()
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set, backend requests will be refused")
	}

	tuning, err := config.LoadTuning(cfg.LimitsFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.LimitsFile).Msg("failed to load limits file")
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend := llm.UnconfiguredBackend()
	if cfg.GeminiAPIKey != "" {
		backend, err = llm.NewGeminiBackend(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize gemini client")
		}
		log.Info().Msg("gemini client initialized")
	}
	client := llm.NewClient(backend)

	var analyzer cleanup.SceneAnalyzer = cleanup.NewGeminiSceneAnalyzer(client, cfg.AnalysisModel)
	if cfg.AnalysisCache > 0 {
		analyzer = cleanup.NewCachedSceneAnalyzer(analyzer, cfg.AnalysisCache)
		log.Info().Int("size", cfg.AnalysisCache).Msg("scene analysis caching enabled")
	}

	generator := cleanup.NewGenerator(client, cleanup.Models{
		Standard:    cfg.StandardModel,
		HighQuality: cfg.HighQualityModel,
	},
		cleanup.WithOverloadRetries(cfg.OverloadRetries),
		cleanup.WithBackoff(cfg.OverloadBackoff),
	)

	pipeline := cleanup.NewPipeline(
		quota.NewTracker(tuning.Limits),
		analyzer,
		generator,
		cleanup.NewGeminiInspector(client, cfg.InspectionModel, tuning.PassThreshold),
	)

	app := server.NewApp(pipeline, advisor.New(client, cfg.AnalysisModel, cfg.StandardModel), server.Options{
		Version:          version,
		Production:       cfg.IsProduction(),
		ProductionOrigin: cfg.ProductionOrigin,
		MaxBodyBytes:     cfg.MaxBodyBytes,
		APIKeyConfigured: cfg.GeminiAPIKey != "",
	})
	httpServer := server.NewHTTPServer(cfg, server.NewRouter(app))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", httpServer.Addr()).
			Str("env", cfg.AppEnv).
			Str("version", version).
			Interface("limits", tuning.Limits).
			Int("passThreshold", tuning.PassThreshold).
			Msg("proxy server listening")
		return httpServer.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}
