package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/millionx-hackathon/educational-voice-agent/internal/api"
	"github.com/millionx-hackathon/educational-voice-agent/internal/chunker"
	"github.com/millionx-hackathon/educational-voice-agent/internal/config"
	"github.com/millionx-hackathon/educational-voice-agent/internal/dispatch"
	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
	embedopenai "github.com/millionx-hackathon/educational-voice-agent/internal/embedding/openai"
	"github.com/millionx-hackathon/educational-voice-agent/internal/extract"
	genopenai "github.com/millionx-hackathon/educational-voice-agent/internal/generation/openai"
	"github.com/millionx-hackathon/educational-voice-agent/internal/jobs"
	"github.com/millionx-hackathon/educational-voice-agent/internal/logging"
	"github.com/millionx-hackathon/educational-voice-agent/internal/metrics"
	"github.com/millionx-hackathon/educational-voice-agent/internal/orchestrator"
	"github.com/millionx-hackathon/educational-voice-agent/internal/service"
	"github.com/millionx-hackathon/educational-voice-agent/internal/session"
	storememory "github.com/millionx-hackathon/educational-voice-agent/internal/store/memory"
	storemongo "github.com/millionx-hackathon/educational-voice-agent/internal/store/mongo"
	"github.com/millionx-hackathon/educational-voice-agent/internal/summarizer"
	"github.com/millionx-hackathon/educational-voice-agent/internal/vectorstore/memory"
	"github.com/millionx-hackathon/educational-voice-agent/internal/vectorstore/qdrant"
	"github.com/millionx-hackathon/educational-voice-agent/internal/voice/ultravox"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/voicetutor/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	log := logging.New(cfg.Server.Environment, cfg.Server.LogLevel)
	log.WithFields(logrus.Fields{"config": cfgPath, "environment": cfg.Server.Environment}).Info("starting voice tutor")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Assemble components
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "openai", "":
		if cfg.Embedder.OpenAI == nil {
			log.Fatal("openai embedder config missing")
		}
		client, err := embedopenai.NewClient(embedopenai.Config{
			BaseURL:    cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv:  cfg.Embedder.OpenAI.APIKeyEnv,
			Model:      cfg.Embedder.OpenAI.Model,
			Timeout:    time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Embedder.OpenAI.MaxRetries,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		emb = client
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	gen, err := genopenai.New(genopenai.Config{
		BaseURL:         cfg.Generation.BaseURL,
		APIKeyEnv:       cfg.Generation.APIKeyEnv,
		Model:           cfg.Generation.Model,
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		Timeout:         time.Duration(cfg.Generation.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}

	var st domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory", "":
		st = memory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatal("qdrant config missing")
		}
		st = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     config.Secret(cfg.VectorStore.Qdrant.APIKeyEnv),
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	var summaries domain.SummaryStore
	switch cfg.SummaryStore.Type {
	case "memory", "":
		summaries = storememory.NewStore()
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		ms, err := storemongo.Connect(connectCtx, cfg.SummaryStore.MongoURI, cfg.SummaryStore.Database)
		cancel()
		if err != nil {
			log.Fatalf("summary store init failed: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Close(closeCtx)
		}()
		summaries = ms
	default:
		log.Fatalf("unknown summary store: %s", cfg.SummaryStore.Type)
	}

	ch := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap, cfg.Chunker.Lookback, cfg.Chunker.MinChars, cfg.Chunker.MaxChunks)
	rag := service.NewRAGService(
		extract.New(cfg.Ingest.MaxPDFPages),
		ch, emb, st, gen,
		summarizer.NewFrequencySummarizer(600),
		service.Options{
			TopK:                cfg.Retrieval.TopK,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			BatchSize:           cfg.Ingest.BatchSize,
			PreviewSentences:    cfg.Summarizer.PreviewSentences,
			CacheTTL:            time.Duration(cfg.Retrieval.CacheTTLSecs) * time.Second,
		},
		log, m,
	)

	voice := ultravox.NewClient(ultravox.Config{
		APIURL:         cfg.Voice.APIURL,
		APIKey:         config.Secret(cfg.Voice.APIKeyEnv),
		ConnectTimeout: time.Duration(cfg.Voice.ConnectTimeout) * time.Second,
		ReadTimeout:    time.Duration(cfg.Voice.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Voice.WriteTimeout) * time.Second,
	})
	if config.Secret(cfg.Voice.APIKeyEnv) == "" {
		log.Warnf("%s is not set; remote sessions will be rejected", cfg.Voice.APIKeyEnv)
	}

	sum := summarizer.New(voice, gen, summaries, summarizer.Options{
		Structured: cfg.Summarizer.StructuredOutput,
		Timeout:    time.Duration(cfg.Summarizer.TimeoutSecs) * time.Second,
	}, log, m)

	var dispatcher domain.Dispatcher
	var closeDispatcher func(context.Context) error
	switch cfg.Dispatcher.Type {
	case "local", "":
		local := dispatch.NewLocal(func(ctx context.Context, call domain.Call) { sum.Summarize(ctx, call) },
			cfg.Dispatcher.Workers, cfg.Dispatcher.QueueSize, log, m)
		dispatcher, closeDispatcher = local, local.Close
	case "redis":
		client, err := dispatch.ConnectRedis(ctx, cfg.Dispatcher.RedisURL)
		if err != nil {
			log.Fatalf("summary queue init failed: %v", err)
		}
		rd := dispatch.NewRedis(client, cfg.Dispatcher.RedisKey, func(ctx context.Context, call domain.Call) { sum.Summarize(ctx, call) }, log, m)
		workersDone := make(chan struct{})
		workers := max(1, cfg.Dispatcher.Workers)
		go func() {
			defer close(workersDone)
			done := make(chan struct{}, workers)
			for i := 0; i < workers; i++ {
				go func() {
					_ = rd.Run(ctx)
					done <- struct{}{}
				}()
			}
			for i := 0; i < workers; i++ {
				<-done
			}
		}()
		dispatcher = rd
		closeDispatcher = func(c context.Context) error {
			defer client.Close()
			select {
			case <-workersDone:
				return nil
			case <-c.Done():
				return c.Err()
			}
		}
	default:
		log.Fatalf("unknown dispatcher: %s", cfg.Dispatcher.Type)
	}

	prompt, err := orchestrator.LoadSystemPrompt(cfg.Voice.SystemPromptFile)
	if err != nil {
		log.Fatalf("system prompt: %v", err)
	}
	registry := session.NewRegistry()
	metrics.RegisterActiveSessions(prometheus.DefaultRegisterer, registry.Len)
	orch := orchestrator.New(registry, voice, dispatcher, orchestrator.Config{
		SystemPrompt: prompt,
		Model:        cfg.Voice.Model,
		Voice:        cfg.Voice.Voice,
		Temperature:  cfg.Voice.Temperature,
	}, log, m)

	var sweeper *jobs.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper, err = jobs.NewSweeper(registry, orch,
			time.Duration(cfg.Sweeper.IntervalSecs)*time.Second,
			time.Duration(cfg.Sweeper.MaxAgeMinutes)*time.Minute, log)
		if err != nil {
			log.Fatalf("sweeper init failed: %v", err)
		}
		if err := sweeper.Start(ctx); err != nil {
			log.Fatalf("sweeper start failed: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "voicetutor",
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          120 * time.Second,
		IdleTimeout:           120 * time.Second,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		// Call ids and callers are kept past the request as registry keys.
		Immutable: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	prom := fiberprometheus.New("voicetutor")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	api.Register(app, api.Deps{
		Calls:      orch,
		Sessions:   registry,
		Retriever:  rag,
		Ingester:   rag,
		Summaries:  summaries,
		Summarizer: sum,
		Options: api.Options{
			PublicBaseURL:     cfg.Server.PublicBaseURL,
			ToolRatePerSecond: cfg.Server.ToolRatePerS,
			MaxUploadBytes:    int64(cfg.Ingest.MaxUploadMB) << 20,
		},
		Log: log,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("http server listening")
		serverErr <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("http server stopped")
		}
		stop()
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			log.WithError(err).Warn("sweeper shutdown failed")
		}
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := closeDispatcher(drainCtx); err != nil {
		log.WithError(err).Warn("summary jobs still running at exit")
	}
	log.Info("voice tutor stopped")
}
