package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/auth"
	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/core/session"
	"github.com/centralita-ai/voice-orchestrator/internal/correction"
	"github.com/centralita-ai/voice-orchestrator/internal/dialogue"
	"github.com/centralita-ai/voice-orchestrator/internal/dispatch"
	"github.com/centralita-ai/voice-orchestrator/internal/handler"
	"github.com/centralita-ai/voice-orchestrator/internal/metrics"
	"github.com/centralita-ai/voice-orchestrator/internal/recording"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	agentsvc "github.com/centralita-ai/voice-orchestrator/internal/services/agent"
	callsvc "github.com/centralita-ai/voice-orchestrator/internal/services/call"
	"github.com/centralita-ai/voice-orchestrator/internal/stt"
	"github.com/centralita-ai/voice-orchestrator/internal/tts"
	"github.com/centralita-ai/voice-orchestrator/internal/voiceprofile"
	"github.com/centralita-ai/voice-orchestrator/pkg/gcs"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"github.com/centralita-ai/voice-orchestrator/pkg/pubsub"
	rediscache "github.com/centralita-ai/voice-orchestrator/pkg/redis"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if present (development convenience)
	_ = godotenv.Load()

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("failed to initialize zap logger, falling back to std log")
	}

	cfg := config.LoadFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDatabaseConnection(cfg.DSN())
	if err != nil {
		logger.Base().Fatal("failed to connect to database", zap.Error(err))
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Base().Fatal("failed to run migrations", zap.Error(err))
	}
	repos := repository.NewGormManager(db)

	// Redis is optional: presence, alert cooldowns and dictionary reload
	// broadcasts degrade to single-instance behavior without it.
	var redisSvc rediscache.ServiceInterface
	if svc, err := rediscache.NewService(&rediscache.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Base().Warn("redis unavailable, running single-instance", zap.Error(err))
	} else {
		redisSvc = svc
		defer svc.Close()
	}

	var cloud *gcs.Client
	if cfg.RecordingGCSBucket != "" {
		cloud, err = gcs.NewClient(ctx, cfg.RecordingGCSBucket)
		if err != nil {
			logger.Base().Fatal("failed to create cloud storage client", zap.Error(err))
		}
		defer cloud.Close()
	}

	var queue *pubsub.Service
	if cfg.PubSubProjectID != "" {
		queue, err = pubsub.NewService(ctx, &pubsub.Config{
			ProjectID: cfg.PubSubProjectID,
			TopicName: cfg.PubSubTopic,
		})
		if err != nil {
			logger.Base().Warn("pubsub unavailable, enrichment notices disabled", zap.Error(err))
		} else {
			defer queue.Close()
		}
	}

	dispatcher := dispatch.NewDispatcher(repos.Webhooks(), cfg.Pipeline)
	dispatcher.Start()
	emitter := dispatch.NewEmitter(repos.Webhooks(), dispatcher, redisSvc, cfg.Pipeline)

	authSvc := auth.NewService(repos.Tokens(), repos.Organizations())
	registry := session.NewRegistry(repos.Organizations(), repos.Agents(), repos.Calls(), emitter, redisSvc, cfg.InstanceID)

	llm := dialogue.NewClient(cfg.LLMBaseURL)
	dictCache := correction.NewCache(ctx, repos.Dictionary(), redisSvc)
	corrector := correction.NewOnlineCorrector(dictCache, cfg.Pipeline.OnlineCorrectionBudget, cfg.Pipeline.ClarificationConfidenceThreshold)
	dictSvc := correction.NewService(repos.Dictionary(), dictCache, llm)

	tools := dialogue.NewToolRegistry()
	registerBuiltinTools(tools)
	engine := dialogue.NewEngine(llm, tools, cfg.Pipeline.MinChunkWords)

	store := recording.NewStore(cfg, cloud, repos.Recordings())
	offlineCorrector := correction.NewHybridCorrector(dictCache, repos.Dictionary(), llm)
	recordings := recording.NewService(store, repos.Recordings(), queue, offlineCorrector)
	recorder := metrics.NewRecorder(repos.Calls())
	profiles := voiceprofile.NewStore()

	calls := callsvc.NewService(callsvc.Deps{
		Config:     cfg,
		Registry:   registry,
		Agents:     repos.Agents(),
		Calls:      repos.Calls(),
		STT:        stt.NewClient(cfg.STTBaseURL),
		TTS:        tts.NewClient(cfg.TTSBaseURL),
		Corrector:  corrector,
		Engine:     engine,
		LLM:        llm,
		Recordings: recordings,
		Recorder:   recorder,
		Emitter:    emitter,
		Profiles:   profiles,
	})
	agents := agentsvc.NewService(repos.Agents())

	router := handler.SetupRoutes(handler.Deps{
		AdminSecret: cfg.AdminAPISecret,
		Auth:        authSvc,
		Orgs:        repos.Organizations(),
		Webhooks:    repos.Webhooks(),
		QA:          repos.QA(),
		Agents:      agents,
		Calls:       calls,
		Recordings:  recordings,
		Dictionary:  dictSvc,
		Emitter:     emitter,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// websocket streams live past these; they apply to the REST surface
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Base().Info("starting server",
			zap.String("addr", server.Addr),
			zap.String("instance_id", cfg.InstanceID))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Base().Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Base().Info("shutdown signal received, draining sessions",
		zap.Int("active", registry.Active()),
		zap.Duration("grace", cfg.ShutdownGrace))

	// stop accepting new work, then drain active calls within the grace
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Base().Warn("http shutdown incomplete", zap.Error(err))
	}
	registry.CloseAll(session.OutcomeEnded)
	dispatcher.Stop()
	logger.Base().Info("shutdown complete")
}

// registerBuiltinTools wires the tool calls the orchestrator can answer
// itself. Transfer and callback requests are acknowledged here and turned
// into webhook events by the call pipeline; the account-facing tools stay
// unregistered until a tenant integration backs them.
func registerBuiltinTools(tools *dialogue.ToolRegistry) {
	ack := func(status string) dialogue.ToolHandler {
		return func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			return map[string]string{"status": status}, nil
		}
	}
	_ = tools.Register(dialogue.ToolTransferToAgent, ack("transfer_requested"))
	_ = tools.Register(dialogue.ToolScheduleCallback, ack("callback_scheduled"))
}
