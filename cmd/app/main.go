package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"whatsapp-course-delivery/internal/config"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/adapter"
	aiAdapters "whatsapp-course-delivery/internal/infra/adapters/ai"
	"whatsapp-course-delivery/internal/infra/adapters/whatsapp"
	pg "whatsapp-course-delivery/internal/infra/db/postgres"
	"whatsapp-course-delivery/internal/infra/logging"
	"whatsapp-course-delivery/internal/infra/metrics"
	"whatsapp-course-delivery/internal/infra/queue"
	red "whatsapp-course-delivery/internal/infra/redis"
	"whatsapp-course-delivery/internal/infra/sched"
	"whatsapp-course-delivery/internal/infra/web"
	"whatsapp-course-delivery/internal/infra/worker"
	"whatsapp-course-delivery/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no PII redaction)")
	flag.Parse()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, txManager)
	msgLogRepo := pg.NewMessageLogRepo(pool)
	scheduleRepo := pg.NewScheduleRepo(pool)
	catalogRepo := pg.NewCatalogRepo(pool)
	quizRepo := pg.NewQuizContextRepo(pool)
	credStore := pg.NewCredentialStore(pool)

	// ---- Delivery client ----
	deliveryClient, err := whatsapp.NewClient(cfg.WhatsApp, credStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("whatsapp client init failed")
	}

	// ---- Text generation (OpenAI -> Gemini -> Noop) ----
	var textGen adapter.TextGenerator
	switch {
	case cfg.AI.OpenAIKey != "":
		textGen, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter init failed")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("text generation: openai")
	case cfg.AI.GeminiKey != "":
		textGen, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, 0)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter init failed")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("text generation: gemini")
	default:
		textGen = aiAdapters.NewNoopAdapter()
		logger.Warn().Msg("no AI provider configured, replies use canned text")
	}

	// ---- Outbound pipeline: one queue + pool + processor per category ----
	enq := queue.NewEnqueuer(jobRepo, logger)
	policy := queue.Policy{
		RatePerSecond: cfg.Queue.RatePerSecond,
		MaxRetries:    cfg.Queue.MaxRetries,
		BaseDelay:     cfg.Queue.BaseDelay,
		StaleAfter:    cfg.Queue.StaleAfter,
	}
	for _, category := range model.Categories {
		q := queue.New(category, jobRepo, rateLimiter, policy, logger)
		p := worker.NewPool(cfg.Queue.Workers, logger)
		p.Start(ctx)
		defer p.Stop()

		proc := worker.NewDeliveryProcessor(q, deliveryClient, msgLogRepo, cfg.WhatsApp.SendTimeout, cfg.Queue.PollInterval, logger)
		go proc.Start(ctx, p)
	}

	// ---- Inbound pipeline ----
	reconciler := usecase.NewReconcilerUseCase(msgLogRepo, quizRepo, textGen, enq, logger)
	webhookPool := worker.NewPool(cfg.Queue.Workers, logger)
	webhookPool.Start(ctx)
	defer webhookPool.Stop()

	// ---- Cron: scheduler ticks and retention sweeps ----
	scheduler := sched.NewCourseScheduler(scheduleRepo, catalogRepo, enq, locker, logger)
	sweeper := sched.NewRetentionSweeper(jobRepo, credStore, cfg.Retention.Window, cfg.Retention.KeepRecent, logger)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Scheduler.TickCron, func() {
		scheduler.Tick(ctx, time.Now())
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.Scheduler.TickCron).Msg("bad scheduler cron spec")
	}
	if _, err := c.AddFunc(cfg.Retention.SweepCron, func() {
		sweeper.Sweep(ctx)
	}); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.Retention.SweepCron).Msg("bad retention cron spec")
	}
	c.Start()
	defer c.Stop()

	// ---- HTTP ----
	srv := web.NewServer(cfg.Web, cfg.WhatsApp.VerifyToken, reconciler, webhookPool, jobRepo, enq, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
