package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callsurvey/internal/audit"
	"callsurvey/internal/auth"
	"callsurvey/internal/config"
	"callsurvey/internal/conversation"
	"callsurvey/internal/httpapi"
	"callsurvey/internal/llm"
	"callsurvey/internal/reporting"
	"callsurvey/internal/schedule"
	"callsurvey/internal/scheduler"
	"callsurvey/internal/survey"
	"callsurvey/internal/telephony"
	"callsurvey/pkg/logger"
	"callsurvey/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jasonlvhit/gocron"
	"github.com/redis/go-redis/v9"
)

const (
	voiceWebhookPath  = "/webhooks/twilio/voice"
	gatherWebhookPath = "/webhooks/twilio/gather"

	callSlotKey = "callsurvey:active_calls"
	// Slots leak back after this long even if a call never reaches a terminal
	// status (crash, provider never connecting).
	callSlotTTL = 15 * time.Minute
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	store := schedule.NewStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	reports := reporting.NewService(reporting.NewStoreRepo(store))

	dialer := telephony.NewTwilioDialer(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)

	llmClient := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Timeout)
	policy := survey.NewPolicy(survey.Config{
		Prefixes: survey.DefaultPrefixes(),
		MaxTurns: cfg.Survey.MaxTurns,
	}, llmClient)

	acquireSlot, releaseSlot := callSlotFuncs(rdb, cfg.Survey.MaxActiveCalls)

	convHandler := conversation.NewHandler(store, policy, auditSvc, log, voiceWebhookPath, gatherWebhookPath, releaseSlot)

	loop := scheduler.NewLoop(store, dialer, auditSvc, log, scheduler.Config{
		VoiceWebhookURL: cfg.Twilio.CallbackBaseURL + voiceWebhookPath,
		BatchSize:       cfg.Survey.DispatchBatchSize,
	}, acquireSlot, releaseSlot)

	go func() {
		interval := uint64(cfg.Survey.SchedulerInterval / time.Second)
		_ = gocron.Every(interval).Seconds().Do(func() { loop.Tick(rootCtx) })
		<-gocron.Start()
	}()
	defer gocron.Clear()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{
		Auth:    authManager,
		Store:   store,
		Reports: reports,
		Audit:   auditSvc,
	}
	registerRoutes(r, db, authManager, handlers, convHandler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// callSlotFuncs returns the acquire/release pair enforcing the active-call
// cap, or nils when the cap is disabled.
func callSlotFuncs(rdb *redis.Client, maxActive int) (func(ctx context.Context) (bool, error), func(ctx context.Context)) {
	if maxActive <= 0 {
		return nil, nil
	}
	acquire := func(ctx context.Context) (bool, error) {
		return utils.AcquireCallSlot(ctx, rdb, callSlotKey, maxActive, callSlotTTL)
	}
	release := func(ctx context.Context) {
		if err := utils.ReleaseCallSlot(ctx, rdb, callSlotKey); err != nil {
			slog.Warn("call slot release failed", "err", err)
		}
	}
	return acquire, release
}
