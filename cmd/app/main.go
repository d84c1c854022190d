package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-commerce-bot/internal/application"
	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/infra/api"
	pg "telegram-commerce-bot/internal/infra/db/postgres"
	"telegram-commerce-bot/internal/infra/logging"
	"telegram-commerce-bot/internal/infra/metrics"
	red "telegram-commerce-bot/internal/infra/redis"
	"telegram-commerce-bot/internal/infra/sched"
	tele "telegram-commerce-bot/internal/infra/telegram"
	"telegram-commerce-bot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	pg.StartPoolStats(ctx, pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	accessLogRepo := pg.NewAccessLogRepo(pool)
	feedbackRepo := pg.NewFeedbackRepo(pool)
	stateRepo := red.NewStateRepo(redisClient, cfg.Redis.TTL)
	txManager := pg.NewTxManager(pool)

	// ---- Telegram client + transport ----
	botClient, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram client")
	}
	transport := tele.NewTransport(botClient)

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, logger)
	orderUC := usecase.NewOrderUseCase(txManager, orderRepo, paymentRepo, transport, cfg, logger)
	provisionUC := usecase.NewProvisionUseCase(txManager, subRepo, accessLogRepo, stateRepo, transport, cfg, logger)
	adminUC := usecase.NewAdminUseCase(txManager, paymentRepo, orderRepo, userRepo, accessLogRepo, provisionUC, transport, cfg, logger)
	sweeperUC := usecase.NewSweeperUseCase(subRepo, userRepo, accessLogRepo, transport, cfg, logger)
	feedbackUC := usecase.NewFeedbackUseCase(subRepo, userRepo, feedbackRepo, transport, cfg, logger)

	// ---- Dialog + bot ----
	dialog := application.NewDialog(stateRepo, orderUC, feedbackUC, transport, cfg, logger)
	bot, err := tele.NewRealBot(botClient, cfg, userUC, adminUC, dialog, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram bot")
	}
	if strings.ToLower(cfg.Bot.Mode) != "polling" {
		logger.Warn().Str("mode", cfg.Bot.Mode).Msg("bot mode not implemented; falling back to polling")
	}
	go func() {
		if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- Scheduled jobs ----
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Scheduler.Timezone).Msg("scheduler timezone")
	}
	sweeperWorker := sched.NewSweeperWorker(sweeperUC, cfg.Scheduler.Sweeper, loc, logger)
	feedbackWorker := sched.NewFeedbackWorker(feedbackUC, cfg.Scheduler.Feedback, loc, logger)
	go func() { _ = sweeperWorker.Run(ctx) }()
	go func() { _ = feedbackWorker.Run(ctx) }()

	// ---- Ops server ----
	opsServer := api.NewServer(pool, redisClient, logger)
	go func() {
		if err := opsServer.Run(ctx, cfg.Ops.Port); err != nil {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	logger.Info().Str("version", version).Msg("bot is up")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	bot.StopPolling()
	cancel()
}
