// Package main is the entry point for the learnquest progression bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"learnquest/internal/bot"
	"learnquest/internal/config"
	"learnquest/internal/pkg/cache"
	"learnquest/internal/pkg/db"
	"learnquest/internal/pkg/lock"
	"learnquest/internal/repository"
	"learnquest/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setLogLevel(cfg.Log.Level)
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	statsCache := newStatsCache(ctx, &cfg.Redis)
	if closer, ok := statsCache.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// Repositories
	studentRepo := repository.NewStudentRepository(dbPool.Pool)
	gamificationRepo := repository.NewGamificationRepository(dbPool.Pool)
	pointLogRepo := repository.NewPointLogRepository(dbPool.Pool)
	levelRepo := repository.NewLevelRepository(dbPool.Pool)
	contentRepo := repository.NewContentRepository(dbPool.Pool)
	missionRepo := repository.NewMissionRepository(dbPool.Pool)
	achievementRepo := repository.NewAchievementRepository(dbPool.Pool)
	resetRepo := repository.NewResetRepository(dbPool.Pool)

	// Services
	progression := cfg.Progression
	studentLock := lock.NewStudentLock()

	achievementService := service.NewAchievementService(gamificationRepo, achievementRepo, statsCache)
	xpService := service.NewXPService(
		studentRepo, gamificationRepo, achievementService, statsCache, studentLock, progression,
	)
	missionService := service.NewMissionService(
		studentRepo, missionRepo, xpService, progression.ProPlanID, progression.Location(), nil,
	)
	streakService := service.NewStreakService(
		gamificationRepo, xpService, missionService, statsCache, studentLock, progression.LockTimeout, nil,
	)
	levelService := service.NewLevelService(levelRepo, xpService, studentLock, progression, nil)

	deps := &bot.Dependencies{
		Config:      cfg,
		Students:    service.NewStudentService(studentRepo),
		XP:          xpService,
		Streaks:     streakService,
		Stats:       service.NewStatsService(gamificationRepo, pointLogRepo, achievementRepo, statsCache, cfg.Cache.StatsTTL),
		Missions:    missionService,
		Levels:      levelService,
		Leaderboard: service.NewLeaderboardService(gamificationRepo, pointLogRepo, progression.Location(), nil),
		Resets:      service.NewResetService(resetRepo, statsCache, studentLock, progression.LockTimeout),
		Submissions: service.NewSubmissionService(contentRepo, levelService, missionService),
		StudentRepo: studentRepo,
		ContentRepo: contentRepo,
	}

	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go telegramBot.Start()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// newStatsCache connects to Redis when configured. Without Redis, or when it
// is unreachable, stats are computed on every request.
func newStatsCache(ctx context.Context, cfg *config.RedisConfig) cache.Cache {
	if !cfg.Enabled() {
		log.Info().Msg("Redis not configured, stats cache disabled")
		return cache.Noop{}
	}
	c, err := cache.NewRedis(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr()).Msg("Redis unavailable, stats cache disabled")
		return cache.Noop{}
	}
	log.Info().Str("addr", cfg.Addr()).Msg("Connected to Redis")
	return c
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
