// Package bot wires the Telegram transport: middleware and command routing.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"learnquest/internal/config"
	"learnquest/internal/handler"
	"learnquest/internal/repository"
	"learnquest/internal/service"
)

// Bot wraps the telebot instance with its handlers.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	progressHandler *handler.ProgressHandler
	rankingHandler  *handler.RankingHandler
	adminHandler    *handler.AdminHandler
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Config *config.Config

	Students    *service.StudentService
	XP          *service.XPService
	Streaks     *service.StreakService
	Stats       *service.StatsService
	Missions    *service.MissionService
	Levels      *service.LevelService
	Leaderboard *service.LeaderboardService
	Resets      *service.ResetService
	Submissions *service.SubmissionService

	StudentRepo *repository.StudentRepository
	ContentRepo *repository.ContentRepository
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler returned an error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
		progressHandler: handler.NewProgressHandler(
			deps.Students, deps.Streaks, deps.Stats, deps.Missions, deps.Levels,
		),
		rankingHandler: handler.NewRankingHandler(deps.Leaderboard),
		adminHandler: handler.NewAdminHandler(
			deps.XP, deps.Resets, deps.Submissions, deps.StudentRepo, deps.ContentRepo,
		),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.progressHandler.HandleStart)
	b.bot.Handle("/checkin", b.progressHandler.HandleCheckin)
	b.bot.Handle("/stats", b.progressHandler.HandleStats)
	b.bot.Handle("/missions", b.progressHandler.HandleMissions)
	b.bot.Handle("/claim", b.progressHandler.HandleClaim)
	b.bot.Handle("/levels", b.progressHandler.HandleLevels)
	b.bot.Handle("/recalc", b.progressHandler.HandleRecalc)
	b.bot.Handle(tele.OnCallback, b.progressHandler.HandleMissionCallback)

	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/weekly_top", b.rankingHandler.HandleWeeklyTop)

	admin := b.bot.Group()
	admin.Use(AdminMiddleware(b.cfg))
	admin.Handle("/award", b.adminHandler.HandleAward)
	admin.Handle("/reset_progress", b.adminHandler.HandleResetProgress)
	admin.Handle("/grade", b.adminHandler.HandleGrade)
	admin.Handle("/assign", b.adminHandler.HandleAssign)
	admin.Handle("/attendance", b.adminHandler.HandleAttendance)
	admin.Handle("/lock_level", b.adminHandler.HandleLockLevel)
	admin.Handle("/set_plan", b.adminHandler.HandleSetPlan)
}

// Start starts long polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
