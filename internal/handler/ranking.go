package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"learnquest/internal/service"
)

// RankingHandler handles leaderboard commands.
type RankingHandler struct {
	leaderboard *service.LeaderboardService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(leaderboard *service.LeaderboardService) *RankingHandler {
	return &RankingHandler{leaderboard: leaderboard}
}

// HandleTop handles /top: the students with the most XP.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	entries, err := h.leaderboard.GetTopStudents(context.Background(), leaderboardTop)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		return c.Reply("❌ Could not load the leaderboard, please try again")
	}
	return c.Reply(formatRanking("🏆 Top 10", entries))
}

// HandleWeeklyTop handles /weekly_top: XP earned since Monday.
func (h *RankingHandler) HandleWeeklyTop(c tele.Context) error {
	entries, err := h.leaderboard.GetWeeklyGainers(context.Background(), leaderboardTop)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load weekly leaderboard")
		return c.Reply("❌ Could not load the leaderboard, please try again")
	}
	return c.Reply(formatRanking("📅 This week", entries))
}
