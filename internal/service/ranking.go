package service

import (
	"context"
	"time"

	"learnquest/internal/model"
	"learnquest/internal/progression"
)

// LeaderboardService ranks students by XP.
type LeaderboardService struct {
	gamification GamificationStore
	pointLog     PointLogStore
	timezone     *time.Location
	now          Clock
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(
	gamification GamificationStore,
	pointLog PointLogStore,
	timezone *time.Location,
	now Clock,
) *LeaderboardService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &LeaderboardService{
		gamification: gamification,
		pointLog:     pointLog,
		timezone:     timezone,
		now:          orNow(now),
	}
}

// GetTopStudents returns the students with the most total XP.
func (s *LeaderboardService) GetTopStudents(ctx context.Context, limit int) ([]*model.RankEntry, error) {
	return s.gamification.TopByXP(ctx, limit)
}

// GetWeeklyGainers ranks students by XP logged since Monday. The amounts are
// the nominal logged amounts, before plan multipliers.
func (s *LeaderboardService) GetWeeklyGainers(ctx context.Context, limit int) ([]*model.RankEntry, error) {
	since := progression.WeekStart(s.now().In(s.timezone))
	return s.pointLog.TopGainersSince(ctx, since, limit)
}
