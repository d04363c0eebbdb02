package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"learnquest/internal/model"
	"learnquest/internal/pkg/cache"
	"learnquest/internal/progression"
	"learnquest/internal/repository"
)

const recentActivityLimit = 5

// Stats is a student's gamification snapshot.
type Stats struct {
	StudentID            int64                      `json:"student_id"`
	XPTotal              int64                      `json:"xp_total"`
	CurrentLevel         int                        `json:"current_level"`
	AvailablePoints      int64                      `json:"available_points"`
	StreakDays           int                        `json:"streak_days"`
	LastStreakUpdate     *time.Time                 `json:"last_streak_update,omitempty"`
	TotalPoints          int64                      `json:"total_points"`
	XPForCurrentLevel    int64                      `json:"xp_for_current_level"`
	XPForNextLevel       int64                      `json:"xp_for_next_level"`
	LevelProgressPercent int                        `json:"level_progress_percent"`
	Achievements         []*model.AchievementUnlock `json:"achievements"`
	RecentActivity       []*model.PointLogEntry     `json:"recent_activity"`
}

// StatsService assembles and caches gamification snapshots.
type StatsService struct {
	gamification GamificationStore
	pointLog     PointLogStore
	achievements AchievementStore
	cache        cache.Cache
	ttl          time.Duration
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(
	gamification GamificationStore,
	pointLog PointLogStore,
	achievements AchievementStore,
	c cache.Cache,
	ttl time.Duration,
) *StatsService {
	return &StatsService{
		gamification: gamification,
		pointLog:     pointLog,
		achievements: achievements,
		cache:        orNoop(c),
		ttl:          ttl,
	}
}

// GetGamificationStats returns the student's snapshot. A student without a
// record gets a level 1 snapshot with zeros.
func (s *StatsService) GetGamificationStats(ctx context.Context, studentID int64) (*Stats, error) {
	key := cache.StatsKey(studentID)

	var cached Stats
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Int64("student_id", studentID).Msg("Stats cache read failed")
	}

	stats := &Stats{StudentID: studentID, CurrentLevel: 1}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := s.gamification.Get(gctx, studentID)
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		stats.XPTotal = rec.XPTotal
		stats.CurrentLevel = rec.CurrentLevel
		stats.AvailablePoints = rec.AvailablePoints
		stats.StreakDays = rec.StreakDays
		stats.LastStreakUpdate = rec.LastStreakUpdate
		return nil
	})
	g.Go(func() error {
		total, err := s.pointLog.Total(gctx, studentID)
		stats.TotalPoints = total
		return err
	})
	g.Go(func() error {
		unlocks, err := s.achievements.ListUnlocked(gctx, studentID)
		stats.Achievements = unlocks
		return err
	})
	g.Go(func() error {
		recent, err := s.pointLog.Recent(gctx, studentID, recentActivityLimit)
		stats.RecentActivity = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to get gamification stats: %w", err)
	}

	stats.XPForCurrentLevel = progression.XPForLevel(stats.CurrentLevel)
	stats.XPForNextLevel = progression.XPForLevel(stats.CurrentLevel + 1)
	stats.LevelProgressPercent = progression.LevelProgressPercent(stats.XPTotal)

	if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
		log.Warn().Err(err).Int64("student_id", studentID).Msg("Stats cache write failed")
	}
	return stats, nil
}
