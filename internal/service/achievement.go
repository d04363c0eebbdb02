package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"learnquest/internal/model"
	"learnquest/internal/pkg/cache"
	"learnquest/internal/repository"
)

// AchievementService unlocks threshold achievements.
type AchievementService struct {
	gamification GamificationStore
	achievements AchievementStore
	cache        cache.Cache
}

// NewAchievementService creates a new AchievementService instance.
func NewAchievementService(gamification GamificationStore, achievements AchievementStore, c cache.Cache) *AchievementService {
	return &AchievementService{
		gamification: gamification,
		achievements: achievements,
		cache:        orNoop(c),
	}
}

// conditionMet evaluates one achievement against a record.
// Unknown condition types never match.
func conditionMet(a *model.Achievement, g *model.Gamification) bool {
	switch a.ConditionType {
	case model.ConditionLevelReached:
		return int64(g.CurrentLevel) >= a.ConditionValue
	case model.ConditionStreak:
		return int64(g.StreakDays) >= a.ConditionValue
	case model.ConditionXPTotal:
		return g.XPTotal >= a.ConditionValue
	default:
		return false
	}
}

// CheckAchievements unlocks every active achievement the student now meets
// and returns the ones unlocked by this call. A student without a record
// unlocks nothing.
func (s *AchievementService) CheckAchievements(ctx context.Context, studentID int64) ([]*model.Achievement, error) {
	g, err := s.gamification.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check achievements: %w", err)
	}

	locked, err := s.achievements.ListLocked(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check achievements: %w", err)
	}

	var unlocked []*model.Achievement
	for _, a := range locked {
		if !conditionMet(a, g) {
			continue
		}
		created, err := s.achievements.Unlock(ctx, studentID, a.ID)
		if err != nil {
			return unlocked, fmt.Errorf("failed to unlock achievement %d: %w", a.ID, err)
		}
		if !created {
			continue
		}
		unlocked = append(unlocked, a)
		log.Info().
			Int64("student_id", studentID).
			Int64("achievement_id", a.ID).
			Str("title", a.Title).
			Msg("Achievement unlocked")
	}

	if len(unlocked) > 0 {
		invalidateStats(ctx, s.cache, studentID)
	}
	return unlocked, nil
}
