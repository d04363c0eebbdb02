package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"learnquest/internal/pkg/cache"
	"learnquest/internal/pkg/lock"
	"learnquest/internal/progression"
	"learnquest/internal/repository"
)

// StreakResult is the streak after a check-in and the bonus it earned.
type StreakResult struct {
	Streak  int
	BonusXP int64
}

// StreakService tracks daily login streaks.
type StreakService struct {
	gamification GamificationStore
	xp           Awarder
	missions     MissionProgressor
	cache        cache.Cache
	locks        *lock.StudentLock
	lockTimeout  time.Duration
	now          Clock
}

// NewStreakService creates a new StreakService instance. missions may be nil.
func NewStreakService(
	gamification GamificationStore,
	xp Awarder,
	missions MissionProgressor,
	c cache.Cache,
	locks *lock.StudentLock,
	lockTimeout time.Duration,
	now Clock,
) *StreakService {
	return &StreakService{
		gamification: gamification,
		xp:           xp,
		missions:     missions,
		cache:        orNoop(c),
		locks:        locks,
		lockTimeout:  lockTimeout,
		now:          orNow(now),
	}
}

// UpdateStreak records a daily check-in. A second call within 24 hours of
// the last one changes nothing. Milestone bonuses are awarded as XP and the
// streak missions are advanced after the streak is stored.
func (s *StreakService) UpdateStreak(ctx context.Context, studentID int64) (*StreakResult, error) {
	now := s.now()

	var (
		next    int
		bonus   int64
		outcome progression.StreakOutcome
	)
	err := s.locks.WithLockContext(ctx, studentID, s.lockTimeout, func() error {
		current := 0
		var last *time.Time

		g, err := s.gamification.Get(ctx, studentID)
		switch {
		case err == nil:
			current, last = g.StreakDays, g.LastStreakUpdate
		case !errors.Is(err, repository.ErrRecordNotFound):
			return err
		}

		next, bonus, outcome = progression.NextStreak(current, last, now)
		if outcome == progression.StreakSameDay {
			return nil
		}
		_, err = s.gamification.SaveStreak(ctx, studentID, next, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	result := &StreakResult{Streak: next, BonusXP: bonus}
	if outcome == progression.StreakSameDay {
		return result, nil
	}

	invalidateStats(ctx, s.cache, studentID)

	if outcome == progression.StreakBroken {
		log.Info().Int64("student_id", studentID).Msg("Streak broken")
	}

	if bonus > 0 {
		if _, err := s.xp.AwardXP(ctx, studentID, bonus, fmt.Sprintf("Streak of %d days", next)); err != nil {
			return result, fmt.Errorf("failed to award streak bonus: %w", err)
		}
		log.Info().
			Int64("student_id", studentID).
			Int("streak", next).
			Int64("bonus", bonus).
			Msg("Streak milestone reached")
	}

	if s.missions != nil {
		for _, inc := range progression.StreakMissionIncrements(next) {
			if err := s.missions.UpdateMissionProgress(ctx, studentID, inc.MissionType, inc.Increment); err != nil {
				return result, fmt.Errorf("failed to push %s progress: %w", inc.MissionType, err)
			}
		}
	}

	return result, nil
}
