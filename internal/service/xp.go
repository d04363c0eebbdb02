package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"learnquest/internal/config"
	"learnquest/internal/model"
	"learnquest/internal/pkg/cache"
	"learnquest/internal/pkg/lock"
	"learnquest/internal/progression"
	"learnquest/internal/repository"
)

// AwardRequest is the validated input of AwardXP. A single award is at most
// MaxAwardAmount.
type AwardRequest struct {
	StudentID int64  `validate:"gt=0"`
	Amount    int64  `validate:"gte=0,lte=1000000"`
	Reason    string `validate:"required,max=255"`
}

// MaxAwardAmount is the largest nominal amount one award may carry.
const MaxAwardAmount = 1_000_000

// AwardResult reports the outcome of an XP award.
// NewLevel is only set when the level increased.
type AwardResult struct {
	LeveledUp bool
	NewLevel  int
	XPAwarded int64
	Unlocked  []*model.Achievement
}

// XPService awards XP and keeps the level in step with it.
type XPService struct {
	students     StudentStore
	gamification GamificationStore
	achievements AchievementChecker
	cache        cache.Cache
	locks        *lock.StudentLock
	cfg          config.ProgressionConfig
	validate     *validator.Validate
}

// NewXPService creates a new XPService instance. achievements may be nil.
func NewXPService(
	students StudentStore,
	gamification GamificationStore,
	achievements AchievementChecker,
	c cache.Cache,
	locks *lock.StudentLock,
	cfg config.ProgressionConfig,
) *XPService {
	return &XPService{
		students:     students,
		gamification: gamification,
		achievements: achievements,
		cache:        orNoop(c),
		locks:        locks,
		cfg:          cfg,
		validate:     validator.New(),
	}
}

// IsPro reports whether the plan earns the XP multiplier.
func (s *XPService) IsPro(planID int) bool {
	return planID == s.cfg.ProPlanID
}

// AwardXP logs amount, credits it (times the Pro multiplier for Pro
// students), raises the level when the new total crosses a threshold, and
// then checks achievements.
func (s *XPService) AwardXP(ctx context.Context, studentID, amount int64, reason string) (*AwardResult, error) {
	req := AwardRequest{StudentID: studentID, Amount: amount, Reason: reason}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAward, err)
	}

	planID, err := s.students.GetPlanID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to award xp: %w", err)
	}
	final := progression.ApplyPlanMultiplier(amount, s.IsPro(planID), s.cfg.ProMultiplier)

	var credit *repository.CreditResult
	err = s.locks.WithLockContext(ctx, studentID, s.cfg.LockTimeout, func() error {
		var err error
		credit, err = s.gamification.Credit(ctx, repository.XPCredit{
			StudentID: studentID,
			Nominal:   amount,
			Credited:  final,
			Reason:    reason,
			LevelFor:  progression.CalculateLevel,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to award xp: %w", err)
	}
	previousLevel, newLevel, xpTotal := credit.PreviousLevel, credit.Level, credit.XPTotal

	invalidateStats(ctx, s.cache, studentID)

	result := &AwardResult{XPAwarded: final}
	if newLevel > previousLevel {
		result.LeveledUp = true
		result.NewLevel = newLevel
		log.Info().
			Int64("student_id", studentID).
			Int("old_level", previousLevel).
			Int("new_level", newLevel).
			Int64("xp", xpTotal).
			Msg("Student leveled up")
	}

	if s.achievements != nil {
		// The award is already committed, so a failed check must not
		// surface as a failed award.
		unlocked, err := s.achievements.CheckAchievements(ctx, studentID)
		if err != nil {
			log.Warn().Err(err).Int64("student_id", studentID).Msg("Achievement check failed after award")
		}
		result.Unlocked = unlocked
	}

	log.Debug().
		Int64("student_id", studentID).
		Int64("amount", amount).
		Int64("credited", final).
		Str("reason", reason).
		Msg("XP awarded")

	return result, nil
}
