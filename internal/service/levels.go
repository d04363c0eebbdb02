package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"learnquest/internal/config"
	"learnquest/internal/model"
	"learnquest/internal/pkg/lock"
	"learnquest/internal/progression"
	"learnquest/internal/repository"
)

// LevelProgressResult is the stored progress of a level after recalculation.
type LevelProgressResult struct {
	LevelID             int64
	PercentComplete     int
	Completed           bool
	CompletedAt         *time.Time
	FirstCompletion     bool
	AttendanceRecovered bool
	NextLevelID         int64
}

// LevelStatus is one row of a module's level listing for a student.
type LevelStatus struct {
	Level           *model.Level
	Status          progression.UnlockStatus
	PercentComplete int
	Completed       bool
	CompletedAt     *time.Time
}

// LevelService computes level progress and availability.
type LevelService struct {
	levels LevelStore
	xp     Awarder
	locks  *lock.StudentLock
	cfg    config.ProgressionConfig
	now    Clock
}

// NewLevelService creates a new LevelService instance.
func NewLevelService(
	levels LevelStore,
	xp Awarder,
	locks *lock.StudentLock,
	cfg config.ProgressionConfig,
	now Clock,
) *LevelService {
	return &LevelService{
		levels: levels,
		xp:     xp,
		locks:  locks,
		cfg:    cfg,
		now:    orNow(now),
	}
}

// CalculateLevelProgress recomputes a level's completion from graded
// submissions and stores it. The first time a level completes, a missed
// session is marked recovered (with bonus XP) and the next level is opened.
// Completion never reverts.
func (s *LevelService) CalculateLevelProgress(ctx context.Context, studentID, levelID int64) (*LevelProgressResult, error) {
	level, err := s.levels.GetByID(ctx, levelID)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate level progress: %w", err)
	}

	now := s.now()
	result := &LevelProgressResult{LevelID: levelID}

	err = s.locks.WithLockContext(ctx, studentID, s.cfg.LockTimeout, func() error {
		completedTasks, totalTasks, err := s.levels.CountTasks(ctx, studentID, levelID)
		if err != nil {
			return err
		}
		percent, completed := progression.PercentComplete(completedTasks, totalTasks)

		prev, err := s.levels.GetProgress(ctx, studentID, levelID)
		if err != nil {
			return err
		}
		result.FirstCompletion = completed && (prev == nil || !prev.Completed)

		if result.FirstCompletion {
			result.AttendanceRecovered, err = s.levels.RecoverAttendance(ctx, studentID, levelID)
			if err != nil {
				return err
			}
		}

		stored, err := s.levels.UpsertProgress(ctx, repository.LevelProgressUpsert{
			StudentID: studentID,
			LevelID:   levelID,
			Percent:   percent,
			Completed: completed,
			At:        now,
		})
		if err != nil {
			return err
		}
		result.PercentComplete = stored.PercentComplete
		result.Completed = stored.Completed
		result.CompletedAt = stored.CompletedAt

		if result.FirstCompletion {
			result.NextLevelID, err = s.unlockNextLevel(ctx, studentID, level)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to calculate level progress: %w", err)
	}

	if result.FirstCompletion {
		log.Info().
			Int64("student_id", studentID).
			Int64("level_id", levelID).
			Int64("next_level_id", result.NextLevelID).
			Msg("Level completed")
	}

	if result.AttendanceRecovered {
		if _, err := s.xp.AwardXP(ctx, studentID, s.cfg.AttendanceRecoveryBonus, model.ReasonAttendanceRecovered); err != nil {
			return result, fmt.Errorf("failed to award attendance recovery: %w", err)
		}
	}

	return result, nil
}

// unlockNextLevel opens the level after level in its module and returns its
// id, or 0 when level is the last one.
func (s *LevelService) unlockNextLevel(ctx context.Context, studentID int64, level *model.Level) (int64, error) {
	next, err := s.levels.GetByOrder(ctx, level.ModuleID, level.Order+1)
	if err != nil {
		if errors.Is(err, repository.ErrLevelNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if _, err := s.levels.EnsureProgress(ctx, studentID, next.ID); err != nil {
		return 0, err
	}
	return next.ID, nil
}

// GetStudentLevelProgress lists a module's levels in order with the
// student's progress and unlock status. Days elapsed count from the module
// assignment; an unassigned module counts as day 0.
func (s *LevelService) GetStudentLevelProgress(ctx context.Context, studentID, moduleID int64) ([]*LevelStatus, error) {
	levels, err := s.levels.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get level progress: %w", err)
	}
	progress, err := s.levels.ListProgress(ctx, studentID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get level progress: %w", err)
	}
	assignedAt, err := s.levels.AssignedAt(ctx, studentID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get level progress: %w", err)
	}

	daysElapsed := 0
	if assignedAt != nil {
		daysElapsed = max(0, progression.DaysBetween(*assignedAt, s.now()))
	}

	inputs := make([]progression.LevelInput, len(levels))
	for i, l := range levels {
		inputs[i] = progression.LevelInput{
			Order:        l.Order,
			DaysToUnlock: l.DaysToUnlock,
			Override:     progression.OverrideFromNullable(l.ManualLockOverride),
		}
		if p := progress[l.ID]; p != nil {
			inputs[i].Completed = p.Completed
		}
	}
	statuses := progression.EvaluateLevels(inputs, daysElapsed, s.cfg.DefaultDaysToUnlock)

	out := make([]*LevelStatus, len(levels))
	for i, l := range levels {
		ls := &LevelStatus{Level: l, Status: statuses[i]}
		if p := progress[l.ID]; p != nil {
			ls.PercentComplete = p.PercentComplete
			ls.Completed = p.Completed
			ls.CompletedAt = p.CompletedAt
		}
		out[i] = ls
	}
	return out, nil
}
