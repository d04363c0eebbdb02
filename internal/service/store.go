// Package service implements the progression engine on top of the
// repositories: XP awards, streaks, missions, achievements, level progress,
// stats, leaderboards and resets.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"learnquest/internal/model"
	"learnquest/internal/pkg/cache"
	"learnquest/internal/repository"
)

// Common errors for service operations.
var (
	ErrInvalidAward     = errors.New("invalid xp award")
	ErrInvalidGrade     = errors.New("grade must be between 0 and 999.99")
	ErrInvalidIncrement = errors.New("mission increment must not be negative")
	ErrUnimplemented    = errors.New("not implemented")
)

// StudentStore reads student profiles.
type StudentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Student, error)
	GetOrCreateByTelegram(ctx context.Context, telegramID int64, username string) (*model.Student, bool, error)
	UpdateUsername(ctx context.Context, id int64, username string) error
	GetPlanID(ctx context.Context, id int64) (int, error)
}

// GamificationStore persists the XP, level and streak record.
type GamificationStore interface {
	Get(ctx context.Context, studentID int64) (*model.Gamification, error)
	Credit(ctx context.Context, c repository.XPCredit) (*repository.CreditResult, error)
	SaveStreak(ctx context.Context, studentID int64, streakDays int, at time.Time) (*model.Gamification, error)
	TopByXP(ctx context.Context, limit int) ([]*model.RankEntry, error)
}

// PointLogStore appends and reads the XP audit log.
type PointLogStore interface {
	Append(ctx context.Context, studentID, amount int64, reason string) (*model.PointLogEntry, error)
	Recent(ctx context.Context, studentID int64, limit int) ([]*model.PointLogEntry, error)
	Total(ctx context.Context, studentID int64) (int64, error)
	TopGainersSince(ctx context.Context, since time.Time, limit int) ([]*model.RankEntry, error)
}

// LevelStore reads levels and writes level progress and attendance recovery.
type LevelStore interface {
	GetByID(ctx context.Context, levelID int64) (*model.Level, error)
	GetByOrder(ctx context.Context, moduleID int64, order int) (*model.Level, error)
	ListByModule(ctx context.Context, moduleID int64) ([]*model.Level, error)
	AssignedAt(ctx context.Context, studentID, moduleID int64) (*time.Time, error)
	CountTasks(ctx context.Context, studentID, levelID int64) (completed, total int, err error)
	GetProgress(ctx context.Context, studentID, levelID int64) (*model.LevelProgress, error)
	ListProgress(ctx context.Context, studentID, moduleID int64) (map[int64]*model.LevelProgress, error)
	UpsertProgress(ctx context.Context, u repository.LevelProgressUpsert) (*model.LevelProgress, error)
	EnsureProgress(ctx context.Context, studentID, levelID int64) (bool, error)
	RecoverAttendance(ctx context.Context, studentID, levelID int64) (bool, error)
}

// MissionStore persists missions and per-student progress.
type MissionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Mission, error)
	ListActiveByTypes(ctx context.Context, types ...string) ([]*model.Mission, error)
	FindProgress(ctx context.Context, studentID, missionID int64, weekStart time.Time) (*model.MissionProgress, error)
	IncrementProgress(ctx context.Context, progressID int64, inc repository.ProgressIncrement) (*model.MissionProgress, error)
	CreateDailyProgress(ctx context.Context, studentID, missionID int64, inc repository.ProgressIncrement) (*model.MissionProgress, error)
	HasWeek(ctx context.Context, studentID int64, weekStart time.Time) (bool, error)
	SeedWeek(ctx context.Context, studentID int64, missionIDs []int64, weekStart time.Time) (int64, error)
	Claim(ctx context.Context, studentID, missionID int64, weekStart time.Time) (*model.MissionProgress, error)
	ListForStudent(ctx context.Context, studentID int64, weekStart time.Time) ([]*model.MissionView, error)
}

// AchievementStore persists achievement unlocks.
type AchievementStore interface {
	ListLocked(ctx context.Context, studentID int64) ([]*model.Achievement, error)
	Unlock(ctx context.Context, studentID, achievementID int64) (bool, error)
	ListUnlocked(ctx context.Context, studentID int64) ([]*model.AchievementUnlock, error)
}

// SubmissionStore records graded work.
type SubmissionStore interface {
	GetActivity(ctx context.Context, activityID int64) (*model.Activity, error)
	RecordSubmission(ctx context.Context, studentID, activityID int64, grade *float64) (int64, error)
}

// ResetStore wipes a student's progression.
type ResetStore interface {
	ResetStudent(ctx context.Context, studentID int64) ([]string, error)
}

// Awarder grants XP. XPService implements it.
type Awarder interface {
	AwardXP(ctx context.Context, studentID, amount int64, reason string) (*AwardResult, error)
}

// AchievementChecker unlocks earned achievements. AchievementService implements it.
type AchievementChecker interface {
	CheckAchievements(ctx context.Context, studentID int64) ([]*model.Achievement, error)
}

// MissionProgressor advances mission counters. MissionService implements it.
type MissionProgressor interface {
	UpdateMissionProgress(ctx context.Context, studentID int64, missionType string, incrementBy int) error
}

// Clock returns the current time.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

func orNoop(c cache.Cache) cache.Cache {
	if c == nil {
		return cache.Noop{}
	}
	return c
}

// invalidateStats drops the cached stats snapshot. Failures are logged only.
func invalidateStats(ctx context.Context, c cache.Cache, studentID int64) {
	if err := c.Delete(ctx, cache.StatsKey(studentID)); err != nil {
		log.Warn().Err(err).Int64("student_id", studentID).Msg("Failed to invalidate stats cache")
	}
}
