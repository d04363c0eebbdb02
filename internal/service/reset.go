package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"learnquest/internal/pkg/cache"
	"learnquest/internal/pkg/lock"
)

// ResetService wipes a student's progression.
type ResetService struct {
	resets      ResetStore
	cache       cache.Cache
	locks       *lock.StudentLock
	lockTimeout time.Duration
}

// NewResetService creates a new ResetService instance.
func NewResetService(resets ResetStore, c cache.Cache, locks *lock.StudentLock, lockTimeout time.Duration) *ResetService {
	return &ResetService{
		resets:      resets,
		cache:       orNoop(c),
		locks:       locks,
		lockTimeout: lockTimeout,
	}
}

// ResetStudentProgress deletes the student's unlocks, mission progress,
// level progress, attendance recoveries and point log, and leaves a zero
// record behind. Optional tables that do not exist are skipped.
func (s *ResetService) ResetStudentProgress(ctx context.Context, studentID int64) error {
	var skipped []string
	err := s.locks.WithLockContext(ctx, studentID, s.lockTimeout, func() error {
		var err error
		skipped, err = s.resets.ResetStudent(ctx, studentID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset student progress: %w", err)
	}

	invalidateStats(ctx, s.cache, studentID)

	log.Info().
		Int64("student_id", studentID).
		Strs("skipped_tables", skipped).
		Msg("Student progress reset")
	return nil
}
