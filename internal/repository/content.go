package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnquest/internal/model"
)

// ContentRepository writes the course content and assignment rows the engine
// reads: modules, levels, activities, submissions, assignments and attendance.
type ContentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository creates a new ContentRepository instance.
func NewContentRepository(pool *pgxpool.Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
}

// CreateModule inserts a module.
func (r *ContentRepository) CreateModule(ctx context.Context, title string) (*model.Module, error) {
	var m model.Module
	err := r.pool.QueryRow(ctx,
		`INSERT INTO modules (title) VALUES ($1) RETURNING id, title`, title,
	).Scan(&m.ID, &m.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to create module: %w", err)
	}
	return &m, nil
}

// CreateLevel inserts a level. DaysToUnlock and ManualLockOverride may be nil.
func (r *ContentRepository) CreateLevel(ctx context.Context, l *model.Level) (*model.Level, error) {
	const query = `
		INSERT INTO levels (module_id, title, "order", days_to_unlock, manual_lock_override)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + levelColumns

	created, err := scanLevel(r.pool.QueryRow(ctx, query,
		l.ModuleID, l.Title, l.Order, l.DaysToUnlock, l.ManualLockOverride,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create level: %w", err)
	}
	return created, nil
}

// SetLockOverride sets or clears (nil) the manual lock override of a level.
func (r *ContentRepository) SetLockOverride(ctx context.Context, levelID int64, override *bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE levels SET manual_lock_override = $2 WHERE id = $1`, levelID, override,
	)
	if err != nil {
		return fmt.Errorf("failed to set lock override: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLevelNotFound
	}
	return nil
}

// CreateActivity inserts an activity into a level.
func (r *ContentRepository) CreateActivity(ctx context.Context, levelID int64, title string) (*model.Activity, error) {
	var a model.Activity
	err := r.pool.QueryRow(ctx,
		`INSERT INTO activities (level_id, title) VALUES ($1, $2) RETURNING id, level_id, title`,
		levelID, title,
	).Scan(&a.ID, &a.LevelID, &a.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return &a, nil
}

// GetActivity returns ErrActivityNotFound if the activity does not exist.
func (r *ContentRepository) GetActivity(ctx context.Context, activityID int64) (*model.Activity, error) {
	var a model.Activity
	err := r.pool.QueryRow(ctx,
		`SELECT id, level_id, title FROM activities WHERE id = $1`, activityID,
	).Scan(&a.ID, &a.LevelID, &a.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &a, nil
}

// RecordSubmission stores a submission. A nil grade means not yet graded.
func (r *ContentRepository) RecordSubmission(ctx context.Context, studentID, activityID int64, grade *float64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (student_id, activity_id, grade) VALUES ($1, $2, $3) RETURNING id`,
		studentID, activityID, grade,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record submission: %w", err)
	}
	return id, nil
}

// AssignModule starts the unlock clock of a module for a student. Reassigning
// keeps the first timestamp.
func (r *ContentRepository) AssignModule(ctx context.Context, studentID, moduleID int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO module_assignments (student_id, module_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, module_id) DO NOTHING
	`, studentID, moduleID, at)
	if err != nil {
		return fmt.Errorf("failed to assign module: %w", err)
	}
	return nil
}

// RecordAttendance stores whether the student attended a level's session.
func (r *ContentRepository) RecordAttendance(ctx context.Context, studentID, levelID int64, attended bool, date time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (student_id, level_id, attended, recovered, date)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (student_id, level_id) DO UPDATE
		SET attended = EXCLUDED.attended, date = EXCLUDED.date
	`, studentID, levelID, attended, date)
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w", err)
	}
	return nil
}

// GetAttendance returns nil when no attendance row exists.
func (r *ContentRepository) GetAttendance(ctx context.Context, studentID, levelID int64) (*model.Attendance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id, level_id, attended, recovered, date
		FROM attendance WHERE student_id = $1 AND level_id = $2
	`, studentID, levelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var a model.Attendance
	if err := rows.Scan(&a.StudentID, &a.LevelID, &a.Attended, &a.Recovered, &a.Date); err != nil {
		return nil, fmt.Errorf("failed to scan attendance: %w", err)
	}
	return &a, nil
}
