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

const levelColumns = `id, module_id, title, "order", days_to_unlock, manual_lock_override`

// LevelRepository reads levels and persists per-student level progress and
// attendance.
type LevelRepository struct {
	pool *pgxpool.Pool
}

// NewLevelRepository creates a new LevelRepository instance.
func NewLevelRepository(pool *pgxpool.Pool) *LevelRepository {
	return &LevelRepository{pool: pool}
}

func scanLevel(row pgx.Row) (*model.Level, error) {
	var l model.Level
	if err := row.Scan(&l.ID, &l.ModuleID, &l.Title, &l.Order, &l.DaysToUnlock, &l.ManualLockOverride); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetByID returns ErrLevelNotFound if the level does not exist.
func (r *LevelRepository) GetByID(ctx context.Context, levelID int64) (*model.Level, error) {
	query := `SELECT ` + levelColumns + ` FROM levels WHERE id = $1`

	l, err := scanLevel(r.pool.QueryRow(ctx, query, levelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLevelNotFound
		}
		return nil, fmt.Errorf("failed to get level: %w", err)
	}
	return l, nil
}

// GetByOrder returns the level at position order of a module.
func (r *LevelRepository) GetByOrder(ctx context.Context, moduleID int64, order int) (*model.Level, error) {
	query := `SELECT ` + levelColumns + ` FROM levels WHERE module_id = $1 AND "order" = $2`

	l, err := scanLevel(r.pool.QueryRow(ctx, query, moduleID, order))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLevelNotFound
		}
		return nil, fmt.Errorf("failed to get level by order: %w", err)
	}
	return l, nil
}

// ListByModule returns a module's levels ascending by order.
func (r *LevelRepository) ListByModule(ctx context.Context, moduleID int64) ([]*model.Level, error) {
	query := `SELECT ` + levelColumns + ` FROM levels WHERE module_id = $1 ORDER BY "order" ASC`

	rows, err := r.pool.Query(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	defer rows.Close()

	var levels []*model.Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating levels: %w", err)
	}
	return levels, nil
}

// AssignedAt returns when the module was assigned to the student, or nil.
func (r *LevelRepository) AssignedAt(ctx context.Context, studentID, moduleID int64) (*time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT assigned_at FROM module_assignments WHERE student_id = $1 AND module_id = $2`,
		studentID, moduleID,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get module assignment: %w", err)
	}
	return &at, nil
}

// CountTasks returns the level's activity count and the number of graded
// submissions the student made on its activities. Every graded submission
// counts, so completed may exceed total.
func (r *LevelRepository) CountTasks(ctx context.Context, studentID, levelID int64) (completed, total int, err error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM activities WHERE level_id = $2),
			(SELECT COUNT(*)
			   FROM submissions s
			   JOIN activities a ON a.id = s.activity_id
			  WHERE a.level_id = $2 AND s.student_id = $1 AND s.grade IS NOT NULL)
	`

	if err := r.pool.QueryRow(ctx, query, studentID, levelID).Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return completed, total, nil
}

// GetProgress returns nil when the student has no progress row for the level.
func (r *LevelRepository) GetProgress(ctx context.Context, studentID, levelID int64) (*model.LevelProgress, error) {
	const query = `
		SELECT student_id, level_id, percent_complete, completed, completed_at
		FROM level_progress
		WHERE student_id = $1 AND level_id = $2
	`

	var p model.LevelProgress
	err := r.pool.QueryRow(ctx, query, studentID, levelID).Scan(
		&p.StudentID, &p.LevelID, &p.PercentComplete, &p.Completed, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get level progress: %w", err)
	}
	return &p, nil
}

// ListProgress returns the student's progress rows for a module keyed by level id.
func (r *LevelRepository) ListProgress(ctx context.Context, studentID, moduleID int64) (map[int64]*model.LevelProgress, error) {
	const query = `
		SELECT p.student_id, p.level_id, p.percent_complete, p.completed, p.completed_at
		FROM level_progress p
		JOIN levels l ON l.id = p.level_id
		WHERE p.student_id = $1 AND l.module_id = $2
	`

	rows, err := r.pool.Query(ctx, query, studentID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list level progress: %w", err)
	}
	defer rows.Close()

	progress := make(map[int64]*model.LevelProgress)
	for rows.Next() {
		var p model.LevelProgress
		if err := rows.Scan(&p.StudentID, &p.LevelID, &p.PercentComplete, &p.Completed, &p.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan level progress: %w", err)
		}
		progress[p.LevelID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating level progress: %w", err)
	}
	return progress, nil
}

// LevelProgressUpsert carries the values written by UpsertProgress.
type LevelProgressUpsert struct {
	StudentID int64
	LevelID   int64
	Percent   int
	Completed bool
	At        time.Time
}

// UpsertProgress writes the percentage and completion. A stored completion and
// its timestamp are never cleared. Returns the stored row.
func (r *LevelRepository) UpsertProgress(ctx context.Context, u LevelProgressUpsert) (*model.LevelProgress, error) {
	const query = `
		INSERT INTO level_progress AS p (student_id, level_id, percent_complete, completed, completed_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN $5::timestamptz END)
		ON CONFLICT (student_id, level_id) DO UPDATE
		SET percent_complete = EXCLUDED.percent_complete,
		    completed = p.completed OR EXCLUDED.completed,
		    completed_at = COALESCE(p.completed_at, EXCLUDED.completed_at)
		RETURNING student_id, level_id, percent_complete, completed, completed_at
	`

	var p model.LevelProgress
	err := r.pool.QueryRow(ctx, query, u.StudentID, u.LevelID, u.Percent, u.Completed, u.At).Scan(
		&p.StudentID, &p.LevelID, &p.PercentComplete, &p.Completed, &p.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert level progress: %w", err)
	}
	return &p, nil
}

// EnsureProgress inserts a zero-progress row if none exists and reports
// whether it did.
func (r *LevelRepository) EnsureProgress(ctx context.Context, studentID, levelID int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO level_progress (student_id, level_id, percent_complete, completed)
		VALUES ($1, $2, 0, FALSE)
		ON CONFLICT (student_id, level_id) DO NOTHING
	`, studentID, levelID)
	if err != nil {
		return false, fmt.Errorf("failed to ensure level progress: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// RecoverAttendance flips a missed, unrecovered attendance row to recovered
// and reports whether one was flipped.
func (r *LevelRepository) RecoverAttendance(ctx context.Context, studentID, levelID int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE attendance
		SET recovered = TRUE
		WHERE student_id = $1 AND level_id = $2 AND NOT attended AND NOT recovered
	`, studentID, levelID)
	if err != nil {
		return false, fmt.Errorf("failed to recover attendance: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
