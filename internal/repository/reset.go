package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// Per-student deletes, in order. Tables absent from some deployments are
// deleted inside a savepoint so their absence does not abort the reset.
var (
	resetRequired = []string{
		`DELETE FROM achievement_unlocks WHERE student_id = $1`,
		`DELETE FROM mission_progress WHERE student_id = $1`,
		`DELETE FROM level_progress WHERE student_id = $1`,
		`UPDATE attendance SET recovered = FALSE WHERE student_id = $1`,
		`DELETE FROM point_log WHERE student_id = $1`,
	}
	resetOptional = []struct{ table, sql string }{
		{"student_rankings", `DELETE FROM student_rankings WHERE student_id = $1`},
		{"certificates", `DELETE FROM certificates WHERE student_id = $1`},
	}
)

// ResetRepository wipes a student's progression in one transaction.
type ResetRepository struct {
	pool *pgxpool.Pool
}

// NewResetRepository creates a new ResetRepository instance.
func NewResetRepository(pool *pgxpool.Pool) *ResetRepository {
	return &ResetRepository{pool: pool}
}

// ResetStudent deletes every progression row of the student and recreates
// the gamification record at zero. It returns the optional tables that were
// skipped because they do not exist.
func (r *ResetRepository) ResetStudent(ctx context.Context, studentID int64) (skipped []string, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, stmt := range resetRequired {
		if _, err = tx.Exec(ctx, stmt, studentID); err != nil {
			return nil, fmt.Errorf("failed to reset student: %w", err)
		}
	}

	for _, opt := range resetOptional {
		absent, optErr := execInSavepoint(ctx, tx, opt.sql, studentID)
		if optErr != nil {
			err = fmt.Errorf("failed to reset %s: %w", opt.table, optErr)
			return nil, err
		}
		if absent {
			log.Warn().
				Int64("student_id", studentID).
				Str("table", opt.table).
				Msg("Optional table missing, skipped during reset")
			skipped = append(skipped, opt.table)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO student_gamification (student_id, xp_total, current_level, available_points, streak_days, last_streak_update, updated_at)
		VALUES ($1, 0, 1, 0, 0, NULL, NOW())
		ON CONFLICT (student_id) DO UPDATE
		SET xp_total = 0, current_level = 1, available_points = 0,
		    streak_days = 0, last_streak_update = NULL, updated_at = NOW()
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to recreate gamification record: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reset: %w", err)
	}
	return skipped, nil
}

// execInSavepoint runs stmt in a nested transaction. An undefined-table error
// rolls back the savepoint and is reported as absent.
func execInSavepoint(ctx context.Context, tx pgx.Tx, stmt string, args ...any) (absent bool, err error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, err
	}

	if _, err := sp.Exec(ctx, stmt, args...); err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return true, nil
		}
		return false, err
	}
	return false, sp.Commit(ctx)
}
