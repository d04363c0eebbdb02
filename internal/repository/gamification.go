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

const gamificationColumns = `student_id, xp_total, current_level, available_points, streak_days, last_streak_update, updated_at`

// GamificationRepository persists the per-student XP, level and streak record.
type GamificationRepository struct {
	pool *pgxpool.Pool
}

// NewGamificationRepository creates a new GamificationRepository instance.
func NewGamificationRepository(pool *pgxpool.Pool) *GamificationRepository {
	return &GamificationRepository{pool: pool}
}

func scanGamification(row pgx.Row) (*model.Gamification, error) {
	var g model.Gamification
	err := row.Scan(
		&g.StudentID,
		&g.XPTotal,
		&g.CurrentLevel,
		&g.AvailablePoints,
		&g.StreakDays,
		&g.LastStreakUpdate,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Get returns ErrRecordNotFound if the student has no record yet.
func (r *GamificationRepository) Get(ctx context.Context, studentID int64) (*model.Gamification, error) {
	query := `SELECT ` + gamificationColumns + ` FROM student_gamification WHERE student_id = $1`

	g, err := scanGamification(r.pool.QueryRow(ctx, query, studentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get gamification record: %w", err)
	}
	return g, nil
}

// queryRower is satisfied by the pool and by a transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AddXP adds amount to xp_total and available_points, creating the record at
// level 1 when absent. It returns the new XP total and the level stored
// before this call; a freshly created record reports level 1.
func (r *GamificationRepository) AddXP(ctx context.Context, studentID, amount int64) (xpTotal int64, previousLevel int, err error) {
	return addXP(ctx, r.pool, studentID, amount)
}

func addXP(ctx context.Context, q queryRower, studentID, amount int64) (xpTotal int64, previousLevel int, err error) {
	const query = `
		INSERT INTO student_gamification AS g (student_id, xp_total, current_level, available_points, streak_days, updated_at)
		VALUES ($1, $2, 1, $2, 0, NOW())
		ON CONFLICT (student_id) DO UPDATE
		SET xp_total = g.xp_total + EXCLUDED.xp_total,
		    available_points = g.available_points + EXCLUDED.available_points,
		    updated_at = NOW()
		RETURNING xp_total, current_level
	`

	if err := q.QueryRow(ctx, query, studentID, amount).Scan(&xpTotal, &previousLevel); err != nil {
		return 0, 0, fmt.Errorf("failed to add xp: %w", err)
	}
	return xpTotal, previousLevel, nil
}

// RaiseLevel sets current_level to level unless a higher level is already
// stored, and returns the stored level.
func (r *GamificationRepository) RaiseLevel(ctx context.Context, studentID int64, level int) (int, error) {
	return raiseLevel(ctx, r.pool, studentID, level)
}

func raiseLevel(ctx context.Context, q queryRower, studentID int64, level int) (int, error) {
	const query = `
		UPDATE student_gamification
		SET current_level = GREATEST(current_level, $2), updated_at = NOW()
		WHERE student_id = $1
		RETURNING current_level
	`

	var stored int
	if err := q.QueryRow(ctx, query, studentID, level).Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrRecordNotFound
		}
		return 0, fmt.Errorf("failed to raise level: %w", err)
	}
	return stored, nil
}

// XPCredit is one XP award. Nominal goes to the point log and Credited to the
// XP total.
type XPCredit struct {
	StudentID int64
	Nominal   int64
	Credited  int64
	Reason    string
	// LevelFor maps an XP total to its level.
	LevelFor func(xpTotal int64) int
}

// CreditResult is the record state after a credit.
type CreditResult struct {
	XPTotal       int64
	PreviousLevel int
	Level         int
}

// Credit appends the point-log entry, adds the XP and raises the level in one
// transaction, so a failed step leaves none of them behind.
func (r *GamificationRepository) Credit(ctx context.Context, c XPCredit) (res *CreditResult, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin xp credit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = appendPointLog(ctx, tx, c.StudentID, c.Nominal, c.Reason, time.Now()); err != nil {
		return nil, err
	}

	res = &CreditResult{}
	res.XPTotal, res.PreviousLevel, err = addXP(ctx, tx, c.StudentID, c.Credited)
	if err != nil {
		return nil, err
	}

	res.Level = res.PreviousLevel
	if next := c.LevelFor(res.XPTotal); next > res.PreviousLevel {
		if res.Level, err = raiseLevel(ctx, tx, c.StudentID, next); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit xp credit: %w", err)
	}
	return res, nil
}

// SaveStreak writes the streak counter and its timestamp, creating a zero-XP
// record when absent.
func (r *GamificationRepository) SaveStreak(ctx context.Context, studentID int64, streakDays int, at time.Time) (*model.Gamification, error) {
	const query = `
		INSERT INTO student_gamification AS g (student_id, xp_total, current_level, available_points, streak_days, last_streak_update, updated_at)
		VALUES ($1, 0, 1, 0, $2, $3, NOW())
		ON CONFLICT (student_id) DO UPDATE
		SET streak_days = EXCLUDED.streak_days,
		    last_streak_update = EXCLUDED.last_streak_update,
		    updated_at = NOW()
		RETURNING ` + gamificationColumns

	g, err := scanGamification(r.pool.QueryRow(ctx, query, studentID, streakDays, at))
	if err != nil {
		return nil, fmt.Errorf("failed to save streak: %w", err)
	}
	return g, nil
}

// TopByXP returns the students with the most XP.
func (r *GamificationRepository) TopByXP(ctx context.Context, limit int) ([]*model.RankEntry, error) {
	const query = `
		SELECT g.student_id, s.username, g.xp_total, g.current_level
		FROM student_gamification g
		JOIN students s ON s.id = g.student_id
		ORDER BY g.xp_total DESC, g.student_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top students: %w", err)
	}
	defer rows.Close()

	var entries []*model.RankEntry
	for rows.Next() {
		var e model.RankEntry
		if err := rows.Scan(&e.StudentID, &e.Username, &e.XP, &e.Level); err != nil {
			return nil, fmt.Errorf("failed to scan rank entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rank entries: %w", err)
	}
	return entries, nil
}
