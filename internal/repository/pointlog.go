package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"learnquest/internal/model"
)

// PointLogRepository appends and queries the XP audit log.
type PointLogRepository struct {
	pool *pgxpool.Pool
}

// NewPointLogRepository creates a new PointLogRepository instance.
func NewPointLogRepository(pool *pgxpool.Pool) *PointLogRepository {
	return &PointLogRepository{pool: pool}
}

// Append records an award with the nominal amount.
func (r *PointLogRepository) Append(ctx context.Context, studentID, amount int64, reason string) (*model.PointLogEntry, error) {
	return r.AppendAt(ctx, studentID, amount, reason, time.Now())
}

// AppendAt records an award with an explicit timestamp.
func (r *PointLogRepository) AppendAt(ctx context.Context, studentID, amount int64, reason string, at time.Time) (*model.PointLogEntry, error) {
	return appendPointLog(ctx, r.pool, studentID, amount, reason, at)
}

func appendPointLog(ctx context.Context, q queryRower, studentID, amount int64, reason string, at time.Time) (*model.PointLogEntry, error) {
	const query = `
		INSERT INTO point_log (student_id, amount, reason, earned_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, student_id, amount, reason, earned_at
	`

	var e model.PointLogEntry
	err := q.QueryRow(ctx, query, studentID, amount, reason, at).Scan(
		&e.ID,
		&e.StudentID,
		&e.Amount,
		&e.Reason,
		&e.EarnedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append point log: %w", err)
	}
	return &e, nil
}

// Recent returns the student's latest entries, newest first.
func (r *PointLogRepository) Recent(ctx context.Context, studentID int64, limit int) ([]*model.PointLogEntry, error) {
	const query = `
		SELECT id, student_id, amount, reason, earned_at
		FROM point_log
		WHERE student_id = $1
		ORDER BY earned_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get point log: %w", err)
	}
	defer rows.Close()

	var entries []*model.PointLogEntry
	for rows.Next() {
		var e model.PointLogEntry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Amount, &e.Reason, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan point log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating point log: %w", err)
	}
	return entries, nil
}

// Total sums every logged amount for the student.
func (r *PointLogRepository) Total(ctx context.Context, studentID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM point_log WHERE student_id = $1`,
		studentID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum point log: %w", err)
	}
	return total, nil
}

// TopGainersSince ranks students by logged XP earned at or after since.
// Level is the student's current level.
func (r *PointLogRepository) TopGainersSince(ctx context.Context, since time.Time, limit int) ([]*model.RankEntry, error) {
	const query = `
		SELECT p.student_id, s.username, SUM(p.amount) AS gained, COALESCE(g.current_level, 1)
		FROM point_log p
		JOIN students s ON s.id = p.student_id
		LEFT JOIN student_gamification g ON g.student_id = p.student_id
		WHERE p.earned_at >= $1
		GROUP BY p.student_id, s.username, g.current_level
		HAVING SUM(p.amount) > 0
		ORDER BY gained DESC, p.student_id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top gainers: %w", err)
	}
	defer rows.Close()

	var entries []*model.RankEntry
	for rows.Next() {
		var e model.RankEntry
		if err := rows.Scan(&e.StudentID, &e.Username, &e.XP, &e.Level); err != nil {
			return nil, fmt.Errorf("failed to scan gainer: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gainers: %w", err)
	}
	return entries, nil
}
