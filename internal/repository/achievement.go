package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"learnquest/internal/model"
)

// AchievementRepository persists achievement definitions and unlocks.
type AchievementRepository struct {
	pool *pgxpool.Pool
}

// NewAchievementRepository creates a new AchievementRepository instance.
func NewAchievementRepository(pool *pgxpool.Pool) *AchievementRepository {
	return &AchievementRepository{pool: pool}
}

// Create inserts an achievement definition.
func (r *AchievementRepository) Create(ctx context.Context, a *model.Achievement) (*model.Achievement, error) {
	var created model.Achievement
	err := r.pool.QueryRow(ctx, `
		INSERT INTO achievements (title, condition_type, condition_value, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, title, condition_type, condition_value, active
	`, a.Title, a.ConditionType, a.ConditionValue, a.Active).Scan(
		&created.ID, &created.Title, &created.ConditionType, &created.ConditionValue, &created.Active,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create achievement: %w", err)
	}
	return &created, nil
}

// ListLocked returns active achievements the student has not unlocked yet.
func (r *AchievementRepository) ListLocked(ctx context.Context, studentID int64) ([]*model.Achievement, error) {
	const query = `
		SELECT a.id, a.title, a.condition_type, a.condition_value, a.active
		FROM achievements a
		WHERE a.active
		  AND NOT EXISTS (
			SELECT 1 FROM achievement_unlocks u
			WHERE u.achievement_id = a.id AND u.student_id = $1
		  )
		ORDER BY a.id
	`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locked achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*model.Achievement
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.ID, &a.Title, &a.ConditionType, &a.ConditionValue, &a.Active); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		achievements = append(achievements, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return achievements, nil
}

// Unlock records the unlock and reports whether this call created it.
func (r *AchievementRepository) Unlock(ctx context.Context, studentID, achievementID int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO achievement_unlocks (student_id, achievement_id, unlocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (student_id, achievement_id) DO NOTHING
	`, studentID, achievementID)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListUnlocked returns the student's unlocks, most recent first.
func (r *AchievementRepository) ListUnlocked(ctx context.Context, studentID int64) ([]*model.AchievementUnlock, error) {
	const query = `
		SELECT u.student_id, u.achievement_id, a.title, u.unlocked_at
		FROM achievement_unlocks u
		JOIN achievements a ON a.id = u.achievement_id
		WHERE u.student_id = $1
		ORDER BY u.unlocked_at DESC, u.achievement_id
	`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []*model.AchievementUnlock
	for rows.Next() {
		var u model.AchievementUnlock
		if err := rows.Scan(&u.StudentID, &u.AchievementID, &u.Title, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		unlocks = append(unlocks, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unlocks: %w", err)
	}
	return unlocks, nil
}
