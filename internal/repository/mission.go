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

const (
	missionColumns  = `id, type, title, xp_reward, target_value, is_daily, active`
	progressColumns = `id, student_id, mission_id, week_start, current_progress, completed, completed_at, reward_claimed`
)

// MissionRepository persists mission definitions and per-student progress.
//
// A student's row for a mission is the one stamped with the current week,
// falling back to the unscoped row (NULL week_start) daily missions use.
type MissionRepository struct {
	pool *pgxpool.Pool
}

// NewMissionRepository creates a new MissionRepository instance.
func NewMissionRepository(pool *pgxpool.Pool) *MissionRepository {
	return &MissionRepository{pool: pool}
}

func scanMission(row pgx.Row) (*model.Mission, error) {
	var m model.Mission
	if err := row.Scan(&m.ID, &m.Type, &m.Title, &m.XPReward, &m.TargetValue, &m.IsDaily, &m.Active); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanProgress(row pgx.Row) (*model.MissionProgress, error) {
	var p model.MissionProgress
	err := row.Scan(
		&p.ID,
		&p.StudentID,
		&p.MissionID,
		&p.WeekStart,
		&p.CurrentProgress,
		&p.Completed,
		&p.CompletedAt,
		&p.RewardClaimed,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectMissions(rows pgx.Rows) ([]*model.Mission, error) {
	defer rows.Close()

	var missions []*model.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missions: %w", err)
	}
	return missions, nil
}

// Create inserts a mission definition.
func (r *MissionRepository) Create(ctx context.Context, m *model.Mission) (*model.Mission, error) {
	const query = `
		INSERT INTO missions (type, title, xp_reward, target_value, is_daily, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + missionColumns

	created, err := scanMission(r.pool.QueryRow(ctx, query,
		m.Type, m.Title, m.XPReward, m.TargetValue, m.IsDaily, m.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}
	return created, nil
}

// GetByID returns ErrMissionNotFound if the mission does not exist.
func (r *MissionRepository) GetByID(ctx context.Context, id int64) (*model.Mission, error) {
	m, err := scanMission(r.pool.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMissionNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return m, nil
}

// ListActiveByTypes returns active missions of any of the given types.
func (r *MissionRepository) ListActiveByTypes(ctx context.Context, types ...string) ([]*model.Mission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE active AND type = ANY($1) ORDER BY id`,
		types,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	return collectMissions(rows)
}

// FindProgress returns the student's row for a mission, or nil.
func (r *MissionRepository) FindProgress(ctx context.Context, studentID, missionID int64, weekStart time.Time) (*model.MissionProgress, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM mission_progress
		WHERE student_id = $1 AND mission_id = $2 AND (week_start = $3 OR week_start IS NULL)
		ORDER BY week_start DESC NULLS LAST
		LIMIT 1
	`

	p, err := scanProgress(r.pool.QueryRow(ctx, query, studentID, missionID, weekStart))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find mission progress: %w", err)
	}
	return p, nil
}

// ProgressIncrement describes one counter bump.
type ProgressIncrement struct {
	By     int
	Target int
	At     time.Time
}

// IncrementProgress adds to a row that is not completed yet and completes it
// once the target is reached. Returns ErrNoRowsAffected for a completed row.
func (r *MissionRepository) IncrementProgress(ctx context.Context, progressID int64, inc ProgressIncrement) (*model.MissionProgress, error) {
	query := `
		UPDATE mission_progress
		SET current_progress = current_progress + $2,
		    completed = current_progress + $2 >= $3,
		    completed_at = CASE WHEN current_progress + $2 >= $3 THEN COALESCE(completed_at, $4) ELSE completed_at END
		WHERE id = $1 AND NOT completed
		RETURNING ` + progressColumns

	p, err := scanProgress(r.pool.QueryRow(ctx, query, progressID, inc.By, inc.Target, inc.At))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRowsAffected
		}
		return nil, fmt.Errorf("failed to increment mission progress: %w", err)
	}
	return p, nil
}

// CreateDailyProgress creates the unscoped row of a daily mission. A row
// created concurrently is incremented instead while it is not completed.
func (r *MissionRepository) CreateDailyProgress(ctx context.Context, studentID, missionID int64, inc ProgressIncrement) (*model.MissionProgress, error) {
	query := `
		INSERT INTO mission_progress AS mp (student_id, mission_id, week_start, current_progress, completed, completed_at, reward_claimed)
		VALUES ($1, $2, NULL, $3, $3 >= $4, CASE WHEN $3 >= $4 THEN $5::timestamptz END, FALSE)
		ON CONFLICT ON CONSTRAINT uq_mission_progress_week DO UPDATE
		SET current_progress = mp.current_progress + EXCLUDED.current_progress,
		    completed = mp.current_progress + EXCLUDED.current_progress >= $4,
		    completed_at = CASE WHEN mp.current_progress + EXCLUDED.current_progress >= $4 THEN $5::timestamptz END
		WHERE NOT mp.completed
		RETURNING ` + progressColumns

	p, err := scanProgress(r.pool.QueryRow(ctx, query, studentID, missionID, inc.By, inc.Target, inc.At))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRowsAffected
		}
		return nil, fmt.Errorf("failed to create mission progress: %w", err)
	}
	return p, nil
}

// HasWeek reports whether the student has any row stamped with weekStart.
func (r *MissionRepository) HasWeek(ctx context.Context, studentID int64, weekStart time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM mission_progress WHERE student_id = $1 AND week_start = $2)`,
		studentID, weekStart,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check weekly missions: %w", err)
	}
	return exists, nil
}

// SeedWeek creates zero-progress rows stamped with weekStart and returns how
// many were inserted. Existing rows are left alone.
func (r *MissionRepository) SeedWeek(ctx context.Context, studentID int64, missionIDs []int64, weekStart time.Time) (int64, error) {
	if len(missionIDs) == 0 {
		return 0, nil
	}

	result, err := r.pool.Exec(ctx, `
		INSERT INTO mission_progress (student_id, mission_id, week_start, current_progress, completed, reward_claimed)
		SELECT $1, m, $3, 0, FALSE, FALSE FROM unnest($2::bigint[]) AS m
		ON CONFLICT ON CONSTRAINT uq_mission_progress_week DO NOTHING
	`, studentID, missionIDs, weekStart)
	if err != nil {
		return 0, fmt.Errorf("failed to seed weekly missions: %w", err)
	}
	return result.RowsAffected(), nil
}

// Claim marks the student's completed, unclaimed row as claimed. Only one
// concurrent caller can succeed; the others get ErrNoRowsAffected.
func (r *MissionRepository) Claim(ctx context.Context, studentID, missionID int64, weekStart time.Time) (*model.MissionProgress, error) {
	query := `
		WITH target AS (
			SELECT id FROM mission_progress
			WHERE student_id = $1 AND mission_id = $2 AND (week_start = $3 OR week_start IS NULL)
			ORDER BY week_start DESC NULLS LAST
			LIMIT 1
		)
		UPDATE mission_progress mp
		SET reward_claimed = TRUE
		FROM target
		WHERE mp.id = target.id AND mp.completed AND NOT mp.reward_claimed
		RETURNING mp.id, mp.student_id, mp.mission_id, mp.week_start, mp.current_progress,
		          mp.completed, mp.completed_at, mp.reward_claimed
	`

	p, err := scanProgress(r.pool.QueryRow(ctx, query, studentID, missionID, weekStart))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRowsAffected
		}
		return nil, fmt.Errorf("failed to claim mission: %w", err)
	}
	return p, nil
}

// ListForStudent returns every active mission with the student's row, if any.
func (r *MissionRepository) ListForStudent(ctx context.Context, studentID int64, weekStart time.Time) ([]*model.MissionView, error) {
	const query = `
		SELECT m.id, m.type, m.title, m.xp_reward, m.target_value, m.is_daily, m.active,
		       p.id, p.week_start, p.current_progress, p.completed, p.completed_at, p.reward_claimed
		FROM missions m
		LEFT JOIN LATERAL (
			SELECT * FROM mission_progress
			WHERE student_id = $1 AND mission_id = m.id AND (week_start = $2 OR week_start IS NULL)
			ORDER BY week_start DESC NULLS LAST
			LIMIT 1
		) p ON TRUE
		WHERE m.active
		ORDER BY m.id
	`

	rows, err := r.pool.Query(ctx, query, studentID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list student missions: %w", err)
	}
	defer rows.Close()

	var views []*model.MissionView
	for rows.Next() {
		var (
			m           model.Mission
			progressID  *int64
			weekStartAt *time.Time
			current     *int
			completed   *bool
			completedAt *time.Time
			claimed     *bool
		)
		err := rows.Scan(
			&m.ID, &m.Type, &m.Title, &m.XPReward, &m.TargetValue, &m.IsDaily, &m.Active,
			&progressID, &weekStartAt, &current, &completed, &completedAt, &claimed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student mission: %w", err)
		}

		view := &model.MissionView{Mission: &m}
		if progressID != nil {
			view.Progress = &model.MissionProgress{
				ID:              *progressID,
				StudentID:       studentID,
				MissionID:       m.ID,
				WeekStart:       weekStartAt,
				CurrentProgress: *current,
				Completed:       *completed,
				CompletedAt:     completedAt,
				RewardClaimed:   *claimed,
			}
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student missions: %w", err)
	}
	return views, nil
}
