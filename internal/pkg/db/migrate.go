package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is the subset of pgxpool.Pool and pgx.Tx used by Migrate.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

// mission_progress uniqueness relies on NULLS NOT DISTINCT, PostgreSQL 15 or newer.
var migrations = []migration{
	{"students", `
		CREATE TABLE IF NOT EXISTS students (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT UNIQUE,
			username VARCHAR(255) NOT NULL DEFAULT '',
			plan_id INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"student_gamification", `
		CREATE TABLE IF NOT EXISTS student_gamification (
			student_id BIGINT PRIMARY KEY REFERENCES students(id) ON DELETE CASCADE,
			xp_total BIGINT NOT NULL DEFAULT 0 CHECK (xp_total >= 0),
			current_level INT NOT NULL DEFAULT 1 CHECK (current_level >= 1),
			available_points BIGINT NOT NULL DEFAULT 0,
			streak_days INT NOT NULL DEFAULT 0 CHECK (streak_days >= 0),
			last_streak_update TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_gamification_xp ON student_gamification(xp_total DESC);
	`},
	{"point_log", `
		CREATE TABLE IF NOT EXISTS point_log (
			id BIGSERIAL PRIMARY KEY,
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			reason VARCHAR(255) NOT NULL,
			earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_point_log_student_time ON point_log(student_id, earned_at DESC);
		CREATE INDEX IF NOT EXISTS idx_point_log_time ON point_log(earned_at DESC);
	`},
	{"modules_levels", `
		CREATE TABLE IF NOT EXISTS modules (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS levels (
			id BIGSERIAL PRIMARY KEY,
			module_id BIGINT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			"order" INT NOT NULL,
			days_to_unlock INT,
			manual_lock_override BOOLEAN,
			UNIQUE (module_id, "order")
		);
		CREATE TABLE IF NOT EXISTS module_assignments (
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			module_id BIGINT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
			assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (student_id, module_id)
		);
	`},
	{"activities_submissions", `
		CREATE TABLE IF NOT EXISTS activities (
			id BIGSERIAL PRIMARY KEY,
			level_id BIGINT NOT NULL REFERENCES levels(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS submissions (
			id BIGSERIAL PRIMARY KEY,
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			activity_id BIGINT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
			grade NUMERIC(5,2),
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_student_activity ON submissions(student_id, activity_id);
	`},
	{"level_progress_attendance", `
		CREATE TABLE IF NOT EXISTS level_progress (
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			level_id BIGINT NOT NULL REFERENCES levels(id) ON DELETE CASCADE,
			percent_complete INT NOT NULL DEFAULT 0 CHECK (percent_complete BETWEEN 0 AND 100),
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			PRIMARY KEY (student_id, level_id)
		);
		CREATE TABLE IF NOT EXISTS attendance (
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			level_id BIGINT NOT NULL REFERENCES levels(id) ON DELETE CASCADE,
			attended BOOLEAN NOT NULL DEFAULT FALSE,
			recovered BOOLEAN NOT NULL DEFAULT FALSE,
			date DATE NOT NULL DEFAULT CURRENT_DATE,
			PRIMARY KEY (student_id, level_id)
		);
	`},
	{"missions", `
		CREATE TABLE IF NOT EXISTS missions (
			id BIGSERIAL PRIMARY KEY,
			type VARCHAR(50) NOT NULL,
			title VARCHAR(255) NOT NULL,
			xp_reward BIGINT NOT NULL DEFAULT 0,
			target_value INT NOT NULL DEFAULT 1,
			is_daily BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE INDEX IF NOT EXISTS idx_missions_type_active ON missions(type) WHERE active;
		CREATE TABLE IF NOT EXISTS mission_progress (
			id BIGSERIAL PRIMARY KEY,
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			mission_id BIGINT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
			week_start DATE,
			current_progress INT NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			reward_claimed BOOLEAN NOT NULL DEFAULT FALSE,
			CONSTRAINT uq_mission_progress_week UNIQUE NULLS NOT DISTINCT (student_id, mission_id, week_start)
		);
	`},
	{"achievements", `
		CREATE TABLE IF NOT EXISTS achievements (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			condition_type VARCHAR(50) NOT NULL,
			condition_value BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS achievement_unlocks (
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			achievement_id BIGINT NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (student_id, achievement_id)
		);
	`},
}

// Migrate applies the schema. Every statement is idempotent.
// The optional student_rankings and certificates tables are not created here.
func Migrate(ctx context.Context, conn Execer) error {
	log.Info().Int("count", len(migrations)).Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", i+1, m.name, err)
		}
		log.Debug().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
