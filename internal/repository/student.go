package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnquest/internal/model"
)

const studentColumns = `id, telegram_id, username, plan_id, created_at`

// StudentRepository reads and writes student profiles.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository instance.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	var s model.Student
	if err := row.Scan(&s.ID, &s.TelegramID, &s.Username, &s.PlanID, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a student. telegramID may be nil for students that never
// talked to the bot.
func (r *StudentRepository) Create(ctx context.Context, telegramID *int64, username string, planID int) (*model.Student, error) {
	const query = `
		INSERT INTO students (telegram_id, username, plan_id)
		VALUES ($1, $2, $3)
		RETURNING ` + studentColumns

	s, err := scanStudent(r.pool.QueryRow(ctx, query, telegramID, username, planID))
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return s, nil
}

// GetByID returns ErrStudentNotFound if the student does not exist.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	s, err := scanStudent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

// GetByTelegramID returns ErrStudentNotFound if no student is linked to the chat user.
func (r *StudentRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE telegram_id = $1`

	s, err := scanStudent(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student by telegram id: %w", err)
	}
	return s, nil
}

// GetOrCreateByTelegram returns the student linked to telegramID, creating a
// Basic-plan student on first contact. The bool reports creation.
func (r *StudentRepository) GetOrCreateByTelegram(ctx context.Context, telegramID int64, username string) (*model.Student, bool, error) {
	s, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, ErrStudentNotFound) {
		return nil, false, err
	}

	const query = `
		INSERT INTO students (telegram_id, username)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + studentColumns

	s, err = scanStudent(r.pool.QueryRow(ctx, query, telegramID, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race to a concurrent insert.
			s, err = r.GetByTelegramID(ctx, telegramID)
			return s, false, err
		}
		return nil, false, fmt.Errorf("failed to create student: %w", err)
	}
	return s, true, nil
}

// GetPlanID returns the plan the student is subscribed to.
func (r *StudentRepository) GetPlanID(ctx context.Context, id int64) (int, error) {
	var planID int
	err := r.pool.QueryRow(ctx, `SELECT plan_id FROM students WHERE id = $1`, id).Scan(&planID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStudentNotFound
		}
		return 0, fmt.Errorf("failed to get plan: %w", err)
	}
	return planID, nil
}

// SetPlan changes the student's plan.
func (r *StudentRepository) SetPlan(ctx context.Context, id int64, planID int) error {
	result, err := r.pool.Exec(ctx, `UPDATE students SET plan_id = $2 WHERE id = $1`, id, planID)
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// UpdateUsername keeps the stored username in sync with the chat profile.
func (r *StudentRepository) UpdateUsername(ctx context.Context, id int64, username string) error {
	result, err := r.pool.Exec(ctx, `UPDATE students SET username = $2 WHERE id = $1`, id, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}
