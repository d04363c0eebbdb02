package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"learnquest/internal/model"
)

// StudentService links chat users to student profiles.
type StudentService struct {
	students StudentStore
}

// NewStudentService creates a new StudentService instance.
func NewStudentService(students StudentStore) *StudentService {
	return &StudentService{students: students}
}

// EnsureStudent returns the student for a chat user, creating one on first
// contact, and keeps the username current.
func (s *StudentService) EnsureStudent(ctx context.Context, telegramID int64, username string) (*model.Student, bool, error) {
	student, created, err := s.students.GetOrCreateByTelegram(ctx, telegramID, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure student: %w", err)
	}

	if !created && username != "" && student.Username != username {
		if err := s.students.UpdateUsername(ctx, student.ID, username); err != nil {
			log.Warn().Err(err).Int64("student_id", student.ID).Msg("Failed to update username")
		} else {
			student.Username = username
		}
	}
	return student, created, nil
}

// GetStudent returns a student by id.
func (s *StudentService) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	return s.students.GetByID(ctx, id)
}
