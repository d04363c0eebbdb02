package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"learnquest/internal/model"
)

// SubmissionKind is how a submission is evaluated.
type SubmissionKind string

// Submission kinds.
const (
	SubmissionGraded SubmissionKind = "GRADED"
	SubmissionRAG    SubmissionKind = "RAG"
	SubmissionHA     SubmissionKind = "HA"
)

// ParseSubmissionKind maps a user-supplied name to a kind, defaulting to graded.
func ParseSubmissionKind(s string) SubmissionKind {
	switch SubmissionKind(s) {
	case SubmissionRAG, SubmissionHA:
		return SubmissionKind(s)
	default:
		return SubmissionGraded
	}
}

// Evaluate returns the grade of a submission. Only graded submissions carry
// a grade of their own; the RAG and HA evaluators do not exist and return
// ErrUnimplemented.
func (k SubmissionKind) Evaluate(grade float64) (float64, error) {
	switch k {
	case SubmissionGraded:
		return grade, nil
	default:
		return 0, fmt.Errorf("%s evaluation: %w", k, ErrUnimplemented)
	}
}

// GradeResult is what grading a submission changed.
type GradeResult struct {
	SubmissionID int64
	Level        *LevelProgressResult
}

// SubmissionService records graded work and drives level progress from it.
type SubmissionService struct {
	submissions SubmissionStore
	levels      *LevelService
	missions    MissionProgressor
}

// NewSubmissionService creates a new SubmissionService instance.
func NewSubmissionService(submissions SubmissionStore, levels *LevelService, missions MissionProgressor) *SubmissionService {
	return &SubmissionService{submissions: submissions, levels: levels, missions: missions}
}

// MaxGrade is the largest grade the submissions table can store.
const MaxGrade = 999.99

// GradeSubmission evaluates and stores a submission, recalculates the
// activity's level and advances COMPLETE_ACTIVITY missions.
func (s *SubmissionService) GradeSubmission(ctx context.Context, studentID, activityID int64, kind SubmissionKind, grade float64) (*GradeResult, error) {
	value, err := kind.Evaluate(grade)
	if err != nil {
		return nil, err
	}
	if value < 0 || value > MaxGrade {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidGrade, value)
	}

	activity, err := s.submissions.GetActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to grade submission: %w", err)
	}

	id, err := s.submissions.RecordSubmission(ctx, studentID, activityID, &value)
	if err != nil {
		return nil, fmt.Errorf("failed to grade submission: %w", err)
	}

	progress, err := s.levels.CalculateLevelProgress(ctx, studentID, activity.LevelID)
	if err != nil {
		return nil, err
	}

	if err := s.missions.UpdateMissionProgress(ctx, studentID, model.MissionCompleteActivity, 1); err != nil {
		return nil, err
	}

	log.Debug().
		Int64("student_id", studentID).
		Int64("activity_id", activityID).
		Float64("grade", value).
		Msg("Submission graded")

	return &GradeResult{SubmissionID: id, Level: progress}, nil
}
