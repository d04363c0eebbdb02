package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"learnquest/internal/model"
	"learnquest/internal/progression"
	"learnquest/internal/repository"
)

// ClaimResult is the outcome of a reward claim.
type ClaimResult struct {
	Success   bool
	XPAwarded int64
}

// MissionService tracks mission progress and pays out rewards.
type MissionService struct {
	students  StudentStore
	missions  MissionStore
	xp        Awarder
	proPlanID int
	location  *time.Location
	now       Clock
}

// NewMissionService creates a new MissionService instance.
// Weeks start on Monday in location.
func NewMissionService(
	students StudentStore,
	missions MissionStore,
	xp Awarder,
	proPlanID int,
	location *time.Location,
	now Clock,
) *MissionService {
	if location == nil {
		location = time.UTC
	}
	return &MissionService{
		students:  students,
		missions:  missions,
		xp:        xp,
		proPlanID: proPlanID,
		location:  location,
		now:       orNow(now),
	}
}

func (s *MissionService) currentWeek() time.Time {
	return progression.WeekStart(s.now().In(s.location))
}

// SyncWeeklyMissions seeds this week's missions for a Pro student who has
// none yet and returns how many rows were created.
func (s *MissionService) SyncWeeklyMissions(ctx context.Context, studentID int64) (int64, error) {
	planID, err := s.students.GetPlanID(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("failed to sync weekly missions: %w", err)
	}
	if planID != s.proPlanID {
		return 0, nil
	}

	week := s.currentWeek()
	has, err := s.missions.HasWeek(ctx, studentID, week)
	if err != nil {
		return 0, fmt.Errorf("failed to sync weekly missions: %w", err)
	}
	if has {
		return 0, nil
	}

	weekly, err := s.missions.ListActiveByTypes(ctx, model.WeeklyMissionTypes()...)
	if err != nil {
		return 0, fmt.Errorf("failed to sync weekly missions: %w", err)
	}
	ids := make([]int64, 0, len(weekly))
	for _, m := range weekly {
		ids = append(ids, m.ID)
	}

	seeded, err := s.missions.SeedWeek(ctx, studentID, ids, week)
	if err != nil {
		return 0, fmt.Errorf("failed to sync weekly missions: %w", err)
	}
	if seeded > 0 {
		log.Info().
			Int64("student_id", studentID).
			Time("week_start", week).
			Int64("missions", seeded).
			Msg("Weekly missions seeded")
	}
	return seeded, nil
}

// UpdateMissionProgress adds incrementBy to the student's progress on every
// active mission of missionType. Daily missions get a row on first progress;
// other missions only advance rows that already exist. Completed rows are
// frozen.
func (s *MissionService) UpdateMissionProgress(ctx context.Context, studentID int64, missionType string, incrementBy int) error {
	if incrementBy < 0 {
		return ErrInvalidIncrement
	}

	if _, err := s.SyncWeeklyMissions(ctx, studentID); err != nil {
		return err
	}

	missions, err := s.missions.ListActiveByTypes(ctx, missionType)
	if err != nil {
		return fmt.Errorf("failed to update mission progress: %w", err)
	}

	week := s.currentWeek()
	for _, m := range missions {
		inc := repository.ProgressIncrement{By: incrementBy, Target: m.TargetValue, At: s.now()}

		p, err := s.missions.FindProgress(ctx, studentID, m.ID, week)
		if err != nil {
			return fmt.Errorf("failed to update mission progress: %w", err)
		}

		var updated *model.MissionProgress
		switch {
		case p == nil && m.IsDaily:
			updated, err = s.missions.CreateDailyProgress(ctx, studentID, m.ID, inc)
		case p == nil, p.Completed:
			continue
		default:
			updated, err = s.missions.IncrementProgress(ctx, p.ID, inc)
		}
		if errors.Is(err, repository.ErrNoRowsAffected) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update mission progress: %w", err)
		}

		if updated.Completed && (p == nil || !p.Completed) {
			log.Info().
				Int64("student_id", studentID).
				Int64("mission_id", m.ID).
				Str("type", m.Type).
				Msg("Mission completed")
		}
	}
	return nil
}

// ClaimMissionReward pays out a completed mission once. Missing missions,
// incomplete rows and already claimed rows all yield Success false.
func (s *MissionService) ClaimMissionReward(ctx context.Context, studentID, missionID int64) (*ClaimResult, error) {
	m, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrMissionNotFound) {
			return &ClaimResult{}, nil
		}
		return nil, fmt.Errorf("failed to claim mission: %w", err)
	}

	if _, err := s.missions.Claim(ctx, studentID, missionID, s.currentWeek()); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return &ClaimResult{}, nil
		}
		return nil, fmt.Errorf("failed to claim mission: %w", err)
	}

	award, err := s.xp.AwardXP(ctx, studentID, m.XPReward, "Mission completed: "+m.Title)
	if err != nil {
		log.Error().Err(err).
			Int64("student_id", studentID).
			Int64("mission_id", missionID).
			Msg("Mission marked claimed but reward failed")
		return nil, fmt.Errorf("failed to award mission reward: %w", err)
	}

	log.Info().
		Int64("student_id", studentID).
		Int64("mission_id", missionID).
		Int64("xp", award.XPAwarded).
		Msg("Mission reward claimed")

	return &ClaimResult{Success: true, XPAwarded: award.XPAwarded}, nil
}

// ListMissions returns the active missions with the student's progress.
func (s *MissionService) ListMissions(ctx context.Context, studentID int64) ([]*model.MissionView, error) {
	if _, err := s.SyncWeeklyMissions(ctx, studentID); err != nil {
		return nil, err
	}
	views, err := s.missions.ListForStudent(ctx, studentID, s.currentWeek())
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	return views, nil
}
