// Package model defines the data models for the progression engine.
package model

import "time"

// Student is the user-profile row the engine reads the plan from.
type Student struct {
	ID         int64     `db:"id"`
	TelegramID *int64    `db:"telegram_id"`
	Username   string    `db:"username"`
	PlanID     int       `db:"plan_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Gamification is the per-student XP, level, currency and streak record.
// CurrentLevel is always the largest level whose threshold is <= XPTotal.
type Gamification struct {
	StudentID        int64      `db:"student_id"`
	XPTotal          int64      `db:"xp_total"`
	CurrentLevel     int        `db:"current_level"`
	AvailablePoints  int64      `db:"available_points"`
	StreakDays       int        `db:"streak_days"`
	LastStreakUpdate *time.Time `db:"last_streak_update"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// PointLogEntry is an append-only audit row of an XP award.
// Amount is the nominal amount requested, before any plan multiplier.
type PointLogEntry struct {
	ID        int64     `db:"id"`
	StudentID int64     `db:"student_id"`
	Amount    int64     `db:"amount"`
	Reason    string    `db:"reason"`
	EarnedAt  time.Time `db:"earned_at"`
}

// Module groups ordered levels.
type Module struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

// Activity is a gradable task inside a level.
type Activity struct {
	ID      int64  `db:"id"`
	LevelID int64  `db:"level_id"`
	Title   string `db:"title"`
}

// Level is an ordered content unit inside a module.
type Level struct {
	ID                 int64  `db:"id"`
	ModuleID           int64  `db:"module_id"`
	Title              string `db:"title"`
	Order              int    `db:"order"`
	DaysToUnlock       *int   `db:"days_to_unlock"`
	ManualLockOverride *bool  `db:"manual_lock_override"`
}

// LevelProgress is a student's completion state for one level.
// Completed never flips back to false and CompletedAt is set once.
type LevelProgress struct {
	StudentID       int64      `db:"student_id"`
	LevelID         int64      `db:"level_id"`
	PercentComplete int        `db:"percent_complete"`
	Completed       bool       `db:"completed"`
	CompletedAt     *time.Time `db:"completed_at"`
}

// Attendance records whether a student attended a level's session.
type Attendance struct {
	StudentID int64     `db:"student_id"`
	LevelID   int64     `db:"level_id"`
	Attended  bool      `db:"attended"`
	Recovered bool      `db:"recovered"`
	Date      time.Time `db:"date"`
}

// Mission is a global objective definition.
type Mission struct {
	ID          int64  `db:"id"`
	Type        string `db:"type"`
	Title       string `db:"title"`
	XPReward    int64  `db:"xp_reward"`
	TargetValue int    `db:"target_value"`
	IsDaily     bool   `db:"is_daily"`
	Active      bool   `db:"active"`
}

// MissionProgress is a student's counter against a mission.
// WeekStart is only set on rows seeded by the weekly sync.
type MissionProgress struct {
	ID              int64      `db:"id"`
	StudentID       int64      `db:"student_id"`
	MissionID       int64      `db:"mission_id"`
	WeekStart       *time.Time `db:"week_start"`
	CurrentProgress int        `db:"current_progress"`
	Completed       bool       `db:"completed"`
	CompletedAt     *time.Time `db:"completed_at"`
	RewardClaimed   bool       `db:"reward_claimed"`
}

// MissionView joins a mission definition with the student's progress, if any.
type MissionView struct {
	Mission  *Mission
	Progress *MissionProgress
}

// Achievement is a global threshold definition.
type Achievement struct {
	ID             int64  `db:"id"`
	Title          string `db:"title"`
	ConditionType  string `db:"condition_type"`
	ConditionValue int64  `db:"condition_value"`
	Active         bool   `db:"active"`
}

// AchievementUnlock records that a student earned an achievement.
type AchievementUnlock struct {
	StudentID     int64     `db:"student_id"`
	AchievementID int64     `db:"achievement_id"`
	Title         string    `db:"title"`
	UnlockedAt    time.Time `db:"unlocked_at"`
}

// RankEntry is one row of an XP leaderboard.
type RankEntry struct {
	StudentID int64  `db:"student_id"`
	Username  string `db:"username"`
	XP        int64  `db:"xp"`
	Level     int    `db:"level"`
}

// Achievement condition types.
const (
	ConditionLevelReached = "LEVEL_REACHED"
	ConditionStreak       = "STREAK"
	ConditionXPTotal      = "XP_TOTAL"
)

// Mission types the engine pushes progress for.
const (
	MissionStreak3           = "STREAK_3"
	MissionStreak7           = "STREAK_7"
	MissionLoginConsecutive2 = "LOGIN_CONSECUTIVE_2"
	MissionViewContent4      = "VIEW_CONTENT_4"
	MissionCompleteActivity  = "COMPLETE_ACTIVITY"
)

// WeeklyMissionTypes returns the mission types seeded each week for Pro students.
func WeeklyMissionTypes() []string {
	return []string{MissionLoginConsecutive2, MissionViewContent4, MissionCompleteActivity}
}

// Point log reasons written by the engine itself.
const (
	ReasonAttendanceRecovered = "Attendance Recovered"
)
