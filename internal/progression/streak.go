package progression

import (
	"math"
	"time"

	"learnquest/internal/model"
)

// Streak milestone bonuses.
const (
	BonusStreak3      int64 = 50
	BonusStreak7      int64 = 150
	BonusStreakWeekly int64 = 200
)

// StreakOutcome describes how a login changes a streak.
type StreakOutcome int

const (
	// StreakStarted means there was no previous login on record.
	StreakStarted StreakOutcome = iota
	// StreakSameDay means the last update was less than a day ago.
	StreakSameDay
	// StreakContinued means the last update was exactly one day ago.
	StreakContinued
	// StreakBroken means two or more days passed.
	StreakBroken
)

// DaysBetween returns floor((to - from) / 24h).
func DaysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

// StreakBonus returns the bonus XP earned on reaching streak.
func StreakBonus(streak int) int64 {
	switch {
	case streak == 3:
		return BonusStreak3
	case streak == 7:
		return BonusStreak7
	case streak > 7 && streak%7 == 0:
		return BonusStreakWeekly
	default:
		return 0
	}
}

// NextStreak computes the streak after a login at now.
// last is the previous streak timestamp, nil when never stamped.
// A clock that moved backwards is treated like a same-day call.
func NextStreak(current int, last *time.Time, now time.Time) (int, int64, StreakOutcome) {
	if last == nil {
		return 1, 0, StreakStarted
	}

	diff := DaysBetween(*last, now)
	switch {
	case diff <= 0:
		return current, 0, StreakSameDay
	case diff == 1:
		next := current + 1
		return next, StreakBonus(next), StreakContinued
	default:
		return 1, 0, StreakBroken
	}
}

// MissionIncrement is a progress push for one mission type.
type MissionIncrement struct {
	MissionType string
	Increment   int
}

// StreakMissionIncrements returns the progress pushed to each streak mission
// for the given streak length, in a fixed order.
func StreakMissionIncrements(streak int) []MissionIncrement {
	flag := func(ok bool) int {
		if ok {
			return 1
		}
		return 0
	}
	return []MissionIncrement{
		{MissionType: model.MissionStreak3, Increment: flag(streak >= 3)},
		{MissionType: model.MissionStreak7, Increment: flag(streak >= 7)},
		{MissionType: model.MissionLoginConsecutive2, Increment: flag(streak >= 2)},
	}
}

// WeekStart returns Monday 00:00 of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}
