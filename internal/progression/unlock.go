package progression

import "math"

// Override is the manual lock state an admin sets on a content level.
type Override int

const (
	// Scheduled follows the time window and the prerequisite level.
	Scheduled Override = iota
	// ForceLocked keeps the level closed no matter what.
	ForceLocked
	// ForceUnlocked opens the level and skips every other check.
	ForceUnlocked
)

// String returns the override name.
func (o Override) String() string {
	switch o {
	case ForceLocked:
		return "force_locked"
	case ForceUnlocked:
		return "force_unlocked"
	default:
		return "scheduled"
	}
}

// OverrideFromNullable maps the stored nullable flag to an Override.
// true locks, false unlocks, nil follows the schedule.
func OverrideFromNullable(v *bool) Override {
	if v == nil {
		return Scheduled
	}
	if *v {
		return ForceLocked
	}
	return ForceUnlocked
}

// LevelInput is what the evaluator needs to know about one level.
type LevelInput struct {
	Order        int
	DaysToUnlock *int
	Override     Override
	Completed    bool
}

// UnlockStatus is the evaluated availability of one level for a student.
type UnlockStatus struct {
	IsAvailable          bool `json:"is_available"`
	IsUnlockedByTime     bool `json:"is_unlocked_by_time"`
	IsUnlockedByProgress bool `json:"is_unlocked_by_progress"`
	IsStuck              bool `json:"is_stuck"`
	IsManuallyBlocked    bool `json:"is_manually_blocked"`
	DaysRequired         int  `json:"days_required"`
	DaysRemaining        int  `json:"days_remaining"`
}

// DaysRequired returns how many days after assignment a level opens.
// Unset values default to 0 for the first level and defaultDays otherwise.
func DaysRequired(order int, daysToUnlock *int, defaultDays int) int {
	if daysToUnlock != nil {
		return *daysToUnlock
	}
	if order <= 1 {
		return 0
	}
	return defaultDays
}

// EvaluateLevel decides availability of a single level.
// prerequisiteMet is the completion of the level right before it.
func EvaluateLevel(in LevelInput, daysElapsed int, prerequisiteMet bool, defaultDays int) UnlockStatus {
	required := DaysRequired(in.Order, in.DaysToUnlock, defaultDays)
	byTime := daysElapsed >= required

	st := UnlockStatus{
		IsUnlockedByTime:     byTime,
		IsUnlockedByProgress: prerequisiteMet,
		DaysRequired:         required,
		DaysRemaining:        int(math.Max(0, float64(required-daysElapsed))),
	}

	switch in.Override {
	case ForceLocked:
		st.IsManuallyBlocked = true
	case ForceUnlocked:
		st.IsAvailable = true
	default:
		st.IsAvailable = byTime && prerequisiteMet
		st.IsStuck = byTime && !prerequisiteMet
	}
	return st
}

// EvaluateLevels evaluates a module's levels, which must be sorted by Order.
// Each level's prerequisite is the completion of the level evaluated before
// it; the first level's prerequisite is always met.
func EvaluateLevels(levels []LevelInput, daysElapsed, defaultDays int) []UnlockStatus {
	out := make([]UnlockStatus, 0, len(levels))
	prevCompleted := true
	for _, lv := range levels {
		out = append(out, EvaluateLevel(lv, daysElapsed, prevCompleted, defaultDays))
		prevCompleted = lv.Completed
	}
	return out
}

// PercentComplete returns min(100, round(completed/total*100)) and whether the
// level counts as complete. A level without tasks is always complete.
func PercentComplete(completedTasks, totalTasks int) (int, bool) {
	if totalTasks <= 0 {
		return 100, true
	}
	pct := int(math.Round(float64(completedTasks) / float64(totalTasks) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct, pct == 100
}
