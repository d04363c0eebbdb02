package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestOverrideFromNullable(t *testing.T) {
	assert.Equal(t, Scheduled, OverrideFromNullable(nil))
	assert.Equal(t, ForceLocked, OverrideFromNullable(boolPtr(true)))
	assert.Equal(t, ForceUnlocked, OverrideFromNullable(boolPtr(false)))
}

func TestDaysRequired(t *testing.T) {
	assert.Equal(t, 0, DaysRequired(1, nil, 7))
	assert.Equal(t, 7, DaysRequired(2, nil, 7))
	assert.Equal(t, 3, DaysRequired(2, intPtr(3), 7))
	assert.Equal(t, 5, DaysRequired(1, intPtr(5), 7))
}

func TestEvaluateLevelsScheduled(t *testing.T) {
	levels := []LevelInput{
		{Order: 1, Completed: true},
		{Order: 2, Completed: false},
		{Order: 3, Completed: false},
	}

	statuses := EvaluateLevels(levels, 8, 7)
	assert.Len(t, statuses, 3)

	// Level 1: no wait, no prerequisite.
	assert.True(t, statuses[0].IsAvailable)
	assert.False(t, statuses[0].IsStuck)

	// Level 2: time passed, level 1 completed.
	assert.True(t, statuses[1].IsAvailable)
	assert.True(t, statuses[1].IsUnlockedByTime)
	assert.True(t, statuses[1].IsUnlockedByProgress)

	// Level 3: time passed, level 2 not completed.
	assert.False(t, statuses[2].IsAvailable)
	assert.True(t, statuses[2].IsStuck)
	assert.Equal(t, 0, statuses[2].DaysRemaining)
}

func TestEvaluateLevelsWaitingForTime(t *testing.T) {
	levels := []LevelInput{
		{Order: 1, Completed: true},
		{Order: 2, DaysToUnlock: intPtr(10)},
	}

	statuses := EvaluateLevels(levels, 4, 7)
	assert.False(t, statuses[1].IsAvailable)
	assert.False(t, statuses[1].IsUnlockedByTime)
	assert.True(t, statuses[1].IsUnlockedByProgress)
	assert.False(t, statuses[1].IsStuck)
	assert.Equal(t, 6, statuses[1].DaysRemaining)
}

func TestEvaluateLevelsOverrides(t *testing.T) {
	levels := []LevelInput{
		{Order: 1, Override: ForceLocked, Completed: true},
		{Order: 2, Override: ForceUnlocked},
		{Order: 3, Override: Scheduled},
	}

	statuses := EvaluateLevels(levels, 0, 7)

	assert.False(t, statuses[0].IsAvailable)
	assert.True(t, statuses[0].IsManuallyBlocked)

	assert.True(t, statuses[1].IsAvailable)
	assert.False(t, statuses[1].IsStuck)

	// Level 2 was force-unlocked but not completed, so level 3 waits on it.
	assert.False(t, statuses[2].IsAvailable)
	assert.False(t, statuses[2].IsUnlockedByProgress)
}

// A forced lock wins over any schedule; a forced unlock wins over any gate.
func TestOverridePrecedenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		order := rapid.IntRange(1, 20).Draw(t, "order")
		days := rapid.IntRange(0, 30).Draw(t, "days")
		elapsed := rapid.IntRange(0, 365).Draw(t, "elapsed")
		prereq := rapid.Bool().Draw(t, "prereq")

		locked := EvaluateLevel(LevelInput{Order: order, DaysToUnlock: &days, Override: ForceLocked}, elapsed, prereq, 7)
		if locked.IsAvailable || !locked.IsManuallyBlocked {
			t.Fatalf("force locked level available: %+v", locked)
		}

		unlocked := EvaluateLevel(LevelInput{Order: order, DaysToUnlock: &days, Override: ForceUnlocked}, elapsed, prereq, 7)
		if !unlocked.IsAvailable || unlocked.IsStuck {
			t.Fatalf("force unlocked level not available: %+v", unlocked)
		}

		scheduled := EvaluateLevel(LevelInput{Order: order, DaysToUnlock: &days, Override: Scheduled}, elapsed, prereq, 7)
		if scheduled.IsAvailable != (elapsed >= days && prereq) {
			t.Fatalf("scheduled availability mismatch: %+v", scheduled)
		}
	})
}

func TestPercentComplete(t *testing.T) {
	tests := []struct {
		name          string
		completed     int
		total         int
		wantPct       int
		wantCompleted bool
	}{
		{"no tasks", 0, 0, 100, true},
		{"no tasks ignores submissions", 5, 0, 100, true},
		{"none done", 0, 4, 0, false},
		{"one of three rounds", 1, 3, 33, false},
		{"two of three rounds up", 2, 3, 67, false},
		{"half", 1, 2, 50, false},
		{"all done", 4, 4, 100, true},
		{"more submissions than tasks", 6, 4, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct, done := PercentComplete(tt.completed, tt.total)
			assert.Equal(t, tt.wantPct, pct)
			assert.Equal(t, tt.wantCompleted, done)
		})
	}
}
