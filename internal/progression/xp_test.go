package progression

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestXPForLevel(t *testing.T) {
	tests := []struct {
		level    int
		expected int64
	}{
		{0, 0},
		{1, 0},
		{2, 100},
		{3, 250},
		{4, 500},
		{5, 850},
		{6, 1300},
		{7, 1850},
		{8, 2500},
		{9, 3250},
		{10, 4100},
		{11, 4562}, // 4100 + floor(100 * 10^1.5) - 2700
		{12, 5048}, // 4100 + floor(100 * 11^1.5) - 2700
	}

	for _, tt := range tests {
		if got := XPForLevel(tt.level); got != tt.expected {
			t.Errorf("XPForLevel(%d) = %d, want %d", tt.level, got, tt.expected)
		}
	}
}

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		name     string
		xp       int64
		expected int
	}{
		{"zero", 0, 1},
		{"just below level 2", 99, 1},
		{"exactly level 2", 100, 2},
		{"exactly level 5", 850, 5},
		{"between 5 and 6", 1299, 5},
		{"exactly level 10", 4100, 10},
		{"past the table", 4562, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateLevel(tt.xp); got != tt.expected {
				t.Errorf("CalculateLevel(%d) = %d, want %d", tt.xp, got, tt.expected)
			}
		})
	}
}

// Every threshold is strictly above the previous one.
func TestXPForLevelMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		level := rapid.IntRange(1, 500).Draw(t, "level")
		if XPForLevel(level+1) <= XPForLevel(level) {
			t.Fatalf("XPForLevel(%d)=%d is not above XPForLevel(%d)=%d",
				level+1, XPForLevel(level+1), level, XPForLevel(level))
		}
	})
}

func TestCalculateLevelRoundTrip(t *testing.T) {
	for level := 1; level <= 20; level++ {
		threshold := XPForLevel(level)
		if got := CalculateLevel(threshold); got != level {
			t.Errorf("CalculateLevel(XPForLevel(%d)) = %d", level, got)
		}
		if level > 1 {
			if got := CalculateLevel(threshold - 1); got >= level {
				t.Errorf("CalculateLevel(XPForLevel(%d)-1) = %d, want < %d", level, got, level)
			}
		}
	}
}

// The level for any XP is the largest threshold not above it.
func TestCalculateLevelProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		xp := rapid.Int64Range(0, 2_000_000).Draw(t, "xp")
		level := CalculateLevel(xp)
		if XPForLevel(level) > xp {
			t.Fatalf("level %d threshold %d above xp %d", level, XPForLevel(level), xp)
		}
		if XPForLevel(level+1) <= xp {
			t.Fatalf("level %d is not the largest for xp %d", level, xp)
		}
	})
}

// Far up the curve the inverse lands on the same level as the definition.
func TestCalculateLevelLargeXPProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		level := rapid.IntRange(11, MaxLevel-1).Draw(t, "level")
		threshold := XPForLevel(level)
		if got := CalculateLevel(threshold); got != level {
			t.Fatalf("CalculateLevel(XPForLevel(%d)) = %d", level, got)
		}
		if got := CalculateLevel(threshold - 1); got != level-1 {
			t.Fatalf("CalculateLevel(XPForLevel(%d)-1) = %d, want %d", level, got, level-1)
		}
	})
}

func TestCalculateLevelCapsAtMaxLevel(t *testing.T) {
	tests := []int64{XPForLevel(MaxLevel), XPForLevel(MaxLevel) * 2, math.MaxInt64}
	for _, xp := range tests {
		if got := CalculateLevel(xp); got != MaxLevel {
			t.Errorf("CalculateLevel(%d) = %d, want %d", xp, got, MaxLevel)
		}
		if got := LevelProgressPercent(xp); got != 100 {
			t.Errorf("LevelProgressPercent(%d) = %d, want 100", xp, got)
		}
	}
	if got := CalculateLevel(XPForLevel(MaxLevel) - 1); got != MaxLevel-1 {
		t.Errorf("CalculateLevel just below the cap = %d, want %d", got, MaxLevel-1)
	}
	// 1e15 XP resolves without walking every level.
	if got := CalculateLevel(1_000_000_000_000_000); got <= 100_000_000 {
		t.Errorf("CalculateLevel(1e15) = %d, want above 1e8", got)
	}
}

func TestApplyPlanMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		isPro    bool
		expected int64
	}{
		{"basic keeps amount", 100, false, 100},
		{"pro gets 20 percent", 100, true, 120},
		{"pro floors fractions", 7, true, 8},
		{"pro zero", 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyPlanMultiplier(tt.amount, tt.isPro, 1.2); got != tt.expected {
				t.Errorf("ApplyPlanMultiplier(%d, %v) = %d, want %d", tt.amount, tt.isPro, got, tt.expected)
			}
		})
	}
}

func TestLevelProgressPercent(t *testing.T) {
	if got := LevelProgressPercent(0); got != 0 {
		t.Errorf("LevelProgressPercent(0) = %d, want 0", got)
	}
	if got := LevelProgressPercent(175); got != 50 {
		t.Errorf("LevelProgressPercent(175) = %d, want 50", got)
	}
	if got := LevelProgressPercent(250); got != 0 {
		t.Errorf("LevelProgressPercent(250) = %d, want 0", got)
	}
}
