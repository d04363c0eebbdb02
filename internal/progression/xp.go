// Package progression holds the pure rules of the student progression engine:
// XP thresholds, level math, streak bonuses and level unlock gating.
// Nothing in this package touches storage.
package progression

import "math"

// levelThresholds are the cumulative XP needed for levels 1 through 10.
var levelThresholds = [...]int64{0, 100, 250, 500, 850, 1300, 1850, 2500, 3250, 4100}

// curveOffset re-anchors the power curve so level 11 continues above level 10.
// floor(100 * 9^1.5) = 2700, which is where the raw curve would sit at level 10.
const curveOffset = 2700

// XPForLevel returns the cumulative XP needed to reach level.
// Levels 1-10 come from a fixed table. Beyond that the threshold grows as
// 100 * (level-1)^1.5, shifted so the sequence stays strictly increasing.
// Levels below 1 are treated as level 1.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level <= len(levelThresholds) {
		return levelThresholds[level-1]
	}
	curve := int64(math.Floor(100 * math.Pow(float64(level-1), 1.5)))
	return levelThresholds[len(levelThresholds)-1] + curve - curveOffset
}

// MaxLevel is the highest storable level (current_level is an INT column).
const MaxLevel = math.MaxInt32

// CalculateLevel returns the largest level L >= 1 with XPForLevel(L) <= xp,
// capped at MaxLevel.
func CalculateLevel(xp int64) int {
	top := len(levelThresholds)
	if xp < levelThresholds[top-1] {
		level := 1
		for XPForLevel(level+1) <= xp {
			level++
		}
		return level
	}

	// Invert the curve, then step off float rounding.
	raw := math.Pow(float64(xp-levelThresholds[top-1]+curveOffset)/100, 2.0/3.0)
	level := max(top, int(math.Min(raw+1, MaxLevel)))
	for level > top && XPForLevel(level) > xp {
		level--
	}
	for level < MaxLevel && XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

// ApplyPlanMultiplier returns the XP actually credited for a nominal amount.
// Pro students get floor(amount * multiplier); everyone else gets the amount.
func ApplyPlanMultiplier(amount int64, isPro bool, multiplier float64) int64 {
	if !isPro {
		return amount
	}
	return int64(math.Floor(float64(amount) * multiplier))
}

// LevelProgressPercent returns how far xp is between the current level's
// threshold and the next one, as 0-100.
func LevelProgressPercent(xp int64) int {
	level := CalculateLevel(xp)
	if level == MaxLevel {
		return 100
	}
	floor := XPForLevel(level)
	next := XPForLevel(level + 1)
	if next <= floor {
		return 100
	}
	return int((xp - floor) * 100 / (next - floor))
}
