package services

// LevelThresholds: cumulative XP required for each level, index = level - 1.
// Monotonically increasing; level is always recomputable from lifetime XP.
var LevelThresholds = []int64{
	0,    // level 1
	100,  // level 2
	300,  // level 3
	600,  // level 4
	1000, // level 5
	1500, // level 6
	2200, // level 7
	3000, // level 8
	4000, // level 9
	5500, // level 10
}

// MilestoneBonuses: bonus XP granted once when a milestone level is reached.
var MilestoneBonuses = map[int]int64{
	5: 50, 10: 100, 15: 150, 20: 200, 25: 300, 30: 400, 50: 500, 100: 1000,
}

// MaxLevel is the top of the threshold table.
func MaxLevel() int { return len(LevelThresholds) }

// LevelForXP maps cumulative XP to a level. Monotonically non-decreasing.
func LevelForXP(xp int64) int {
	level := 1
	for i, threshold := range LevelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// LevelProgress returns progress percent within the current level and the XP
// still needed for the next. At max level progress is pinned to 100 and
// xpToNext is 0.
func LevelProgress(xp int64) (level int, percent float64, xpToNext int64) {
	level = LevelForXP(xp)
	if level >= MaxLevel() {
		return level, 100, 0
	}

	current := LevelThresholds[level-1]
	next := LevelThresholds[level]
	percent = float64(xp-current) / float64(next-current) * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return level, percent, next - xp
}
