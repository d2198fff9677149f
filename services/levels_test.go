package services

import "testing"

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp    int64
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{600, 4},
		{1200, 5},
		{5499, 9},
		{5500, 10},
		{999999, 10},
	}
	for _, tc := range tests {
		if got := LevelForXP(tc.xp); got != tc.level {
			t.Errorf("LevelForXP(%d) = %d, want %d", tc.xp, got, tc.level)
		}
	}
}

func TestLevelForXPMonotone(t *testing.T) {
	prev := LevelForXP(0)
	for xp := int64(1); xp <= 6000; xp++ {
		lvl := LevelForXP(xp)
		if lvl < prev {
			t.Fatalf("level dropped from %d to %d at xp=%d", prev, lvl, xp)
		}
		prev = lvl
	}
}

func TestLevelProgress(t *testing.T) {
	level, percent, toNext := LevelProgress(1200)
	if level != 5 {
		t.Fatalf("level = %d, want 5", level)
	}
	// band is [1000, 1500): (1200-1000)/500 = 40%
	if percent != 40 {
		t.Errorf("percent = %v, want 40", percent)
	}
	if toNext != 300 {
		t.Errorf("xpToNext = %d, want 300", toNext)
	}
}

// The progress formula against an alternate threshold table:
// 1200 XP over [0,100,300,700,1500] is level 4 at 62.5%.
func TestLevelProgressFormula(t *testing.T) {
	saved := LevelThresholds
	LevelThresholds = []int64{0, 100, 300, 700, 1500}
	defer func() { LevelThresholds = saved }()

	level, percent, toNext := LevelProgress(1200)
	if level != 4 {
		t.Fatalf("level = %d, want 4", level)
	}
	if percent != 62.5 {
		t.Errorf("percent = %v, want 62.5", percent)
	}
	if toNext != 300 {
		t.Errorf("xpToNext = %d, want 300", toNext)
	}
}

func TestLevelProgressMaxLevel(t *testing.T) {
	level, percent, toNext := LevelProgress(10000)
	if level != MaxLevel() {
		t.Fatalf("level = %d, want %d", level, MaxLevel())
	}
	if percent != 100 || toNext != 0 {
		t.Errorf("at max level got percent=%v toNext=%d, want 100/0", percent, toNext)
	}
}
