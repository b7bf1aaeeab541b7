// Package level holds the pure XP and level arithmetic shared by grants and revocations.
package level

const (
	// MinLevel is the level of every user with no XP (or negative XP mid-cancellation).
	MinLevel = 1
	// MaxLevel bounds CalculateLevel.
	MaxLevel = 1000

	defaultMissionXP int64 = 50
)

// missionXPByDifficulty maps mission difficulty (stars) to base completion XP.
var missionXPByDifficulty = map[int]int64{
	1: 50,
	2: 100,
	3: 200,
	4: 400,
	5: 800,
}

// XPDelta returns the XP needed to go from level l to l+1.
func XPDelta(l int) int64 {
	if l < MinLevel {
		l = MinLevel
	}
	return 40 + 15*int64(l-1)
}

// TotalXPForLevel returns the cumulative XP at which level l is reached.
// (l-1)*(25+7.5l), kept in integers.
func TotalXPForLevel(l int) int64 {
	if l <= MinLevel {
		return 0
	}
	n := int64(l)
	return (n - 1) * (50 + 15*n) / 2
}

// CalculateLevel maps cumulative XP to a level. Negative XP is level 1.
func CalculateLevel(totalXP int64) int {
	if totalXP < 0 {
		return MinLevel
	}
	for l := MinLevel; l < MaxLevel; l++ {
		if totalXP < TotalXPForLevel(l+1) {
			return l
		}
	}
	return MaxLevel
}

// CalculateMissionXP returns the base XP for completing a mission.
// Unknown difficulties fall back to the easiest tier. Featured missions pay double.
func CalculateMissionXP(difficulty int, featured bool) int64 {
	xp, ok := missionXPByDifficulty[difficulty]
	if !ok {
		xp = defaultMissionXP
	}
	if featured {
		xp *= 2
	}
	return xp
}

// XPToNextLevel returns the XP still missing before the next level.
func XPToNextLevel(totalXP int64) int64 {
	current := CalculateLevel(totalXP)
	if current >= MaxLevel {
		return 0
	}
	remaining := TotalXPForLevel(current+1) - totalXP
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Progress returns how far the user is through the current level, in [0, 1].
func Progress(totalXP int64) float64 {
	current := CalculateLevel(totalXP)
	if current >= MaxLevel {
		return 0
	}
	span := XPDelta(current)
	done := span - XPToNextLevel(totalXP)
	ratio := float64(done) / float64(span)
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
