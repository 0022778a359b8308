// Package xp holds the experience-point rules: how much a task is worth and
// which level a running total reaches.
package xp

import (
	"math"

	"github.com/dukerupert/cohabit/internal/model"
)

const (
	Easy   = 10
	Medium = 20
	Hard   = 30

	// pointsPerStep scales the level curve: level n starts at 100*(n-1)^2 XP.
	pointsPerStep = 100
)

// ForDifficulty returns the XP a task of difficulty d is worth.
func ForDifficulty(d model.Difficulty) int {
	switch d {
	case model.DifficultyEasy:
		return Easy
	case model.DifficultyHard:
		return Hard
	default:
		return Medium
	}
}

// Level computes floor(sqrt(total/100)) + 1. Negative totals are level 1.
//
//	Level 1: 0-99 XP
//	Level 2: 100-399 XP
//	Level 3: 400-899 XP
//	Level 4: 900-1599 XP
func Level(total int) int {
	if total < 0 {
		return 1
	}
	return isqrt(total/pointsPerStep) + 1
}

// isqrt returns floor(sqrt(n)) without trusting float rounding at perfect squares.
func isqrt(n int) int {
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
