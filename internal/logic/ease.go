package logic

import (
	"math"
	"time"
)

// EaseOutCubic maps linear progress t to completion with f(t) = 1-(1-t)^3.
// t is clamped to [0, 1], so f(1) is exactly 1.
func EaseOutCubic(t float64) float64 {
	t = clampUnit(t)
	inv := 1 - t
	return 1 - inv*inv*inv
}

// easedOffset returns the offset remaining at linear progress t of a return
// starting at start.
func easedOffset(start time.Duration, t float64) time.Duration {
	remaining := 1 - EaseOutCubic(t)
	if remaining <= 0 {
		return 0
	}
	return time.Duration(math.Trunc(float64(start) * remaining))
}

func clampUnit(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
