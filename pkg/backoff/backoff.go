// Package backoff provides exponential backoff calculation.
package backoff

import (
	"math"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 250ms
	Max     time.Duration // default: 10s
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
func Exponential(attempt int, cfg Config) time.Duration {
	initial := 250 * time.Millisecond
	maxBackoff := 10 * time.Second
	if cfg.Initial > 0 {
		initial = cfg.Initial
	}
	if cfg.Max > 0 {
		maxBackoff = cfg.Max
	}

	if attempt < 1 {
		return initial
	}
	d := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}
	return time.Duration(d)
}
