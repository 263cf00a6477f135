package retry

import (
	"context"
	"math"
	"time"

	"lofterscraper/pkg/config"
)

// Schedule describes the download rounds: one initial round followed by
// Rounds retry rounds, each with a longer per-attempt timeout.
type Schedule struct {
	// Rounds is the number of retry rounds after the initial attempt
	Rounds int
	// BaseTimeout is the per-attempt timeout of the initial round
	BaseTimeout time.Duration
	// Multiplier scales the timeout from one round to the next
	Multiplier float64
	// MaxTimeout caps the escalated timeout (0 means no cap)
	MaxTimeout time.Duration
	// Pause is waited between rounds
	Pause time.Duration
}

// DefaultSchedule returns one retry round at three times the base timeout
func DefaultSchedule(base time.Duration) Schedule {
	return Schedule{
		Rounds:      1,
		BaseTimeout: base,
		Multiplier:  3,
		MaxTimeout:  5 * time.Minute,
	}
}

// FromConfig builds the schedule from download settings
func FromConfig(cfg config.DownloadConfig) Schedule {
	return Schedule{
		Rounds:      cfg.RetryRounds,
		BaseTimeout: cfg.Timeout,
		Multiplier:  cfg.TimeoutMultiplier,
		MaxTimeout:  cfg.MaxTimeout,
		Pause:       cfg.RoundPause,
	}
}

// TotalRounds counts the initial round plus the retry rounds
func (s Schedule) TotalRounds() int {
	if s.Rounds < 0 {
		return 1
	}
	return s.Rounds + 1
}

// TimeoutFor returns the per-attempt timeout of round (0 is the initial round)
func (s Schedule) TimeoutFor(round int) time.Duration {
	if round <= 0 || s.Multiplier <= 1 {
		return s.capped(float64(s.BaseTimeout))
	}
	return s.capped(float64(s.BaseTimeout) * math.Pow(s.Multiplier, float64(round)))
}

func (s Schedule) capped(d float64) time.Duration {
	if s.MaxTimeout > 0 && d > float64(s.MaxTimeout) {
		return s.MaxTimeout
	}
	return time.Duration(d)
}

// ReplaceFor reports whether round overwrites existing files. Retry rounds
// always do, so a truncated artifact from an earlier round is never kept.
func (s Schedule) ReplaceFor(round int, initial bool) bool {
	if round > 0 {
		return true
	}
	return initial
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
