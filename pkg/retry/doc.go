// Package retry defines the round schedule of the download phase.
//
// Round 0 attempts every link with the base timeout. Each later round
// re-drives only the links that failed the round before, with overwrite
// forced on and the timeout multiplied again:
//
//	s := retry.DefaultSchedule(8 * time.Second)
//	s.TimeoutFor(0) // 8s
//	s.TimeoutFor(1) // 24s
//
// The schedule never retries indefinitely; links still failing after the
// last round are permanent failures.
package retry
