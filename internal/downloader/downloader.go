// Package downloader drives image downloads in rounds. Round 0 attempts every
// link; each retry round re-drives only the links that failed the round
// before, with overwrite forced and a longer timeout. Links still failing
// after the last round are returned as permanent failures.
package downloader

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"lofterscraper/internal/pool"
	apperrors "lofterscraper/pkg/errors"
	"lofterscraper/pkg/logger"
	"lofterscraper/pkg/metrics"
	"lofterscraper/pkg/retry"
	"lofterscraper/pkg/storage"
)

// Streamer opens a link for a streamed download bounded by timeout
type Streamer interface {
	Stream(ctx context.Context, addr string, timeout time.Duration) (io.ReadCloser, error)
}

// Store is the filesystem side of a download
type Store interface {
	Exists(path string) bool
	WriteAll(path string, r io.Reader) (int64, error)
	Discard(path string)
	Plan(links []string) []storage.Job
}

// Status is the result of one download attempt
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "success"
	case StatusSkipped:
		return "skipped"
	default:
		return "failure"
	}
}

// Outcome is the result of downloading one link. A failure is a value, never
// a panic or a propagated error.
type Outcome struct {
	Link   string
	Path   string
	Status Status
	Bytes  int64
	Err    error
}

// OK reports whether the file is in place
func (o Outcome) OK() bool {
	return o.Status != StatusFailed
}

// RoundReport summarizes one download round
type RoundReport struct {
	Round     int
	Attempted int
	Succeeded int
	Failed    int
	Timeout   time.Duration
	Elapsed   time.Duration
}

// Result is the outcome of a whole download phase
type Result struct {
	Rounds    []RoundReport
	Succeeded int
	Skipped   int
	// Failed lists the links that failed every round, in input order
	Failed []string
	// Causes maps each failed link to a permanent_unavailable error wrapping
	// its last failure
	Causes map[string]error
}

// Downloader runs download rounds on the shared worker pool
type Downloader struct {
	pool     *pool.Pool
	streamer Streamer
	logger   logger.Logger
	metrics  *metrics.Metrics

	// OnRound, when set, is called after every round
	OnRound func(RoundReport)
}

// New creates a Downloader. m may be nil.
func New(p *pool.Pool, s Streamer, log logger.Logger, m *metrics.Metrics) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		pool:     p,
		streamer: s,
		logger:   log,
		metrics:  m,
	}
}

// Download fetches one link to job.Path. An existing file is kept without
// any network access unless replace is set. On failure any partial file is
// removed; a complete file already at job.Path is kept.
func (d *Downloader) Download(ctx context.Context, store Store, job storage.Job, replace bool, timeout time.Duration) Outcome {
	out := Outcome{Link: job.Link, Path: job.Path}

	if !replace && store.Exists(job.Path) {
		out.Status = StatusSkipped
		d.metrics.Download(out.Status.String(), 0)
		return out
	}

	body, err := d.streamer.Stream(ctx, job.Link, timeout)
	if err != nil {
		store.Discard(job.Path)
		return d.failed(out, err)
	}
	n, err := store.WriteAll(job.Path, body)
	body.Close()
	if err != nil {
		return d.failed(out, err)
	}

	out.Status = StatusDownloaded
	out.Bytes = n
	d.metrics.Download(out.Status.String(), n)
	logger.LogDownload(d.logger, job.Link, job.Path, nil)
	return out
}

func (d *Downloader) failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	d.metrics.Download(out.Status.String(), 0)
	logger.LogDownload(d.logger, out.Link, out.Path, err)
	return out
}

// Run downloads links into store following schedule. replace applies to
// round 0; retry rounds always overwrite.
func (d *Downloader) Run(ctx context.Context, store Store, links []string, replace bool, schedule retry.Schedule) *Result {
	result := &Result{Causes: make(map[string]error)}
	pending := store.Plan(links)
	lastErr := make(map[string]error)

	for round := 0; round < schedule.TotalRounds() && len(pending) > 0; round++ {
		if round > 0 {
			if err := retry.Wait(ctx, schedule.Pause); err != nil {
				d.logger.WithError(err).Warn("Retry pause interrupted")
			}
		}

		report := RoundReport{
			Round:     round,
			Attempted: len(pending),
			Timeout:   schedule.TimeoutFor(round),
		}
		overwrite := schedule.ReplaceFor(round, replace)
		began := time.Now()

		outcomes := pool.Map(ctx, d.pool, pending, func(ctx context.Context, job storage.Job) Outcome {
			return d.Download(ctx, store, job, overwrite, report.Timeout)
		})

		failedLinks := make(map[string]struct{})
		for _, o := range outcomes {
			switch o.Status {
			case StatusFailed:
				failedLinks[o.Link] = struct{}{}
				lastErr[o.Link] = o.Err
			case StatusSkipped:
				result.Skipped++
				result.Succeeded++
			default:
				result.Succeeded++
			}
		}

		// Keep the next round's input in plan order.
		next := pending[:0:0]
		for _, job := range pending {
			if _, failed := failedLinks[job.Link]; failed {
				next = append(next, job)
			}
		}

		report.Elapsed = time.Since(began)
		report.Failed = len(next)
		report.Succeeded = report.Attempted - report.Failed
		result.Rounds = append(result.Rounds, report)
		d.metrics.RoundFailures(strconv.Itoa(round), report.Failed)

		d.logger.InfoWithFields(fmt.Sprintf("Download round %d finished", round), map[string]interface{}{
			"round":      round,
			"attempted":  report.Attempted,
			"succeeded":  report.Succeeded,
			"failed":     report.Failed,
			"timeout":    report.Timeout,
			"elapsed_ms": report.Elapsed.Milliseconds(),
		})
		if d.OnRound != nil {
			d.OnRound(report)
		}

		pending = next
	}

	for _, job := range pending {
		err := apperrors.Unavailable(job.Link, lastErr[job.Link])
		result.Failed = append(result.Failed, job.Link)
		result.Causes[job.Link] = err
		d.logger.WithError(err).WarnWithFields("Link permanently unavailable", map[string]interface{}{
			"link":   job.Link,
			"status": apperrors.StatusCode(err),
		})
	}
	d.metrics.PermanentFailures(len(result.Failed))
	if len(result.Failed) > 0 {
		d.logger.WarnWithFields("Links permanently unavailable", map[string]interface{}{
			"count": len(result.Failed),
		})
	}
	return result
}
