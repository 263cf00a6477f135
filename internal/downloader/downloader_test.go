package downloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lofterscraper/internal/blogtest"
	"lofterscraper/internal/pool"
	"lofterscraper/pkg/config"
	apperrors "lofterscraper/pkg/errors"
	"lofterscraper/pkg/fetcher"
	"lofterscraper/pkg/logger"
	"lofterscraper/pkg/metrics"
	"lofterscraper/pkg/retry"
	"lofterscraper/pkg/storage"
)

type fixture struct {
	srv   *blogtest.Server
	store *storage.Manager
	d     *Downloader
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	srv := blogtest.New(t, blogtest.Blog{Domain: "someblog"})

	p := pool.New(workers, logger.NewNopLogger())
	t.Cleanup(p.Close)

	store, err := storage.NewManager(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	client := fetcher.NewClient(config.DefaultConfig(), logger.NewNopLogger(), fetcher.WithHTTPClient(srv.HTTPClient()))
	return &fixture{
		srv:   srv,
		store: store,
		d:     New(p, client, logger.NewNopLogger(), metrics.New()),
	}
}

func imageLinks(n int) ([]string, []string) {
	links := make([]string, n)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = blogtest.ImageName(blogtest.PostID(1, i), 0)
		links[i] = blogtest.ImageURL(names[i])
	}
	return links, names
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestRunWithPermanentFailures(t *testing.T) {
	f := newFixture(t, 4)
	links, names := imageLinks(10)
	f.srv.FailImage(names[3], -1)
	f.srv.FailImage(names[7], -1)

	result := f.d.Run(context.Background(), f.store, links, false, retry.DefaultSchedule(2*time.Second))

	assert.Equal(t, []string{links[3], links[7]}, result.Failed)
	assert.Equal(t, 8, result.Succeeded)
	assert.Equal(t, 8, countFiles(t, f.store.Dir()))
	assert.NoFileExists(t, filepath.Join(f.store.Dir(), names[3]))
	assert.NoFileExists(t, filepath.Join(f.store.Dir(), names[3]+".part"))

	require.Len(t, result.Rounds, 2)
	assert.Equal(t, RoundReport{Round: 0, Attempted: 10, Succeeded: 8, Failed: 2, Timeout: 2 * time.Second}, withoutElapsed(result.Rounds[0]))
	assert.Equal(t, RoundReport{Round: 1, Attempted: 2, Succeeded: 0, Failed: 2, Timeout: 6 * time.Second}, withoutElapsed(result.Rounds[1]))

	require.Len(t, result.Causes, 2)
	cause := result.Causes[links[3]]
	assert.Equal(t, apperrors.KindPermanentUnavailable, apperrors.KindOf(cause))
	assert.Equal(t, 500, apperrors.StatusCode(cause))
	assert.Contains(t, cause.Error(), links[3])

	// Round 0 plus one retry round.
	assert.Equal(t, 2, f.srv.ImageHits(names[3]))
	assert.Equal(t, 1, f.srv.ImageHits(names[0]))
}

func TestDownloadFailureKeepsExistingFile(t *testing.T) {
	f := newFixture(t, 1)
	links, names := imageLinks(1)
	f.srv.FailImage(names[0], -1)

	path := filepath.Join(f.store.Dir(), names[0])
	require.NoError(t, os.WriteFile(path, []byte("complete"), 0644))

	out := f.d.Download(context.Background(), f.store, storage.Job{Link: links[0], Path: path}, true, time.Second)
	assert.Equal(t, StatusFailed, out.Status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(data))
	assert.NoFileExists(t, path+".part")
}

func withoutElapsed(r RoundReport) RoundReport {
	r.Elapsed = 0
	return r
}

func TestRunRecoversTransientFailure(t *testing.T) {
	f := newFixture(t, 2)
	links, names := imageLinks(3)
	f.srv.FailImage(names[1], 1)

	var reports []RoundReport
	f.d.OnRound = func(r RoundReport) { reports = append(reports, r) }

	result := f.d.Run(context.Background(), f.store, links, false, retry.DefaultSchedule(time.Second))

	assert.Empty(t, result.Failed)
	assert.Equal(t, 3, result.Succeeded)
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Failed)
	assert.Equal(t, 1, reports[1].Succeeded)

	data, err := os.ReadFile(filepath.Join(f.store.Dir(), names[1]))
	require.NoError(t, err)
	assert.Equal(t, "image:"+names[1], string(data))
}

func TestRunEscalatesTimeout(t *testing.T) {
	f := newFixture(t, 1)
	links, names := imageLinks(1)
	f.srv.DelayImage(names[0], 150*time.Millisecond)

	schedule := retry.Schedule{Rounds: 1, BaseTimeout: 40 * time.Millisecond, Multiplier: 10, MaxTimeout: 5 * time.Second}
	result := f.d.Run(context.Background(), f.store, links, false, schedule)

	assert.Empty(t, result.Failed)
	require.Len(t, result.Rounds, 2)
	assert.Equal(t, 1, result.Rounds[0].Failed)
	assert.Equal(t, 400*time.Millisecond, result.Rounds[1].Timeout)
	assert.FileExists(t, filepath.Join(f.store.Dir(), names[0]))
}

func TestRunWithoutRetryRounds(t *testing.T) {
	f := newFixture(t, 2)
	links, names := imageLinks(2)
	f.srv.FailImage(names[0], 1)

	result := f.d.Run(context.Background(), f.store, links, false, retry.Schedule{Rounds: 0, BaseTimeout: time.Second, Multiplier: 3})

	require.Len(t, result.Rounds, 1)
	assert.Equal(t, []string{links[0]}, result.Failed)
}

func TestRunFailingLinkReportedOnce(t *testing.T) {
	f := newFixture(t, 3)
	links, names := imageLinks(2)
	f.srv.FailImage(names[0], -1)

	duplicated := append(append([]string{}, links...), links[0], links[0])
	schedule := retry.Schedule{Rounds: 3, BaseTimeout: time.Second, Multiplier: 1}
	result := f.d.Run(context.Background(), f.store, duplicated, false, schedule)

	assert.Equal(t, []string{links[0]}, result.Failed)
	assert.Len(t, result.Rounds, 4)
	assert.Equal(t, 4, f.srv.ImageHits(names[0]))
}

func TestDownloadExistingFileIsNoop(t *testing.T) {
	f := newFixture(t, 1)
	links, names := imageLinks(1)
	path := filepath.Join(f.store.Dir(), names[0])
	require.NoError(t, os.WriteFile(path, []byte("already here"), 0644))

	out := f.d.Download(context.Background(), f.store, storage.Job{Link: links[0], Path: path}, false, time.Second)

	assert.Equal(t, StatusSkipped, out.Status)
	assert.True(t, out.OK())
	assert.Equal(t, 0, f.srv.ImageHits(names[0]))

	result := f.d.Run(context.Background(), f.store, links, false, retry.DefaultSchedule(time.Second))
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, f.srv.ImageHits(names[0]))
}

func TestDownloadReplaceOverwrites(t *testing.T) {
	f := newFixture(t, 1)
	links, names := imageLinks(1)
	path := filepath.Join(f.store.Dir(), names[0])
	require.NoError(t, os.WriteFile(path, []byte("truncated"), 0644))

	out := f.d.Download(context.Background(), f.store, storage.Job{Link: links[0], Path: path}, true, time.Second)

	require.Equal(t, StatusDownloaded, out.Status)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image:"+names[0], string(data))
	assert.Equal(t, int64(len(data)), out.Bytes)
}

func TestDownloadFailureRemovesPartialFile(t *testing.T) {
	f := newFixture(t, 1)
	links, names := imageLinks(1)
	f.srv.FailImage(names[0], -1)
	path := filepath.Join(f.store.Dir(), names[0])
	require.NoError(t, os.WriteFile(path+".part", []byte("partial"), 0644))

	out := f.d.Download(context.Background(), f.store, storage.Job{Link: links[0], Path: path}, true, time.Second)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)
	assert.NoFileExists(t, path+".part")
	assert.NoFileExists(t, path)
}

func TestRunCollidingFilenames(t *testing.T) {
	f := newFixture(t, 2)
	name := blogtest.ImageName(blogtest.PostID(1, 0), 0)
	links := []string{
		blogtest.ImageURL(name),
		"http://" + blogtest.ImageHost + "/img/" + name,
	}

	result := f.d.Run(context.Background(), f.store, links, false, retry.DefaultSchedule(time.Second))

	assert.Empty(t, result.Failed)
	assert.Equal(t, 2, countFiles(t, f.store.Dir()))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", StatusDownloaded.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "failure", StatusFailed.String())
}
