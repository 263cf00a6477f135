package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lofterscraper/pkg/lofter"
)

// partSuffix marks a file that is still being written
const partSuffix = ".part"

// Job pairs an image link with the local path it is saved to
type Job struct {
	Link string
	Path string
}

// Manager handles the download directory
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager, creating outputDir if missing
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Dir returns the output directory path
func (m *Manager) Dir() string {
	return m.outputDir
}

// Exists reports whether a regular file is present at path
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteAll copies r to path through a sibling .part file that is renamed into
// place once complete. On failure the .part file is discarded and a file
// already at path is left as it was.
func (m *Manager) WriteAll(path string, r io.Reader) (int64, error) {
	tempFile := path + partSuffix
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		m.Discard(path)
		return n, fmt.Errorf("failed to write image data: %w", err)
	}
	if closeErr != nil {
		m.Discard(path)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		m.Discard(path)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return n, nil
}

// Discard deletes the partial file for path, ignoring a missing file
func (m *Manager) Discard(path string) {
	os.Remove(path + partSuffix)
}

// Plan maps links to target paths. Each distinct link gets one job. When
// distinct links derive the same file name, later ones get _2, _3 suffixes in
// first-seen order.
func (m *Manager) Plan(links []string) []Job {
	jobs := make([]Job, 0, len(links))
	seenLinks := make(map[string]struct{}, len(links))
	usedNames := make(map[string]int, len(links))

	for _, link := range links {
		if _, dup := seenLinks[link]; dup {
			continue
		}
		seenLinks[link] = struct{}{}

		name := lofter.Filename(link)
		key := strings.ToLower(name)
		usedNames[key]++
		if n := usedNames[key]; n > 1 {
			name = suffixed(name, n)
			for usedNames[strings.ToLower(name)] > 0 {
				n++
				name = suffixed(lofter.Filename(link), n)
			}
			usedNames[strings.ToLower(name)]++
		}

		jobs = append(jobs, Job{Link: link, Path: filepath.Join(m.outputDir, name)})
	}
	return jobs
}

func suffixed(name string, n int) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}
