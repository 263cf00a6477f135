// Package failurelog persists the links that failed every download round, one
// per line, so that a later run can retry them.
package failurelog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const suffix = "_failed.txt"

// PathFor returns where the failure list of domain is written inside dir
func PathFor(dir, domain string) string {
	return filepath.Join(dir, domain+suffix)
}

// DomainFromPath recovers the domain from a path built by PathFor, or ""
func DomainFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, suffix) {
		return ""
	}
	return strings.TrimSuffix(base, suffix)
}

// Write atomically replaces path with links, one per line
func Write(path string, links []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create failure list directory: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary failure list: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, link := range links {
		if _, err := w.WriteString(link + "\n"); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write failure list: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write failure list: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync failure list: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close failure list: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace failure list: %w", err)
	}
	return nil
}

// Read loads a failure list. Blank lines and lines starting with # are skipped.
func Read(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure list: %w", err)
	}
	defer file.Close()

	var links []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read failure list: %w", err)
	}
	return links, nil
}
