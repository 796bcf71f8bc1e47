// Package store persists discovered URLs as a flat text artifact, one URL
// per line. The artifact is a full replacement of the previous run's list,
// never an append log, so downstream tools always see exactly one run.
package store

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Write truncates the file at path and writes the URLs one per line with a
// trailing newline. It returns the number of URLs written. Any failure
// leaves the run without its artifact and must be treated as fatal by the
// caller.
func Write(path string, urls []string) (int, error) {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(u)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return 0, fmt.Errorf("store: write %s: %w", path, err)
	}
	return len(urls), nil
}

// Read loads a URL artifact back for list-driven runs. Lines are trimmed
// and blank lines skipped, so hand-edited files work too.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	return urls, nil
}
