// Package ticket reads support tickets from disk and writes triaged copies.
package ticket

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StatusNew is the status stamped on every ticket before its triage report.
const StatusNew = "new"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Ticket is a single plain-text support request.
type Ticket struct {
	Name    string
	Path    string
	Content string
}

// List returns the names of the regular files in dir ending in ext, sorted.
func List(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read loads a ticket by file name from dir.
func Read(dir, name string) (*Ticket, error) {
	path := filepath.Join(dir, name)
	b, err := os.ReadFile(path) //nolint:gosec // G304: path is built from a directory listing
	if err != nil {
		return nil, fmt.Errorf("read ticket %s: %w", name, err)
	}
	return &Ticket{Name: name, Path: path, Content: string(b)}, nil
}

// Compose appends the "new" status and the triage report to the original
// ticket text.
func Compose(original, report string) string {
	var b strings.Builder
	b.Grow(len(original) + len(report) + 64)
	b.WriteString(original)
	b.WriteString("\n\n---\n\n**Status:** ")
	b.WriteString(StatusNew)
	b.WriteString("\n\n---\n\n## Triage\n\n")
	b.WriteString(report)
	return b.String()
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// Write stores content as dir/name, creating dir when needed, and returns the
// written path.
func Write(dir, name, content string) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		return "", fmt.Errorf("write ticket %s: %w", name, err)
	}
	return path, nil
}

// Remove deletes the source file of t. A ticket that is already gone is not
// an error.
func Remove(t *Ticket) error {
	if err := os.Remove(t.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove ticket %s: %w", t.Name, err)
	}
	return nil
}
