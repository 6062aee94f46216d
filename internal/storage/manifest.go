package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manifest is a newline-separated list of source file names that have been
// brought into the docs directory.
type Manifest struct {
	mu   sync.Mutex
	path string
}

func NewManifest(path string) *Manifest {
	return &Manifest{path: path}
}

// Entries returns the names listed in the manifest, in file order. A missing
// manifest has no entries.
func (m *Manifest) Entries() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries()
}

func (m *Manifest) entries() ([]string, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return names, nil
}

// Contains reports whether name is listed.
func (m *Manifest) Contains(name string) (bool, error) {
	names, err := m.Entries()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Add appends name unless it is already listed. It reports whether the
// manifest changed.
func (m *Manifest) Add(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.entries()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return false, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, name); err != nil {
		return false, fmt.Errorf("append manifest: %w", err)
	}
	return true, nil
}
