package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Ledger statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Entry is the ledger record for one document.
type Entry struct {
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Validation string    `json:"validation,omitempty"`
	RecordID   string    `json:"record_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Ledger remembers which documents have been processed, keyed by file name.
// It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// LoadLedger reads the ledger at path. A missing file yields an empty ledger.
func LoadLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: map[string]Entry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	if l.entries == nil {
		l.entries = map[string]Entry{}
	}
	return l, nil
}

// Has reports whether name has an entry of any status.
func (l *Ledger) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[name]
	return ok
}

// Get returns the entry for name.
func (l *Ledger) Get(name string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[name]
	return e, ok
}

// Mark records e for name, stamping it with the current time when unset.
func (l *Ledger) Mark(name string, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[name] = e
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Counts returns the number of entries per status.
func (l *Ledger) Counts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]int{}
	for _, e := range l.entries {
		out[e.Status]++
	}
	return out
}

// Save persists the ledger atomically.
func (l *Ledger) Save() error {
	l.mu.Lock()
	data, err := MarshalJSON(l.entries)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	return WriteFileAtomic(l.path, data)
}
