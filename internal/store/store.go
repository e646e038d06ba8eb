// Package store persists discovered email records as an append-only JSONL log.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Source is the fixed-vocabulary provenance tag recording which traversal
// stage produced an address. New channels must add a new tag, never overload
// an existing one.
type Source string

// Provenance tags persisted with each record.
const (
	SourceProfile    Source = "profile"
	SourceModelPage  Source = "model_page"
	SourceWebsite    Source = "website"
	SourceSourceHost Source = "source_host"
)

// Record is one discovered address with provenance. Immutable once appended.
type Record struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Source   Source `json:"source"`
}

// EmailStore is an append-only log of records, one JSON document per line.
// Appends are sequential; concurrent readers only ever see the durable
// prefix, so a single writer plus readers is safe.
type EmailStore struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open creates or opens the log at path in append mode.
func Open(path string) (*EmailStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	return &EmailStore{path: path, file: f}, nil
}

// Path returns the absolute location of the log file.
func (s *EmailStore) Path() string {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return s.path
	}
	return abs
}

// Append durably writes one record to the end of the log.
func (s *EmailStore) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// LoadExistingEmails scans the full log and returns the set of addresses
// already persisted. Used once at run start to seed the dedup set.
// Blank and unparseable lines are skipped, never fatal.
func (s *EmailStore) LoadExistingEmails() (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	err := s.scan(func(rec Record) {
		if rec.Email != "" {
			seen[rec.Email] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}

// All returns every parseable record in file order.
func (s *EmailStore) All() ([]Record, error) {
	var records []Record
	err := s.scan(func(rec Record) {
		records = append(records, rec)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Tail returns the last n records in file order.
func (s *EmailStore) Tail(n int) ([]Record, error) {
	records, err := s.All()
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(records) == 0 {
		return nil, nil
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// Close releases the underlying file handle.
func (s *EmailStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close store file: %w", err)
	}
	return nil
}

func (s *EmailStore) scan(visit func(Record)) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open store for read: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		visit(rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan store: %w", err)
	}
	return nil
}
