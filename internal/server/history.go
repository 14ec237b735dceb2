// Package server persists room history through the HistoryStore type: one
// append-only log file per room, one JSON record per line. Appends are synced
// to stable storage before a publish is broadcast, so a subscriber joining
// concurrently always replays history at least as fresh as anything it missed.
package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// HistoryStore appends and replays per-room message history. Operations on the
// same room are serialized; different rooms do not contend.
type HistoryStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewHistoryStore creates a HistoryStore rooted at dir, creating the directory
// if needed.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory %q: %w", dir, err)
	}
	return &HistoryStore{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// roomLock returns the mutex serializing access to a single room's log file.
func (s *HistoryStore) roomLock(room string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[room]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[room] = lock
	}
	return lock
}

// logPath maps a room name to its log file, keeping only filesystem-safe
// characters (alphanumerics, '-', '_') from the room name.
func (s *HistoryStore) logPath(room string) string {
	var b strings.Builder
	for _, r := range room {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return filepath.Join(s.dir, b.String()+".txt")
}

// Append durably writes record to room's log. The write is flushed to stable
// storage before Append returns.
func (s *HistoryStore) Append(room string, record Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding history record for room %q: %w", room, err)
	}

	lock := s.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(s.logPath(room), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history log for room %q: %w", room, err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending history record for room %q: %w", room, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing history log for room %q: %w", room, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing history log for room %q: %w", room, err)
	}
	return nil
}

// Tail returns up to the last n well-formed records from room's log, oldest
// first. Malformed or partially written lines are skipped. A room with no log
// yields an empty result and no error.
func (s *HistoryStore) Tail(room string, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	lock := s.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(s.logPath(room))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history log for room %q: %w", room, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing history log for room %q: %v", room, err)
		}
	}()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			// Torn or corrupt line; skip it rather than failing the replay.
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning history log for room %q: %w", room, err)
	}

	if len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}
