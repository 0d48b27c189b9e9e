package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ArchivedLog tracks which match IDs have already been persisted, so crashed
// or restarted writers never archive a match twice. It is an append-only file
// with one match ID per line, loaded into memory on open.
//
// A partial final line from a crash mid-write is ignored on the next load.
type ArchivedLog struct {
	mu       sync.RWMutex
	path     string
	file     *os.File
	archived map[string]struct{}
}

func OpenArchivedLog(path string) (*ArchivedLog, error) {
	if path == "" {
		return nil, fmt.Errorf("log path is required")
	}

	archived := make(map[string]struct{})

	// Best-effort load of existing IDs.
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			id := strings.TrimSpace(scanner.Text())
			if id == "" {
				continue
			}
			archived[id] = struct{}{}
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &ArchivedLog{
		path:     path,
		file:     file,
		archived: archived,
	}, nil
}

func (l *ArchivedLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *ArchivedLog) Has(matchID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.archived[matchID]
	return ok
}

func (l *ArchivedLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.archived)
}

// Add appends the match ID and fsyncs. Already-present IDs are a no-op.
func (l *ArchivedLog) Add(matchID string) error {
	if matchID == "" {
		return fmt.Errorf("matchID is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.archived[matchID]; ok {
		return nil
	}
	if l.file == nil {
		return fmt.Errorf("log file is closed")
	}

	if _, err := l.file.WriteString(matchID + "\n"); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}

	l.archived[matchID] = struct{}{}
	return nil
}
