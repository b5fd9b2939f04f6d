// Package dataset owns the append-only JSONL training logs.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrNotDurable means the line was written but could not be synced; it may already be in the log.
var ErrNotDurable = errors.New("record written but not synced")

// Log is a JSONL file where every Append adds exactly one complete line.
// Appends are serialized in-process by mu and across processes by an advisory lock on <path>.lock.
type Log struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
	file *os.File
}

func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset log %s: %w", path, err)
	}
	return &Log{
		path: path,
		lock: flock.New(path + ".lock"),
		file: f,
	}, nil
}

func (l *Log) Path() string {
	return l.path
}

// Append writes v as a single JSON line and syncs it before returning.
func (l *Log) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("dataset log %s is closed", l.path)
	}
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock dataset log: %w", err)
	}
	defer l.lock.Unlock()

	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotDurable, l.path, err)
	}
	return nil
}

// Count returns the number of non-empty lines in the log. Lines of any length are counted.
func (l *Log) Count() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	return countLines(f)
}

func countLines(r io.Reader) (int, error) {
	buf := make([]byte, 64*1024)
	n := 0
	// prev is the last byte seen; '\n' means the next byte starts a line.
	prev := byte('\n')
	for {
		read, err := r.Read(buf)
		chunk := buf[:read]
		for len(chunk) > 0 {
			i := bytes.IndexByte(chunk, '\n')
			if i < 0 {
				prev = chunk[len(chunk)-1]
				break
			}
			if i > 0 || prev != '\n' {
				n++
			}
			prev = '\n'
			chunk = chunk[i+1:]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	// Trailing line without a newline.
	if prev != '\n' {
		n++
	}
	return n, nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	_ = l.lock.Close()
	return err
}
