// Package jsonl appends call events as newline-delimited JSON.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"sales-coach-go/internal/store"
	"sales-coach-go/internal/types"
)

const (
	KindCall      = "call"
	KindExemplars = "exemplars"
)

// Event is one line of the log.
type Event struct {
	Kind     string          `json:"kind"`
	At       time.Time       `json:"at"`
	RunID    string          `json:"run_id,omitempty"`
	URL      string          `json:"url,omitempty"`
	Entry    *types.LogEntry `json:"entry,omitempty"`
	CallType *types.CallType `json:"call_type,omitempty"`
	Phrases  []string        `json:"phrases,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithMaxSize rotates the file to {path}.1 once it would grow past bytes.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(s *Store) { s.maxSize = bytes }
}

// Store writes one JSON object per line. Writes are unbuffered so a record
// is on disk once Append returns.
type Store struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	maxSize int64
	written int64
	writeFn func([]byte) (int, error)
}

func New(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Append(_ context.Context, e types.LogEntry) error {
	return s.write(Event{Kind: KindCall, At: e.Timestamp, RunID: e.RunID, URL: e.URL, Entry: &e})
}

func (s *Store) AppendExemplars(_ context.Context, b store.ExemplarBatch) error {
	if len(b.Phrases) == 0 {
		return nil
	}
	ct := b.CallType
	return s.write(Event{Kind: KindExemplars, At: b.At, RunID: b.RunID, URL: b.URL, CallType: &ct, Phrases: b.Phrases})
}

func (s *Store) write(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("jsonl: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("jsonl: store closed")
	}
	if s.maxSize > 0 && s.written > 0 && s.written+int64(len(data)) > s.maxSize {
		if err := s.rotate(); err != nil {
			return fmt.Errorf("jsonl: rotate: %w", err)
		}
	}
	n, err := s.writeFn(data)
	if err != nil {
		if n > 0 {
			// drop the partial line so a retry starts on a clean boundary
			if terr := s.f.Truncate(s.written); terr != nil {
				return fmt.Errorf("jsonl: write: %w (truncate: %v)", err, terr)
			}
		}
		return fmt.Errorf("jsonl: write: %w", err)
	}
	s.written += int64(n)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *Store) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("jsonl: open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("jsonl: stat %s: %w", s.path, err)
	}
	s.f = f
	s.written = info.Size()
	s.writeFn = f.Write
	return nil
}

func (s *Store) rotate() error {
	if err := s.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		return err
	}
	s.written = 0
	return s.open()
}

// ReadEntries returns every call entry in the file at path, oldest first.
// A missing file yields no entries.
func ReadEntries(path string) ([]types.LogEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	defer f.Close()
	return decodeEntries(f)
}

func decodeEntries(r io.Reader) ([]types.LogEntry, error) {
	var out []types.LogEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return out, fmt.Errorf("jsonl: line %d: %w", line, err)
		}
		if ev.Kind == KindCall && ev.Entry != nil {
			out = append(out, *ev.Entry)
		}
	}
	return out, sc.Err()
}

var (
	_ store.Sink          = (*Store)(nil)
	_ store.ExemplarStore = (*Store)(nil)
)
