// Package textfile writes the human-readable logs: a detailed feedback log,
// a one-line-per-call running log and the master exemplar phrase file.
package textfile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"sales-coach-go/internal/store"
	"sales-coach-go/internal/types"
)

const timestampLayout = "2006-01-02 15:04:05"

const (
	heavyRule = "============================================================"
	lightRule = "--------------------------------------------------"
)

var titler = cases.Title(language.English)

// Store appends to three plain text files. Each record is rendered fully in
// memory and written with a single write on an O_APPEND descriptor.
type Store struct {
	mu           sync.Mutex
	feedbackPath string
	dailyPath    string
	exemplarPath string

	// entry IDs already in the feedback log whose daily line is still missing
	pendingDaily map[string]struct{}
}

func New(feedbackPath, dailyPath, exemplarPath string) *Store {
	return &Store{
		feedbackPath: feedbackPath,
		dailyPath:    dailyPath,
		exemplarPath: exemplarPath,
		pendingDaily: map[string]struct{}{},
	}
}

// Append writes the detailed record and then the daily line. When only the
// daily line fails, a later Append of the same entry ID writes just that line.
func (s *Store) Append(_ context.Context, e types.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, pending := s.pendingDaily[e.ID]; !pending || e.ID == "" {
		if err := appendFile(s.feedbackPath, RenderEntry(e)); err != nil {
			return err
		}
	}
	if err := appendFile(s.dailyPath, RenderDaily(e)); err != nil {
		if e.ID != "" {
			s.pendingDaily[e.ID] = struct{}{}
		}
		return err
	}
	delete(s.pendingDaily, e.ID)
	return nil
}

func (s *Store) AppendExemplars(_ context.Context, b store.ExemplarBatch) error {
	if len(b.Phrases) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendFile(s.exemplarPath, RenderExemplars(b))
}

func (s *Store) Close() error { return nil }

// RenderEntry formats the detailed feedback log record.
func RenderEntry(e types.LogEntry) string {
	var b strings.Builder
	b.WriteString("\n" + heavyRule + "\n")
	fmt.Fprintf(&b, "CALL TIMESTAMP: %s\n", e.Timestamp.Format(timestampLayout))
	fmt.Fprintf(&b, "URL: %s\n", e.URL)
	b.WriteString(lightRule + "\n")
	fmt.Fprintf(&b, "CALL TYPE: %s\n", e.Classification.Type)
	fmt.Fprintf(&b, "OUTCOME:   %s\n", e.Classification.Outcome)
	b.WriteString(lightRule + "\n")
	fmt.Fprintf(&b, "SUMMARY:\n%s\n", e.Summary)
	b.WriteString(lightRule + "\n")
	fmt.Fprintf(&b, "SCORES & NOTES:\n%s\n", FormatScores(e.Scores))
	b.WriteString(lightRule + "\n")
	b.WriteString(strings.TrimRight(e.Feedback, "\n") + "\n")
	b.WriteString(heavyRule + "\n")
	return b.String()
}

// RenderDaily formats the single-line running log record.
func RenderDaily(e types.LogEntry) string {
	return fmt.Sprintf("[%s] %s (%s) | URL: %s\n",
		e.Timestamp.Format(timestampLayout), e.Classification.Type, e.Classification.Outcome, e.URL)
}

// RenderExemplars formats one block of winning phrases.
func RenderExemplars(b store.ExemplarBatch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n--- WINNING PHRASES (%s) - %d ---\n", b.CallType, b.At.Unix())
	for _, p := range b.Phrases {
		fmt.Fprintf(&sb, "» %s\n", p)
	}
	return sb.String()
}

// FormatScores renders one "   - Label: value" line per score, notes last.
func FormatScores(s types.Scores) string {
	var b strings.Builder
	for _, m := range s.Metrics() {
		fmt.Fprintf(&b, "   - %s Score: %d\n", label(m.Name), m.Value)
	}
	if s.Notes != "" {
		fmt.Fprintf(&b, "   - Notes: %s\n", s.Notes)
	}
	return b.String()
}

func label(key string) string {
	return titler.String(strings.ReplaceAll(key, "_", " "))
}

func appendFile(path, record string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("textfile: open %s: %w", path, err)
	}
	if _, err := f.WriteString(record); err != nil {
		f.Close()
		return fmt.Errorf("textfile: write %s: %w", path, err)
	}
	return f.Close()
}

var (
	_ store.Sink          = (*Store)(nil)
	_ store.ExemplarStore = (*Store)(nil)
)
