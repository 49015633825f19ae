// Package storetest provides in-memory stores for tests.
package storetest

import (
	"context"
	"sync"

	"sales-coach-go/internal/store"
	"sales-coach-go/internal/types"
)

// Memory records everything appended to it. Set Err to make writes fail.
type Memory struct {
	mu        sync.Mutex
	Entries   []types.LogEntry
	Batches   []store.ExemplarBatch
	Err       error
	FailTimes int // fail this many writes before succeeding; 0 with Err set = always
	Closed    bool
	failed    int
}

func (m *Memory) fail() error {
	if m.Err == nil {
		return nil
	}
	if m.FailTimes == 0 || m.failed < m.FailTimes {
		m.failed++
		return m.Err
	}
	return nil
}

func (m *Memory) Append(_ context.Context, e types.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *Memory) AppendExemplars(_ context.Context, b store.ExemplarBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.Batches = append(m.Batches, b)
	return nil
}

// Phrases flattens every stored batch.
func (m *Memory) Phrases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.Batches {
		out = append(out, b.Phrases...)
	}
	return out
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var (
	_ store.Sink          = (*Memory)(nil)
	_ store.ExemplarStore = (*Memory)(nil)
)
