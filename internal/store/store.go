// Package store defines the append-only persistence contracts for call logs
// and exemplar phrases, plus a fan-out over several backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"sales-coach-go/internal/types"
)

// Sink appends complete LogEntry records. Implementations must make each
// Append all-or-nothing and safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, entry types.LogEntry) error
	Close() error
}

// ExemplarBatch is the set of phrases captured from one won call.
type ExemplarBatch struct {
	RunID    string
	URL      string
	CallType types.CallType
	Phrases  []string
	At       time.Time
}

// ExemplarStore appends exemplar phrases. Same atomicity rules as Sink.
type ExemplarStore interface {
	AppendExemplars(ctx context.Context, batch ExemplarBatch) error
	Close() error
}

// PersistenceError wraps an I/O failure while writing a record.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Multi fans out to every backend that implements Sink and/or ExemplarStore.
// Each write goes to all of them. A backend that fails is retried once on its
// own, so backends that already succeeded never see a duplicate; remaining
// failures are collected, not short-circuited.
type Multi struct {
	sinks     []Sink
	exemplars []ExemplarStore
	closers   []io.Closer
}

func NewMulti(backends ...io.Closer) *Multi {
	m := &Multi{}
	for _, b := range backends {
		if s, ok := b.(Sink); ok {
			m.sinks = append(m.sinks, s)
		}
		if e, ok := b.(ExemplarStore); ok {
			m.exemplars = append(m.exemplars, e)
		}
		m.closers = append(m.closers, b)
	}
	return m
}

func (m *Multi) Append(ctx context.Context, entry types.LogEntry) error {
	var errs []error
	for _, s := range m.sinks {
		if err := retryOnce(ctx, func() error { return s.Append(ctx, entry) }); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &PersistenceError{Op: "log entry", Err: err}
	}
	return nil
}

func (m *Multi) AppendExemplars(ctx context.Context, batch ExemplarBatch) error {
	if len(batch.Phrases) == 0 {
		return nil
	}
	var errs []error
	for _, e := range m.exemplars {
		if err := retryOnce(ctx, func() error { return e.AppendExemplars(ctx, batch) }); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &PersistenceError{Op: "exemplars", Err: err}
	}
	return nil
}

func retryOnce(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || ctx.Err() != nil {
		return err
	}
	return fn()
}

func (m *Multi) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink          = (*Multi)(nil)
	_ ExemplarStore = (*Multi)(nil)
)
