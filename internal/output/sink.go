// internal/output/sink.go

// Package output delivers collected batches to downstream systems: an HTTP
// ingestion endpoint, JSON lines files, Excel workbooks, MongoDB and NATS.
// Batches that cannot be delivered may be retained in an outbox and flushed later.
package output

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/valpere/FeedScrapexter/pkg/types"
)

// Sink receives finished batches.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, batch *types.Batch) error
	Close() error
}

// MultiSink fans a batch out to several sinks. Every sink is tried; the
// errors are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Name() string { return "multi" }

// Len returns the number of wrapped sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) Deliver(ctx context.Context, batch *types.Batch) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, batch *types.Batch) error

func (f SinkFunc) Name() string { return "func" }

func (f SinkFunc) Deliver(ctx context.Context, batch *types.Batch) error { return f(ctx, batch) }

func (f SinkFunc) Close() error { return nil }
