// internal/output/manager.go
package output

import (
	"context"
	"fmt"

	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// Manager builds the configured sinks and is itself the Sink the collector
// hands batches to.
type Manager struct {
	sink      Sink
	retaining *RetainingSink
	logger    utils.Logger
}

// NewManager creates the sinks listed in cfg. When retention is enabled the
// outbox must be non-nil.
func NewManager(ctx context.Context, cfg *config.OutputConfig, outbox Outboxer, logger utils.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("output configuration is required")
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithField("component", "output")

	sinks := make([]Sink, 0, len(cfg.Sinks))
	for i, sc := range cfg.Sinks {
		s, err := newSink(ctx, sc, logger)
		if err != nil {
			for _, built := range sinks {
				built.Close()
			}
			return nil, fmt.Errorf("output sink %d (%s): %w", i, sc.Type, err)
		}
		sinks = append(sinks, s)
	}

	var sink Sink
	if len(sinks) == 0 {
		sink = NewLogSink(logger)
	} else {
		sink = NewMultiSink(sinks...)
	}

	m := &Manager{sink: sink, logger: logger}
	if cfg.Retention.Enabled {
		if outbox == nil {
			sink.Close()
			return nil, fmt.Errorf("retention is enabled but no outbox is available")
		}
		m.retaining = NewRetainingSink(sink, outbox, cfg.Retention.Retry, cfg.Retention.MaxAge, logger)
		m.sink = m.retaining
	}
	return m, nil
}

func newSink(ctx context.Context, sc config.SinkConfig, logger utils.Logger) (Sink, error) {
	switch sc.Type {
	case config.SinkHTTP:
		return NewHTTPSink(sc.Endpoint, sc.APIKey, sc.Timeout, logger)
	case config.SinkJSON:
		return NewJSONSink(sc.Path)
	case config.SinkExcel:
		return NewExcelSink(sc.Path)
	case config.SinkMongoDB:
		return NewMongoSink(ctx, MongoOptions{
			URI:        sc.URI,
			Database:   sc.Database,
			Collection: sc.Collection,
			Timeout:    sc.Timeout,
		}, logger)
	case config.SinkNATS:
		return NewNATSSink(sc.URL, sc.Subject, sc.Timeout)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", sc.Type)
	}
}

func (m *Manager) Name() string { return m.sink.Name() }

// Deliver hands the batch to the configured sinks.
func (m *Manager) Deliver(ctx context.Context, batch *types.Batch) error {
	return m.sink.Deliver(ctx, batch)
}

// Flush redelivers retained batches. Without retention it does nothing.
func (m *Manager) Flush(ctx context.Context) (int, error) {
	if m.retaining == nil {
		return 0, nil
	}
	return m.retaining.Flush(ctx)
}

// Prune applies the retention age limit.
func (m *Manager) Prune(ctx context.Context) (int64, error) {
	if m.retaining == nil {
		return 0, nil
	}
	return m.retaining.Prune(ctx)
}

// Pending returns the number of retained batches.
func (m *Manager) Pending(ctx context.Context) (int, error) {
	if m.retaining == nil {
		return 0, nil
	}
	return m.retaining.Pending(ctx)
}

// Retaining reports whether failed batches are kept for later delivery.
func (m *Manager) Retaining() bool {
	return m.retaining != nil
}

func (m *Manager) Close() error {
	return m.sink.Close()
}

// LogSink only logs a summary of each batch.
type LogSink struct {
	logger utils.Logger
}

// NewLogSink creates a sink that logs batches.
func NewLogSink(logger utils.Logger) *LogSink {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, batch *types.Batch) error {
	s.logger.WithFields(map[string]interface{}{
		"batch_id":      batch.ID,
		"page_type":     batch.PageType,
		"videos":        len(batch.Videos),
		"shorts":        len(batch.Shorts),
		"recommended":   len(batch.RecommendedVideos),
		"subscriptions": len(batch.Subscriptions),
	}).Info("batch collected")
	return nil
}

func (s *LogSink) Close() error { return nil }
