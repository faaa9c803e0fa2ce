// internal/output/retain.go
package output

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/internal/storage"
	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// ErrBatchRetained is returned when delivery failed and the batch was kept for
// a later flush.
var ErrBatchRetained = stderrors.New("batch retained for later delivery")

// Outboxer stores undelivered batches. *storage.Outbox implements it.
type Outboxer interface {
	Save(ctx context.Context, batch *types.Batch) error
	Pending(ctx context.Context, limit int) ([]storage.PendingBatch, error)
	MarkAttempt(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
	Count(ctx context.Context) (int, error)
}

var _ Outboxer = (*storage.Outbox)(nil)

// flushLimit caps how many retained batches are redelivered per flush.
const flushLimit = 100

// RetainingSink retries delivery to the wrapped sink and keeps failed batches
// in an outbox. Retained batches are flushed, oldest first, before each new
// delivery.
type RetainingSink struct {
	next   Sink
	outbox Outboxer
	retry  errors.RetryConfig
	maxAge time.Duration
	logger utils.Logger

	flushMu sync.Mutex
}

// NewRetainingSink wraps next.
func NewRetainingSink(next Sink, outbox Outboxer, retry errors.RetryConfig, maxAge time.Duration, logger utils.Logger) *RetainingSink {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &RetainingSink{
		next:   next,
		outbox: outbox,
		retry:  retry,
		maxAge: maxAge,
		logger: logger.WithField("sink", "retaining"),
	}
}

func (s *RetainingSink) Name() string { return "retaining(" + s.next.Name() + ")" }

// Deliver flushes earlier batches, then delivers batch with retries. If every
// attempt fails the batch is saved and ErrBatchRetained is returned.
func (s *RetainingSink) Deliver(ctx context.Context, batch *types.Batch) error {
	if _, err := s.Flush(ctx); err != nil {
		s.logger.Warnf("flush before delivery failed: %v", err)
	}

	err := errors.Retry(ctx, s.retry, "deliver batch", func(ctx context.Context) error {
		return s.next.Deliver(ctx, batch)
	})
	if err == nil {
		return nil
	}

	if saveErr := s.outbox.Save(ctx, batch); saveErr != nil {
		return stderrors.Join(err, fmt.Errorf("failed to retain batch: %w", saveErr))
	}
	s.logger.WithFields(map[string]interface{}{
		"batch_id": batch.ID,
		"error":    err.Error(),
	}).Warn("delivery failed, batch retained")
	return fmt.Errorf("%w: %v", ErrBatchRetained, err)
}

// Flush redelivers retained batches once each and returns how many went
// through. It stops at the first failure so that order is kept.
func (s *RetainingSink) Flush(ctx context.Context) (int, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	pending, err := s.outbox.Pending(ctx, flushLimit)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, p := range pending {
		if err := s.next.Deliver(ctx, p.Batch); err != nil {
			if markErr := s.outbox.MarkAttempt(ctx, p.Batch.ID); markErr != nil {
				s.logger.Errorf("failed to record attempt: %v", markErr)
			}
			return delivered, fmt.Errorf("redelivery of batch %s failed: %w", p.Batch.ID, err)
		}
		if err := s.outbox.Delete(ctx, p.Batch.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	if delivered > 0 {
		s.logger.Infof("redelivered %d retained batches", delivered)
	}
	return delivered, nil
}

// Prune drops retained batches older than the configured maximum age.
func (s *RetainingSink) Prune(ctx context.Context) (int64, error) {
	return s.outbox.Prune(ctx, s.maxAge)
}

// Pending returns the number of retained batches.
func (s *RetainingSink) Pending(ctx context.Context) (int, error) {
	return s.outbox.Count(ctx)
}

func (s *RetainingSink) Close() error {
	return s.next.Close()
}
