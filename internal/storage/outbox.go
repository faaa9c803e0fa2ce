// internal/storage/outbox.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valpere/FeedScrapexter/pkg/types"
)

// Outbox keeps batches whose delivery failed until they are flushed.
type Outbox struct {
	db  *DB
	now func() time.Time
}

// NewOutbox returns the outbox of db.
func NewOutbox(db *DB) *Outbox {
	return &Outbox{db: db, now: time.Now}
}

// PendingBatch is a retained batch with its delivery bookkeeping.
type PendingBatch struct {
	Batch     *types.Batch
	CreatedAt time.Time
	Attempts  int
}

// Save retains a batch. Saving the same batch twice keeps the first copy.
func (o *Outbox) Save(ctx context.Context, batch *types.Batch) error {
	if batch == nil {
		return nil
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", batch.ID, err)
	}
	_, err = o.db.db.ExecContext(ctx, o.db.rebind(o.db.dialect.insertBatch),
		batch.ID, string(payload), o.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to retain batch %s: %w", batch.ID, err)
	}
	o.db.logger.WithFields(map[string]interface{}{
		"batch_id": batch.ID,
		"records":  batch.Len(),
	}).Info("batch retained for later delivery")
	return nil
}

// Pending returns up to limit retained batches, oldest first. limit <= 0 means all.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]PendingBatch, error) {
	query := `SELECT batch_id, payload, created_at, attempts FROM pending_batches ORDER BY created_at, batch_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := o.db.db.QueryContext(ctx, o.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending batches: %w", err)
	}
	defer rows.Close()

	var (
		out        []PendingBatch
		unreadable []string
	)
	for rows.Next() {
		var (
			id, payload string
			created     int64
			attempts    int
		)
		if err := rows.Scan(&id, &payload, &created, &attempts); err != nil {
			return nil, fmt.Errorf("failed to read pending batch: %w", err)
		}
		var batch types.Batch
		if err := json.Unmarshal([]byte(payload), &batch); err != nil {
			o.db.logger.WithField("batch_id", id).Errorf("dropping unreadable pending batch: %v", err)
			unreadable = append(unreadable, id)
			continue
		}
		out = append(out, PendingBatch{Batch: &batch, CreatedAt: time.UnixMilli(created), Attempts: attempts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pending batches: %w", err)
	}
	rows.Close()

	// sqlite allows one connection, so deletes wait until the rows are closed
	for _, id := range unreadable {
		if err := o.Delete(ctx, id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MarkAttempt records a failed redelivery.
func (o *Outbox) MarkAttempt(ctx context.Context, id string) error {
	_, err := o.db.db.ExecContext(ctx,
		o.db.rebind(`UPDATE pending_batches SET attempts = attempts + 1 WHERE batch_id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to update pending batch %s: %w", id, err)
	}
	return nil
}

// Delete removes a batch once delivered.
func (o *Outbox) Delete(ctx context.Context, id string) error {
	_, err := o.db.db.ExecContext(ctx, o.db.rebind(`DELETE FROM pending_batches WHERE batch_id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete pending batch %s: %w", id, err)
	}
	return nil
}

// Prune drops batches older than maxAge and returns how many were removed.
func (o *Outbox) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := o.now().Add(-maxAge).UnixMilli()
	res, err := o.db.db.ExecContext(ctx, o.db.rebind(`DELETE FROM pending_batches WHERE created_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune pending batches: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		o.db.logger.Warnf("pruned %d undelivered batches older than %s", n, maxAge)
	}
	return n, nil
}

// Count returns the number of retained batches.
func (o *Outbox) Count(ctx context.Context) (int, error) {
	var n int
	if err := o.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_batches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending batches: %w", err)
	}
	return n, nil
}
