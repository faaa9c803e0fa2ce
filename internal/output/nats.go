// internal/output/nats.go
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// NATSSink publishes each batch as JSON on a subject. Trace context is carried
// in the message headers.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	timeout time.Duration
}

// NewNATSSink connects to url. An empty url uses the local default server.
func NewNATSSink(url, subject string, timeout time.Duration) (*NATSSink, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	if url == "" {
		url = nats.DefaultURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := nats.Connect(url,
		nats.Name("feedscrapexter"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject, timeout: timeout}, nil
}

func (s *NATSSink) Name() string { return "nats" }

// Deliver publishes and waits for the server to acknowledge the flush.
func (s *NATSSink) Deliver(ctx context.Context, batch *types.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return errors.Permanent(fmt.Errorf("failed to encode batch: %w", err))
	}
	msg := &nats.Msg{
		Subject: s.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Batch-Id", batch.ID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish batch %s: %w", batch.ID, err)
	}
	if err := s.conn.FlushTimeout(s.timeout); err != nil {
		return fmt.Errorf("failed to flush batch %s: %w", batch.ID, err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	s.conn.Close()
	return nil
}
