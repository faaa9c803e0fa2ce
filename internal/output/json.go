// internal/output/json.go
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/valpere/FeedScrapexter/pkg/types"
)

// JSONSink appends each batch as one JSON line.
type JSONSink struct {
	filename string
	mu       sync.Mutex
	file     *os.File
}

// NewJSONSink opens filename for appending, creating it and its directory.
func NewJSONSink(filename string) (*JSONSink, error) {
	if filename == "" {
		return nil, fmt.Errorf("json sink path is required")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &JSONSink{
		filename: filename,
		file:     file,
	}, nil
}

func (s *JSONSink) Name() string { return "json" }

// Deliver writes the batch and syncs the file.
func (s *JSONSink) Deliver(_ context.Context, batch *types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("json sink %s is closed", s.filename)
	}
	if err := json.NewEncoder(s.file).Encode(batch); err != nil {
		return fmt.Errorf("failed to write batch %s: %w", batch.ID, err)
	}
	return s.file.Sync()
}

// Close closes the JSON sink
func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
