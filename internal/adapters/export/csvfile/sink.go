// Package csvfile appends exported senders to a local CSV file. It stands in
// for the spreadsheet service behind the same port.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/senderwatch/internal/ports"
)

type Sink struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

var _ ports.ExportSink = (*Sink)(nil)

func New(path string) (*Sink, error) {
	if path == "" {
		return nil, errors.New("export file path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve export file path: %w", err)
	}

	return &Sink{path: filepath.Clean(absPath), now: time.Now}, nil
}

func (s *Sink) AppendSenders(ctx context.Context, senders []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(senders) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}

	writer := csv.NewWriter(file)
	stamp := s.now().UTC().Format(time.RFC3339)
	for _, sender := range senders {
		if err := writer.Write([]string{sender, stamp}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write export row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush export rows: %w", err)
	}
	return file.Close()
}
