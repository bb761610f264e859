package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"mini-shuffle/internal/common"
)

// Sink recibe el resultado de un job terminado.
type Sink interface {
	Write(ctx context.Context, jobID string, entries []common.Entry) error
	Close() error
}

// WriterSink escribe una línea "(clave, valor)" por entrada.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(ctx context.Context, jobID string, entries []common.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(s.w, e.String()); err != nil {
			return fmt.Errorf("job %s: escribiendo resultado: %w", jobID, err)
		}
	}
	return nil
}

// Close cierra el writer si es un io.Closer.
func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
