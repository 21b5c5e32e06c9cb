package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ReaderSource replays a captured NMEA stream from any reader.
type ReaderSource struct {
	reader io.Reader
	closer io.Closer
	logger *logrus.Logger
	delay  time.Duration
	name   string
}

// NewReaderSource creates a source reading from r.
func NewReaderSource(r io.Reader, logger *logrus.Logger) *ReaderSource {
	return &ReaderSource{
		reader: r,
		logger: logger,
		name:   "reader",
	}
}

// OpenReplay opens a capture file for replay. delay is inserted between
// chunks to approximate the pace of a live receiver; zero replays as fast
// as possible.
func OpenReplay(path string, delay time.Duration, logger *logrus.Logger) (*ReaderSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}

	return &ReaderSource{
		reader: f,
		closer: f,
		logger: logger,
		delay:  delay,
		name:   path,
	}, nil
}

// StartCapture sends the stream on dataChan in chunks and returns once the
// reader is exhausted or the context is cancelled.
func (s *ReaderSource) StartCapture(ctx context.Context, dataChan chan<- []byte) error {
	s.logger.WithField("source", s.name).Info("Starting replay")

	var total int
	buf := make([]byte, ReadChunkSize)
	for {
		n, err := s.reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case dataChan <- chunk:
				total += n
			case <-ctx.Done():
				return nil
			}
		}

		if errors.Is(err, io.EOF) {
			s.logger.WithFields(logrus.Fields{
				"source": s.name,
				"bytes":  total,
			}).Info("Replay finished")
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay read failed: %w", err)
		}

		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Close closes the underlying file, if any.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
