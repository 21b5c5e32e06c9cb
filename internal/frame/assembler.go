package frame

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"gpsnmea/internal/nmea"
)

// DefaultBufferSize is the line buffer capacity used by the receiver.
const DefaultBufferSize = 128

// SentenceParser consumes validated sentences.
type SentenceParser interface {
	Parse(sentence []byte) nmea.ParseResult
}

// Stats holds running counters of the assembler.
type Stats struct {
	Bytes     uint64
	Sentences uint64
	Overflows uint64
	Valid     uint64

	RejectedMissingStart    uint64
	RejectedTooLong         uint64
	RejectedMissingChecksum uint64
	RejectedChecksum        uint64

	ParsedGGA uint64
	ParsedRMC uint64
	ParsedVTG uint64
	Unknown   uint64
	Partial   uint64
	Empty     uint64 // recognized but no field could be read
}

// Rejected returns the number of sentences that failed validation.
func (s Stats) Rejected() uint64 {
	return s.RejectedMissingStart + s.RejectedTooLong + s.RejectedMissingChecksum + s.RejectedChecksum
}

// Assembler reassembles sentences from a byte stream.
//
// Bytes accumulate in a fixed size line buffer until a line feed arrives or
// the buffer is full. The buffered bytes are then validated, parsed when
// valid, and the buffer is cleared. A full buffer is handled exactly like a
// terminator: the overflowing byte is dropped and the truncated content is
// checked as a sentence, which normally fails validation.
type Assembler struct {
	logger *logrus.Logger
	parser SentenceParser
	buffer []byte
	index  int

	mu    sync.Mutex
	stats Stats
}

// NewAssembler creates an assembler with a line buffer of size bytes.
func NewAssembler(size int, parser SentenceParser, logger *logrus.Logger) *Assembler {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Assembler{
		logger: logger,
		parser: parser,
		buffer: make([]byte, size),
	}
}

// Capacity returns the line buffer size.
func (a *Assembler) Capacity() int {
	return len(a.buffer)
}

// Pending returns the number of bytes held for the sentence in progress.
func (a *Assembler) Pending() int {
	return a.index
}

// SubmitByte accepts one byte from the serial source. It never fails; a
// rejected sentence only shows up in Stats.
func (a *Assembler) SubmitByte(b byte) {
	a.mu.Lock()
	a.stats.Bytes++
	a.mu.Unlock()

	if b != nmea.LineTerminator && a.index < len(a.buffer) {
		a.buffer[a.index] = b
		a.index++
		return
	}

	a.terminate(b != nmea.LineTerminator)
}

// Write submits every byte of p in order. It implements io.Writer so a
// source can be copied straight into the assembler.
func (a *Assembler) Write(p []byte) (int, error) {
	for _, b := range p {
		a.SubmitByte(b)
	}
	return len(p), nil
}

// Run feeds chunks received on dataChan through SubmitByte until the
// context is done or the channel is closed.
func (a *Assembler) Run(ctx context.Context, dataChan <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Sentence assembly stopped")
			return
		case data, ok := <-dataChan:
			if !ok {
				a.logger.Debug("Byte source closed")
				return
			}
			for _, b := range data {
				a.SubmitByte(b)
			}
		}
	}
}

// terminate validates and parses the buffered line, then resets the buffer.
func (a *Assembler) terminate(overflow bool) {
	line := a.buffer[:a.index]

	if a.logger.IsLevelEnabled(logrus.DebugLevel) {
		a.logger.WithFields(logrus.Fields{
			"line":     string(line),
			"length":   len(line),
			"overflow": overflow,
		}).Debug("Line received")
	}

	err := nmea.Validate(line)
	var result nmea.ParseResult
	if err == nil {
		result = a.parser.Parse(line)
	} else if len(line) > 0 {
		a.logger.WithError(err).WithField("length", len(line)).Debug("Sentence rejected")
	}

	a.record(overflow, err, result)

	a.index = 0
	clear(a.buffer)
}

func (a *Assembler) record(overflow bool, err error, result nmea.ParseResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Sentences++
	if overflow {
		a.stats.Overflows++
	}

	switch {
	case err == nil:
		a.stats.Valid++
	case errors.Is(err, nmea.ErrMissingStart):
		a.stats.RejectedMissingStart++
		return
	case errors.Is(err, nmea.ErrTooLong):
		a.stats.RejectedTooLong++
		return
	case errors.Is(err, nmea.ErrMissingChecksum):
		a.stats.RejectedMissingChecksum++
		return
	default:
		a.stats.RejectedChecksum++
		return
	}

	switch result.Kind {
	case nmea.KindGGA:
		a.stats.ParsedGGA++
	case nmea.KindRMC:
		a.stats.ParsedRMC++
	case nmea.KindVTG:
		a.stats.ParsedVTG++
	default:
		a.stats.Unknown++
		return
	}

	if !result.Updated() {
		a.stats.Empty++
	} else if result.Partial() {
		a.stats.Partial++
	}
}

// Stats returns a copy of the counters.
func (a *Assembler) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
