package sources

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

// ReaderSource feeds from a pull-style attachment reader. Unlike
// StreamSource the reader is owned: Shutdown closes it. Reads may block
// until the producer writes more data; that blocking stays on the feeder
// goroutine.
type ReaderSource struct {
	host Host

	mu     sync.Mutex
	reader io.ReadCloser
	closed bool

	feeder *feeder
}

// NewReaderSource creates the adapter, inserts its elements into the host's
// pipeline, and starts feeding.
func NewReaderSource(host Host, reader io.ReadCloser) (*ReaderSource, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader source: nil reader")
	}

	eng := host.Engine()
	src, err := eng.NewSource("attachment-source")
	if err != nil {
		return nil, fmt.Errorf("reader source: %w", err)
	}
	dec, err := eng.NewDecoder("attachment-decoder")
	if err != nil {
		return nil, fmt.Errorf("reader source: %w", err)
	}
	dec.SetUseBuffering(false)

	s := &ReaderSource{host: host, reader: reader}
	if err := host.AttachSourceElements(src, dec); err != nil {
		return nil, fmt.Errorf("reader source: %w", err)
	}
	s.feeder = newFeeder(src, s.readChunk, s.readFailed)
	return s, nil
}

func (s *ReaderSource) readChunk(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}
	r := s.reader
	s.mu.Unlock()
	// The read itself runs unlocked: it may block until the producer
	// delivers more data, and Shutdown must not wait behind it.
	return r.Read(p)
}

// readFailed reports an attachment read failure. Shutdown closes the reader
// to unblock a parked Read; the error that surfaces then is not reported.
func (s *ReaderSource) readFailed(err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.host.ReportError(&pipeline.EngineError{
		Domain:     pipeline.DomainResource,
		FromSource: true,
		Message:    err.Error(),
	})
}

func (s *ReaderSource) Preprocess() {}

// HandleEndOfStream: an attachment drains exactly once.
func (s *ReaderSource) HandleEndOfStream() bool { return true }

func (s *ReaderSource) HasAdditionalData() bool { return false }

func (s *ReaderSource) IsPlaybackRemote() bool { return false }

func (s *ReaderSource) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	reader := s.reader
	s.mu.Unlock()

	// Closing first unblocks a feeder goroutine parked in Read.
	if err := reader.Close(); err != nil {
		slog.Warn("reader source: close failed", "err", err)
	}
	s.feeder.stop()
}
