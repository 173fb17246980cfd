package sources

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

// StreamSource feeds a caller-supplied byte stream. With repeat set and a
// seekable stream, playback restarts from the beginning at every end of
// stream.
type StreamSource struct {
	host Host

	mu     sync.Mutex
	reader io.Reader
	repeat bool
	more   bool

	feeder *feeder
	closed bool
}

// NewStreamSource creates the adapter, inserts its elements into the host's
// pipeline, and starts feeding. The stream is not owned: it is never closed.
// Repeat requires the stream to implement io.Seeker.
func NewStreamSource(host Host, stream io.Reader, repeat bool) (*StreamSource, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream source: nil stream")
	}
	if repeat {
		if _, ok := stream.(io.Seeker); !ok {
			return nil, fmt.Errorf("stream source: repeat requires a seekable stream")
		}
	}

	eng := host.Engine()
	src, err := eng.NewSource("stream-source")
	if err != nil {
		return nil, fmt.Errorf("stream source: %w", err)
	}
	dec, err := eng.NewDecoder("stream-decoder")
	if err != nil {
		return nil, fmt.Errorf("stream source: %w", err)
	}
	dec.SetUseBuffering(false)

	s := &StreamSource{host: host, reader: stream, repeat: repeat}
	if err := host.AttachSourceElements(src, dec); err != nil {
		return nil, fmt.Errorf("stream source: %w", err)
	}
	s.feeder = newFeeder(src, s.readChunk, s.readFailed)
	return s, nil
}

func (s *StreamSource) readChunk(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	return s.reader.Read(p)
}

// readFailed reports a stream read failure. Local resource errors classify
// as device errors downstream.
func (s *StreamSource) readFailed(err error) {
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

func (s *StreamSource) Preprocess() {}

// HandleEndOfStream rewinds the stream when repeating. A rewind failure is a
// real failure; a non-repeating stream ends normally.
func (s *StreamSource) HandleEndOfStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.more = false
	if !s.repeat || s.closed {
		return true
	}
	seeker := s.reader.(io.Seeker)
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		slog.Error("stream source: rewind failed", "err", err)
		return false
	}
	s.more = true
	return true
}

func (s *StreamSource) HasAdditionalData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.more
}

func (s *StreamSource) IsPlaybackRemote() bool { return false }

func (s *StreamSource) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.feeder.stop()
}
