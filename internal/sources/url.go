package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kohtzk/mediaplayer-go/internal/fetcher"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
	"github.com/kohtzk/mediaplayer-go/internal/playlist"
)

// URLSource plays remote content. The URL is expanded through the playlist
// parser before construction, on the preparation goroutine: expansion blocks
// on fetcher traffic and must stay off the dispatcher. The adapter then
// streams each entry in order, advancing at end of stream.
type URLSource struct {
	host    Host
	factory fetcher.Factory

	mu      sync.Mutex
	entries []string
	idx     int
	body    io.ReadCloser
	more    bool
	closed  bool

	cancel context.CancelFunc
	feeder *feeder
}

// ExpandURL runs playlist expansion. Blocking; never call on the dispatcher.
func ExpandURL(ctx context.Context, parser playlist.Parser, rawURL string) ([]string, error) {
	entries, err := parser.Expand(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("url source: expand %s: %w", rawURL, err)
	}
	return entries, nil
}

// NewURLSource creates the adapter over already-expanded entries, inserts
// its elements into the host's pipeline, and starts feeding the first entry.
func NewURLSource(host Host, factory fetcher.Factory, entries []string) (*URLSource, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("url source: no entries")
	}

	eng := host.Engine()
	src, err := eng.NewSource("url-source")
	if err != nil {
		return nil, fmt.Errorf("url source: %w", err)
	}
	dec, err := eng.NewDecoder("url-decoder")
	if err != nil {
		return nil, fmt.Errorf("url source: %w", err)
	}
	// Remote content prerolls through the buffering path.
	dec.SetUseBuffering(true)

	ctx, cancel := context.WithCancel(context.Background())
	s := &URLSource{
		host:    host,
		factory: factory,
		entries: entries,
		cancel:  cancel,
	}
	if err := host.AttachSourceElements(src, dec); err != nil {
		cancel()
		return nil, fmt.Errorf("url source: %w", err)
	}
	s.feeder = newFeeder(src,
		func(p []byte) (int, error) { return s.readChunk(ctx, p) },
		s.fetchFailed)
	return s, nil
}

// readChunk streams the current entry, opening its body lazily.
func (s *URLSource) readChunk(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}
	if s.body == nil {
		url := s.entries[s.idx]
		s.mu.Unlock()
		content, err := s.factory.New(url).Fetch(ctx)
		if err != nil {
			slog.Error("url source: fetch failed", "url", url, "err", err)
			return 0, err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			content.Body.Close()
			return 0, io.EOF
		}
		s.body = content.Body
	}
	body := s.body
	s.mu.Unlock()
	return body.Read(p)
}

// fetchFailed reports a fetch or body-read failure onto the bus path so the
// player raises a playback error instead of treating it as end of stream.
// HTTP status failures keep their code for error classification.
func (s *URLSource) fetchFailed(err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	engErr := &pipeline.EngineError{
		Domain:     pipeline.DomainNetwork,
		FromSource: true,
		Message:    err.Error(),
	}
	var statusErr *fetcher.StatusError
	if errors.As(err, &statusErr) {
		engErr.HTTPStatus = statusErr.Code
	}
	s.host.ReportError(engErr)
}

func (s *URLSource) Preprocess() {}

// HandleEndOfStream advances to the next playlist entry if one remains.
func (s *URLSource) HandleEndOfStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
	if !s.closed && s.idx+1 < len(s.entries) {
		s.idx++
		s.more = true
	} else {
		s.more = false
	}
	return true
}

func (s *URLSource) HasAdditionalData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.more
}

func (s *URLSource) IsPlaybackRemote() bool { return true }

func (s *URLSource) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	body := s.body
	s.body = nil
	s.mu.Unlock()

	// Cancel in-flight fetches before joining the feeder.
	s.cancel()
	if body != nil {
		body.Close()
	}
	s.feeder.stop()
}
