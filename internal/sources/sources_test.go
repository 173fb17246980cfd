package sources_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kohtzk/mediaplayer-go/internal/fetcher"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline/enginemock"
	"github.com/kohtzk/mediaplayer-go/internal/sources"
)

// testHost implements sources.Host over the mock engine, recording reported
// errors.
type testHost struct {
	eng *enginemock.Engine
	ap  *pipeline.AudioPipeline

	mu     sync.Mutex
	errors []*pipeline.EngineError
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	eng := enginemock.New()
	ap, err := pipeline.NewAudioPipeline(eng)
	if err != nil {
		t.Fatalf("NewAudioPipeline failed: %v", err)
	}
	return &testHost{eng: eng, ap: ap}
}

func (h *testHost) Engine() pipeline.Engine { return h.eng }

func (h *testHost) AttachSourceElements(src pipeline.SourceElement, dec pipeline.DecoderElement) error {
	return h.ap.SetSourceElements(src, dec)
}

func (h *testHost) ReportError(err *pipeline.EngineError) {
	h.mu.Lock()
	h.errors = append(h.errors, err)
	h.mu.Unlock()
}

func (h *testHost) reportedErrors() []*pipeline.EngineError {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*pipeline.EngineError, len(h.errors))
	copy(out, h.errors)
	return out
}

func (h *testHost) mockSource(t *testing.T) *enginemock.Source {
	t.Helper()
	src, ok := h.ap.Source().(*enginemock.Source)
	if !ok {
		t.Fatal("no mock source attached")
	}
	return src
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStreamSourceFeedsOnDemand(t *testing.T) {
	host := newTestHost(t)
	s, err := sources.NewStreamSource(host, strings.NewReader("compressed-audio"), false)
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}
	defer s.Shutdown()

	src := host.mockSource(t)
	src.TriggerNeedData(0)
	waitFor(t, "stream bytes", func() bool {
		return string(src.Pushed()) == "compressed-audio"
	})

	// Next request hits EOF and signals end of stream.
	src.TriggerNeedData(0)
	waitFor(t, "EOS", src.EOSReceived)

	if s.HasAdditionalData() {
		t.Error("non-repeating stream must not report additional data")
	}
	if !s.HandleEndOfStream() {
		t.Error("HandleEndOfStream should succeed")
	}
	if s.IsPlaybackRemote() {
		t.Error("stream source is local")
	}
}

func TestStreamSourceRepeatRewinds(t *testing.T) {
	host := newTestHost(t)
	s, err := sources.NewStreamSource(host, bytes.NewReader([]byte("abc")), true)
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}
	defer s.Shutdown()

	src := host.mockSource(t)
	src.TriggerNeedData(0)
	waitFor(t, "first pass", func() bool { return string(src.Pushed()) == "abc" })

	if !s.HandleEndOfStream() {
		t.Fatal("HandleEndOfStream failed")
	}
	if !s.HasAdditionalData() {
		t.Fatal("repeating stream must report additional data")
	}

	// After the rewind the same bytes flow again.
	src.TriggerNeedData(0)
	waitFor(t, "second pass", func() bool { return string(src.Pushed()) == "abcabc" })
}

func TestStreamSourceRepeatNeedsSeeker(t *testing.T) {
	host := newTestHost(t)
	var nonSeekable io.Reader = iotest{strings.NewReader("x")}
	if _, err := sources.NewStreamSource(host, nonSeekable, true); err == nil {
		t.Fatal("repeat over a non-seekable stream should fail construction")
	}
}

// iotest hides the Seeker half of strings.Reader.
type iotest struct{ r io.Reader }

func (w iotest) Read(p []byte) (int, error) { return w.r.Read(p) }

func TestReaderSourceOwnsReader(t *testing.T) {
	host := newTestHost(t)
	reader := &closeTracker{Reader: strings.NewReader("payload")}
	s, err := sources.NewReaderSource(host, reader)
	if err != nil {
		t.Fatalf("NewReaderSource failed: %v", err)
	}

	src := host.mockSource(t)
	src.TriggerNeedData(0)
	waitFor(t, "reader bytes", func() bool { return string(src.Pushed()) == "payload" })

	if s.HasAdditionalData() {
		t.Error("reader source never has additional data")
	}

	s.Shutdown()
	if !reader.closed {
		t.Error("Shutdown must close the owned reader")
	}
	s.Shutdown() // idempotent
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestURLSourcePlaysEntriesInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/one.mp3":
			_, _ = w.Write([]byte("first"))
		case "/two.mp3":
			_, _ = w.Write([]byte("second"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	host := newTestHost(t)
	factory := fetcher.NewHTTPFactoryWithClient(srv.Client())
	s, err := sources.NewURLSource(host, factory, []string{srv.URL + "/one.mp3", srv.URL + "/two.mp3"})
	if err != nil {
		t.Fatalf("NewURLSource failed: %v", err)
	}
	defer s.Shutdown()

	if !s.IsPlaybackRemote() {
		t.Error("url source is remote")
	}
	dec, ok := host.ap.Decoder().(*enginemock.Decoder)
	if !ok || !dec.UseBuffering() {
		t.Error("url decoder must want buffering")
	}

	src := host.mockSource(t)
	src.TriggerNeedData(0)
	waitFor(t, "first entry", func() bool { return string(src.Pushed()) == "first" })
	src.TriggerNeedData(0)
	waitFor(t, "first entry EOS", src.EOSReceived)

	if !s.HandleEndOfStream() {
		t.Fatal("HandleEndOfStream failed")
	}
	if !s.HasAdditionalData() {
		t.Fatal("second entry should be queued")
	}

	src.TriggerNeedData(0)
	waitFor(t, "second entry", func() bool { return string(src.Pushed()) == "firstsecond" })

	if !s.HandleEndOfStream() {
		t.Fatal("HandleEndOfStream failed at last entry")
	}
	if s.HasAdditionalData() {
		t.Error("no entries remain")
	}
}

func TestURLSourceFetchFailureReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.mp3":
			_, _ = w.Write([]byte("good"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	host := newTestHost(t)
	factory := fetcher.NewHTTPFactoryWithClient(srv.Client())
	s, err := sources.NewURLSource(host, factory, []string{srv.URL + "/good.mp3", srv.URL + "/gone.mp3"})
	if err != nil {
		t.Fatalf("NewURLSource failed: %v", err)
	}
	defer s.Shutdown()

	src := host.mockSource(t)
	src.TriggerNeedData(0)
	waitFor(t, "first entry", func() bool { return string(src.Pushed()) == "good" })
	src.TriggerNeedData(0)
	waitFor(t, "first entry EOS", src.EOSReceived)

	if !s.HandleEndOfStream() || !s.HasAdditionalData() {
		t.Fatal("second entry should be queued")
	}

	// The second entry 404s: an error is reported, not a fake end of stream.
	src.TriggerNeedData(0)
	waitFor(t, "reported error", func() bool { return len(host.reportedErrors()) == 1 })

	engErr := host.reportedErrors()[0]
	if engErr.Domain != pipeline.DomainNetwork {
		t.Errorf("domain = %v, want DomainNetwork", engErr.Domain)
	}
	if !engErr.FromSource {
		t.Error("error must be marked as source-originated")
	}
	if engErr.HTTPStatus != http.StatusNotFound {
		t.Errorf("http status = %d, want 404", engErr.HTTPStatus)
	}
}

func TestURLSourceNoEntries(t *testing.T) {
	host := newTestHost(t)
	if _, err := sources.NewURLSource(host, fetcher.NewHTTPFactory(), nil); err == nil {
		t.Fatal("empty entry list should fail construction")
	}
}
