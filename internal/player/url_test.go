package player_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kohtzk/mediaplayer-go/internal/fetcher"
	"github.com/kohtzk/mediaplayer-go/internal/models"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline/enginemock"
	"github.com/kohtzk/mediaplayer-go/internal/player"
)

func newURLFixture(t *testing.T) (*fixture, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list.m3u":
			_, _ = w.Write([]byte("#EXTM3U\ntrack1.mp3\ntrack2.mp3\n"))
		case "/track1.mp3", "/track2.mp3":
			_, _ = w.Write([]byte("mp3-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	eng := enginemock.New()
	p, err := player.New(player.Config{
		Engine:         eng,
		FetcherFactory: fetcher.NewHTTPFactoryWithClient(srv.Client()),
	})
	if err != nil {
		t.Fatalf("player.New failed: %v", err)
	}
	t.Cleanup(p.Shutdown)

	obs := &recorder{}
	p.SetObserver(obs)
	return &fixture{eng: eng, mp: eng.Pipelines()[0], p: p, obs: obs}, srv
}

func TestSetSourceURLExpandsPlaylist(t *testing.T) {
	f, srv := newURLFixture(t)

	id := f.p.SetSourceURL(srv.URL + "/list.m3u")
	if id == models.ErrorSourceID {
		t.Fatal("SetSourceURL failed")
	}
	if !f.mp.Contains("url-source") || !f.mp.Contains("url-decoder") {
		t.Fatal("url elements not attached")
	}

	// Remote content prerolls via the buffering path: play requests PAUSED.
	if !f.p.Play(id) {
		t.Fatal("Play failed")
	}
	states := f.mp.SetStates()
	if states[len(states)-1] != pipeline.StatePaused {
		t.Errorf("play requested %v, want trailing PAUSED", states)
	}

	// Preroll completes; refill pushes to PLAYING and started arrives.
	f.mp.EmitBuffering(100)
	f.mp.EmitStateChanged(pipeline.StateReady, pipeline.StatePlaying, pipeline.StateVoidPending)
	assertNames(t, f.obs.wait(t, 1), "started")
}

func TestSetSourceURLBadPlaylist(t *testing.T) {
	f, srv := newURLFixture(t)
	if id := f.p.SetSourceURL(srv.URL + "/missing.m3u"); id != models.ErrorSourceID {
		t.Errorf("SetSourceURL = %d, want error id", id)
	}
	if len(f.obs.snapshot()) != 0 {
		t.Errorf("construction failure fired events: %v", f.obs.names())
	}
}

func TestSetSourceURLReplacesPrevious(t *testing.T) {
	f, srv := newURLFixture(t)

	first := f.p.SetSourceURL(srv.URL + "/list.m3u")
	second := f.p.SetSourceURL(srv.URL + "/list.m3u")
	if second <= first {
		t.Errorf("ids not increasing: %d then %d", first, second)
	}

	// The replaced live id observed stopped; the new one is commandable.
	events := f.obs.wait(t, 1)
	assertNames(t, events, "stopped")
	if events[0].id != first {
		t.Errorf("stopped carried id %d, want %d", events[0].id, first)
	}
	if !f.p.Play(second) {
		t.Error("Play on the fresh id failed")
	}
}

func TestURLPlaylistAdvanceOnEOS(t *testing.T) {
	f, srv := newURLFixture(t)

	id := f.p.SetSourceURL(srv.URL + "/list.m3u")
	f.p.Play(id)
	f.mp.EmitBuffering(100)
	f.mp.EmitStateChanged(pipeline.StateReady, pipeline.StatePlaying, pipeline.StateVoidPending)
	f.obs.wait(t, 1)

	// First entry drains: the playlist has another, so the pipeline cycles
	// NULL → PLAYING instead of finishing.
	before := len(f.mp.SetStates())
	f.mp.EmitEOS()

	waitSetStates(t, f.mp, before+2)
	states := f.mp.SetStates()
	if states[before] != pipeline.StateNull || states[before+1] != pipeline.StatePlaying {
		t.Fatalf("cycle states = %v, want NULL then PLAYING", states[before:])
	}

	// Second entry drains: nothing left, playback finishes.
	f.mp.EmitEOS()
	assertNames(t, f.obs.wait(t, 2), "started", "finished")
}

func TestURLFetchFailureRaisesPlaybackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list.m3u":
			_, _ = w.Write([]byte("good.mp3\ngone.mp3\n"))
		case "/good.mp3":
			_, _ = w.Write([]byte("mp3-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	eng := enginemock.New()
	p, err := player.New(player.Config{
		Engine:         eng,
		FetcherFactory: fetcher.NewHTTPFactoryWithClient(srv.Client()),
	})
	if err != nil {
		t.Fatalf("player.New failed: %v", err)
	}
	t.Cleanup(p.Shutdown)
	obs := &recorder{}
	p.SetObserver(obs)
	f := &fixture{eng: eng, mp: eng.Pipelines()[0], p: p, obs: obs}

	id := f.p.SetSourceURL(srv.URL + "/list.m3u")
	f.p.Play(id)
	f.mp.EmitBuffering(100)
	f.mp.EmitStateChanged(pipeline.StateReady, pipeline.StatePlaying, pipeline.StateVoidPending)
	f.obs.wait(t, 1)

	// Drain the first entry, advance at EOS, then let the second entry's
	// fetch fail.
	src, ok := f.mp.Member("url-source").(*enginemock.Source)
	if !ok {
		t.Fatal("no url source in pipeline")
	}
	src.TriggerNeedData(0)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !src.EOSReceived() {
		src.TriggerNeedData(0)
		time.Sleep(2 * time.Millisecond)
	}
	if !src.EOSReceived() {
		t.Fatal("first entry never drained")
	}
	before := len(f.mp.SetStates())
	f.mp.EmitEOS()
	// The advance cycles NULL then PLAYING; only then fetch the bad entry.
	waitSetStates(t, f.mp, before+2)
	src.TriggerNeedData(0)

	events := f.obs.wait(t, 2)
	assertNames(t, events, "started", "error")
	if events[1].id != id {
		t.Errorf("error carried id %d, want %d", events[1].id, id)
	}
	// The 404 keeps its status through the adapter: HTTP 4xx classifies as
	// an invalid request, not a silent finish.
	if events[1].errType != models.MediaErrorInvalidRequest {
		t.Errorf("error type = %v, want INVALID_REQUEST", events[1].errType)
	}
}

func waitSetStates(t *testing.T, mp *enginemock.Pipeline, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(mp.SetStates()) >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d state requests, have %v", n, mp.SetStates())
}
