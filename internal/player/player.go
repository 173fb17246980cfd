// Package player implements the media player controller: the public command
// surface, the source-id protocol, and the translation of pipeline state
// transitions into observer events.
//
// Every command crosses into a single dispatcher goroutine that owns all
// mutable state; pipeline bus messages are drained onto the same FIFO, so
// commands and bus handling never race.
package player

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/kohtzk/mediaplayer-go/internal/dispatch"
	"github.com/kohtzk/mediaplayer-go/internal/fetcher"
	"github.com/kohtzk/mediaplayer-go/internal/models"
	"github.com/kohtzk/mediaplayer-go/internal/normalize"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
	"github.com/kohtzk/mediaplayer-go/internal/playlist"
	"github.com/kohtzk/mediaplayer-go/internal/sources"
)

// Config carries the player's collaborators.
type Config struct {
	// Engine renders audio. Required.
	Engine pipeline.Engine

	// FetcherFactory retrieves remote content. Required for URL sources.
	FetcherFactory fetcher.Factory

	// Parser expands playlist URLs. Defaults to the built-in parser over
	// FetcherFactory.
	Parser playlist.Parser

	// SpeakerType is reported by GetSpeakerType.
	SpeakerType models.SpeakerType
}

// MediaPlayer renders one audio source at a time through the engine
// pipeline. Commands are safe to call from any goroutine except the
// dispatcher's own (observer callbacks must not call back in).
type MediaPlayer struct {
	speakerType models.SpeakerType
	factory     fetcher.Factory
	parser      playlist.Parser

	dispatcher *dispatch.Dispatcher
	ap         *pipeline.AudioPipeline

	// prepMu guards prepDone, the join handle for the URL preparation
	// goroutine. Everything below it is dispatcher-goroutine only.
	prepMu   sync.Mutex
	prepDone chan struct{}

	pumpDone chan struct{}

	source    sources.Source
	currentID models.SourceID
	offsets   OffsetManager
	observer  Observer

	playbackStartedSent  bool
	playbackFinishedSent bool
	isPaused             bool
	isBufferUnderrun     bool
	playPending          bool
	pausePending         bool
	resumePending        bool
	pauseImmediately     bool
}

// New builds the persistent pipeline and starts the dispatcher. On error
// nothing is left running.
func New(cfg Config) (*MediaPlayer, error) {
	ap, err := pipeline.NewAudioPipeline(cfg.Engine)
	if err != nil {
		return nil, err
	}

	parser := cfg.Parser
	if parser == nil && cfg.FetcherFactory != nil {
		parser = playlist.New(cfg.FetcherFactory)
	}

	m := &MediaPlayer{
		speakerType: cfg.SpeakerType,
		factory:     cfg.FetcherFactory,
		parser:      parser,
		ap:          ap,
		currentID:   models.ErrorSourceID,
		pumpDone:    make(chan struct{}),
	}
	m.dispatcher = dispatch.New()

	msgs := ap.Pipeline().Messages()
	go m.pumpBus(msgs)

	return m, nil
}

// pumpBus forwards bus messages onto the dispatcher FIFO, preserving
// engine-emit order. Runs until the engine closes the bus on Release.
func (m *MediaPlayer) pumpBus(msgs <-chan pipeline.Message) {
	defer close(m.pumpDone)
	for msg := range msgs {
		msg := msg
		m.dispatcher.Post(func() { m.handleBusMessage(msg) })
	}
}

// Shutdown stops playback and releases everything: pipeline to NULL, adapter
// shut down, URL preparation goroutine joined, dispatcher drained and
// joined, engine handles released. Must not be called from the dispatcher
// goroutine (an observer callback).
func (m *MediaPlayer) Shutdown() {
	m.dispatcher.Call(func() {
		m.ap.Pipeline().SetState(pipeline.StateNull)
		if m.source != nil {
			m.source.Shutdown()
			m.source = nil
		}
	})
	m.joinPrep()
	m.dispatcher.Shutdown()
	m.ap.Release()
	<-m.pumpDone
}

// Engine implements sources.Host.
func (m *MediaPlayer) Engine() pipeline.Engine { return m.ap.Engine() }

// AttachSourceElements implements sources.Host. Dispatcher-goroutine only
// (adapters are constructed there).
func (m *MediaPlayer) AttachSourceElements(src pipeline.SourceElement, dec pipeline.DecoderElement) error {
	return m.ap.SetSourceElements(src, dec)
}

// ReportError implements sources.Host: adapter data-path failures join the
// dispatcher FIFO (the same serialization bus messages cross) and flow
// through the standard error handling and teardown.
func (m *MediaPlayer) ReportError(err *pipeline.EngineError) {
	m.dispatcher.Post(func() {
		origin := "source"
		if src := m.ap.Source(); src != nil {
			origin = src.Name()
		}
		m.handleBusMessage(pipeline.Message{
			Kind:   pipeline.MessageError,
			Origin: origin,
			Err:    err,
		})
	})
}

// SetSourceReader replaces the current source with a pull-style attachment
// reader. Returns the new source id, or ErrorSourceID on failure.
func (m *MediaPlayer) SetSourceReader(reader io.ReadCloser) models.SourceID {
	id := models.ErrorSourceID
	m.dispatcher.Call(func() {
		m.tearDownTransient()
		src, err := sources.NewReaderSource(m, reader)
		if err != nil {
			slog.Error("player: set reader source failed", "err", err)
			return
		}
		id = m.finishSetSource(src)
	})
	return id
}

// SetSourceStream replaces the current source with a byte stream. With
// repeat set the stream restarts from the beginning at every end of stream.
func (m *MediaPlayer) SetSourceStream(stream io.Reader, repeat bool) models.SourceID {
	id := models.ErrorSourceID
	m.dispatcher.Call(func() {
		m.tearDownTransient()
		src, err := sources.NewStreamSource(m, stream, repeat)
		if err != nil {
			slog.Error("player: set stream source failed", "err", err)
			return
		}
		id = m.finishSetSource(src)
	})
	return id
}

// SetSourceURL replaces the current source with remote content. Playlist
// expansion blocks on network fetches, so it runs on a dedicated
// preparation goroutine instead of the dispatcher; the previous
// one is joined first, and the teardown still happens on the dispatcher
// before the goroutine is spawned so teardowns stay serialized.
func (m *MediaPlayer) SetSourceURL(url string) models.SourceID {
	m.joinPrep()

	result := make(chan models.SourceID, 1)
	posted := m.dispatcher.Post(func() {
		m.tearDownTransient()
		prep := make(chan struct{})
		m.prepMu.Lock()
		m.prepDone = prep
		m.prepMu.Unlock()
		go m.prepareURLSource(url, result, prep)
	})
	if !posted {
		return models.ErrorSourceID
	}
	return <-result
}

// prepareURLSource runs on the preparation goroutine.
func (m *MediaPlayer) prepareURLSource(url string, result chan<- models.SourceID, prep chan struct{}) {
	defer close(prep)

	if m.parser == nil || m.factory == nil {
		slog.Error("player: url source needs a fetcher factory")
		result <- models.ErrorSourceID
		return
	}
	entries, err := sources.ExpandURL(context.Background(), m.parser, url)
	if err != nil {
		slog.Error("player: url expansion failed", "err", err)
		result <- models.ErrorSourceID
		return
	}

	// Hand the finished adapter back through the dispatcher.
	ok := m.dispatcher.Call(func() {
		src, err := sources.NewURLSource(m, m.factory, entries)
		if err != nil {
			slog.Error("player: set url source failed", "err", err)
			result <- models.ErrorSourceID
			return
		}
		result <- m.finishSetSource(src)
	})
	if !ok {
		result <- models.ErrorSourceID
	}
}

// finishSetSource registers the pad-added hook, stores the adapter, and
// mints the new id. Dispatcher-goroutine only.
func (m *MediaPlayer) finishSetSource(src sources.Source) models.SourceID {
	dec := m.ap.Decoder()
	if dec == nil {
		slog.Error("player: set source failed", "reason", "noDecoderAttached")
		src.Shutdown()
		return models.ErrorSourceID
	}
	// When the decoder advertises its output pad, link it to the persistent
	// converter. The hook fires on an engine goroutine and marshals back
	// here; teardown clears it, so it can never fire for a stale source.
	dec.OnPadAdded(m.onPadAdded)

	m.source = src
	m.currentID = models.NextSourceID()
	slog.Debug("player: source set", "id", m.currentID)
	return m.currentID
}

// onPadAdded runs on an engine goroutine and completes the decoder →
// converter link on the dispatcher, waiting like the engine expects.
func (m *MediaPlayer) onPadAdded() {
	m.dispatcher.Call(func() {
		if err := m.ap.LinkDecoderToConverter(); err != nil {
			slog.Error("player: linking decoder to converter failed", "err", err)
		}
	})
}

func (m *MediaPlayer) joinPrep() {
	m.prepMu.Lock()
	prep := m.prepDone
	m.prepMu.Unlock()
	if prep != nil {
		<-prep
	}
}

// Play starts playback of the current source. Fails on a stale id, if the
// pipeline is already playing, or while a previous play is still pending.
// The started event arrives asynchronously via the observer.
func (m *MediaPlayer) Play(id models.SourceID) bool {
	ok := false
	m.dispatcher.Call(func() { ok = m.handlePlay(id) })
	return ok
}

func (m *MediaPlayer) handlePlay(id models.SourceID) bool {
	slog.Debug("player: play", "id", id, "currentId", m.currentID)
	if !m.validateSourceAndID("play", id) {
		return false
	}

	m.source.Preprocess()

	cur, _, res := m.ap.Pipeline().State()
	if res == pipeline.StateChangeFailure {
		slog.Error("player: play failed", "reason", "stateQueryFailed")
		return false
	}
	if cur == pipeline.StatePlaying {
		slog.Debug("player: play failed", "reason", "alreadyPlaying")
		return false
	}
	if m.playPending {
		slog.Debug("player: play failed", "reason", "playCurrentlyPending")
		return false
	}

	m.playbackFinishedSent = false
	m.playbackStartedSent = false
	m.playPending = true
	m.pauseImmediately = false

	// A decoder that wants buffering prerolls through PAUSED; the pipeline
	// reaches PLAYING either at buffer percent 100 or straight from the
	// preroll transition when buffering is unsupported.
	starting := pipeline.StatePlaying
	if dec := m.ap.Decoder(); dec != nil && dec.UseBuffering() {
		starting = pipeline.StatePaused
	}
	if m.ap.Pipeline().SetState(starting) == pipeline.StateChangeFailure {
		slog.Error("player: play failed", "reason", "setStateFailed", "state", starting)
		m.sendPlaybackError(models.MediaErrorInternalDeviceError, "requesting playback state failed")
	}
	// The command already succeeded; completion arrives on the bus.
	return true
}

// Pause pauses the current source. While a play or resume is still pending
// this is an immediate pause: the started/resumed event is delivered first,
// then paused. Otherwise requires the pipeline to be playing.
func (m *MediaPlayer) Pause(id models.SourceID) bool {
	ok := false
	m.dispatcher.Call(func() { ok = m.handlePause(id) })
	return ok
}

func (m *MediaPlayer) handlePause(id models.SourceID) bool {
	slog.Debug("player: pause", "id", id, "currentId", m.currentID)
	if !m.validateSourceAndID("pause", id) {
		return false
	}

	cur, _, res := m.ap.Pipeline().State()
	if res == pipeline.StateChangeFailure {
		slog.Error("player: pause failed", "reason", "stateQueryFailed")
		return false
	}

	if m.playPending || m.resumePending {
		if m.pausePending {
			slog.Debug("player: pause failed", "reason", "pauseCurrentlyPending")
			return false
		}
		if m.ap.Pipeline().SetState(pipeline.StatePaused) == pipeline.StateChangeFailure {
			slog.Error("player: pause failed", "reason", "setStateFailed")
			return false
		}
		m.pauseImmediately = true
		return true
	}

	if cur != pipeline.StatePlaying {
		slog.Error("player: pause failed", "reason", "noAudioPlaying", "state", cur)
		return false
	}
	if m.pausePending {
		slog.Debug("player: pause failed", "reason", "pauseCurrentlyPending")
		return false
	}
	if m.ap.Pipeline().SetState(pipeline.StatePaused) == pipeline.StateChangeFailure {
		slog.Error("player: pause failed", "reason", "setStateFailed")
		return false
	}
	m.pausePending = true
	return true
}

// Resume resumes a paused source. Requires the pipeline to be paused.
func (m *MediaPlayer) Resume(id models.SourceID) bool {
	ok := false
	m.dispatcher.Call(func() { ok = m.handleResume(id) })
	return ok
}

func (m *MediaPlayer) handleResume(id models.SourceID) bool {
	slog.Debug("player: resume", "id", id, "currentId", m.currentID)
	if !m.validateSourceAndID("resume", id) {
		return false
	}

	cur, _, res := m.ap.Pipeline().State()
	if res == pipeline.StateChangeFailure {
		slog.Error("player: resume failed", "reason", "stateQueryFailed")
		return false
	}
	if cur == pipeline.StatePlaying {
		slog.Error("player: resume failed", "reason", "alreadyPlaying")
		return false
	}
	if cur != pipeline.StatePaused {
		slog.Error("player: resume failed", "reason", "notCurrentlyPaused", "state", cur)
		return false
	}
	if m.resumePending {
		slog.Debug("player: resume failed", "reason", "resumeCurrentlyPending")
		return false
	}
	if m.ap.Pipeline().SetState(pipeline.StatePlaying) == pipeline.StateChangeFailure {
		slog.Error("player: resume failed", "reason", "setStateFailed")
		return false
	}
	m.resumePending = true
	m.pauseImmediately = false
	return true
}

// Stop stops the current source. A pending play or resume is completed
// first (its lifecycle event is delivered) before stopped.
func (m *MediaPlayer) Stop(id models.SourceID) bool {
	ok := false
	m.dispatcher.Call(func() { ok = m.handleStop(id) })
	return ok
}

func (m *MediaPlayer) handleStop(id models.SourceID) bool {
	slog.Debug("player: stop", "id", id, "currentId", m.currentID)
	if !m.validateSourceAndID("stop", id) {
		return false
	}

	cur, pending, res := m.ap.Pipeline().State()
	if res == pipeline.StateChangeFailure {
		slog.Error("player: stop failed", "reason", "stateQueryFailed")
		return false
	}
	if cur == pipeline.StateNull {
		slog.Error("player: stop failed", "reason", "alreadyStopped")
		return false
	}
	if pending == pipeline.StateNull {
		slog.Error("player: stop failed", "reason", "alreadyStopping")
		return false
	}

	// Changing to NULL is synchronous per the engine contract.
	if m.ap.Pipeline().SetState(pipeline.StateNull) == pipeline.StateChangeFailure {
		slog.Error("player: stop failed", "reason", "setStateFailed")
		return false
	}
	if m.playPending {
		m.sendPlaybackStarted()
	} else if m.resumePending {
		m.sendPlaybackResumed()
	}
	m.sendPlaybackStopped()
	return true
}

// GetOffset returns the current play position, or models.InvalidOffset when
// the id is stale, the state query fails, or the pipeline is neither paused
// nor playing.
func (m *MediaPlayer) GetOffset(id models.SourceID) time.Duration {
	offset := models.InvalidOffset
	m.dispatcher.Call(func() { offset = m.handleGetOffset(id) })
	return offset
}

func (m *MediaPlayer) handleGetOffset(id models.SourceID) time.Duration {
	slog.Debug("player: get offset", "id", id, "currentId", m.currentID)
	if m.ap.Pipeline() == nil {
		slog.Info("player: get offset", "reason", "pipelineNotSet")
		return models.InvalidOffset
	}
	if !m.validateSourceAndID("getOffset", id) {
		return models.InvalidOffset
	}

	cur, _, res := m.ap.Pipeline().State()
	switch {
	case res == pipeline.StateChangeFailure:
		slog.Error("player: get offset failed", "reason", "stateQueryFailed")
	case res != pipeline.StateChangeSuccess:
		slog.Info("player: get offset", "reason", "stateQueryUnsettled", "result", res)
	case cur != pipeline.StatePaused && cur != pipeline.StatePlaying:
		slog.Error("player: get offset failed", "reason", "invalidPipelineState", "state", cur)
	default:
		pos, ok := m.ap.Pipeline().Position()
		if !ok {
			slog.Error("player: get offset failed", "reason", "positionQueryFailed")
			break
		}
		return pos
	}
	return models.InvalidOffset
}

// SetOffset records a pending seek target for the current source; the seek
// is issued when buffering reaches 100% and the stream proves seekable. A
// source whose pipeline never reports buffering is not seeked.
func (m *MediaPlayer) SetOffset(id models.SourceID, offset time.Duration) bool {
	ok := false
	m.dispatcher.Call(func() {
		slog.Debug("player: set offset", "id", id, "currentId", m.currentID, "offset", offset)
		if !m.validateSourceAndID("setOffset", id) {
			return
		}
		m.offsets.SetSeekPoint(offset)
		ok = true
	})
	return ok
}

// SetObserver replaces the observer. Synchronous: once it returns, every
// subsequent event goes to o. A nil observer silences events.
func (m *MediaPlayer) SetObserver(o Observer) {
	m.dispatcher.Call(func() { m.observer = o })
}

// SetVolume sets the public-scale volume [0, 100].
func (m *MediaPlayer) SetVolume(volume int) bool {
	ok := false
	m.dispatcher.Call(func() { ok = m.handleSetVolume(volume) })
	return ok
}

func (m *MediaPlayer) handleSetVolume(volume int) bool {
	toEngine, err := normalize.New(models.VolumeMin, models.VolumeMax, pipeline.EngineVolumeMin, pipeline.EngineVolumeMax)
	if err != nil {
		slog.Error("player: set volume failed", "reason", "createNormalizerFailed", "err", err)
		return false
	}
	vol := m.ap.Volume()
	if vol == nil {
		slog.Error("player: set volume failed", "reason", "volumeElementNull")
		return false
	}
	vol.SetVolume(toEngine.Normalize(float64(volume)))
	return true
}

// AdjustVolume shifts the volume by a public-scale delta [-100, 100],
// clamping at the engine's bounds.
func (m *MediaPlayer) AdjustVolume(delta int) bool {
	ok := false
	m.dispatcher.Call(func() { ok = m.handleAdjustVolume(delta) })
	return ok
}

func (m *MediaPlayer) handleAdjustVolume(delta int) bool {
	toEngineDelta, err := normalize.New(models.AdjustVolumeMin, models.AdjustVolumeMax, pipeline.EngineAdjustVolumeMin, pipeline.EngineAdjustVolumeMax)
	if err != nil {
		slog.Error("player: adjust volume failed", "reason", "createNormalizerFailed", "err", err)
		return false
	}
	vol := m.ap.Volume()
	if vol == nil {
		slog.Error("player: adjust volume failed", "reason", "volumeElementNull")
		return false
	}
	v := vol.Volume() + toEngineDelta.Normalize(float64(delta))
	v = math.Min(v, pipeline.EngineVolumeMax)
	v = math.Max(v, pipeline.EngineVolumeMin)
	vol.SetVolume(v)
	return true
}

// SetMute sets the mute flag.
func (m *MediaPlayer) SetMute(mute bool) bool {
	ok := false
	m.dispatcher.Call(func() {
		vol := m.ap.Volume()
		if vol == nil {
			slog.Error("player: set mute failed", "reason", "volumeElementNull")
			return
		}
		vol.SetMute(mute)
		ok = true
	})
	return ok
}

// GetSpeakerSettings reports the rounded public volume and the mute flag.
func (m *MediaPlayer) GetSpeakerSettings() (models.SpeakerSettings, bool) {
	var settings models.SpeakerSettings
	ok := false
	m.dispatcher.Call(func() {
		toPublic, err := normalize.New(pipeline.EngineVolumeMin, pipeline.EngineVolumeMax, models.VolumeMin, models.VolumeMax)
		if err != nil {
			slog.Error("player: get speaker settings failed", "reason", "createNormalizerFailed", "err", err)
			return
		}
		vol := m.ap.Volume()
		if vol == nil {
			slog.Error("player: get speaker settings failed", "reason", "volumeElementNull")
			return
		}
		settings.Volume = int(math.Round(toPublic.Normalize(vol.Volume())))
		settings.Mute = vol.Muted()
		ok = true
	})
	return settings, ok
}

// GetSpeakerType reports the speaker role fixed at construction. Not
// dispatched: the value is immutable.
func (m *MediaPlayer) GetSpeakerType() models.SpeakerType {
	return m.speakerType
}

// validateSourceAndID rejects commands with no source attached or a stale
// id. Dispatcher-goroutine only.
func (m *MediaPlayer) validateSourceAndID(op string, id models.SourceID) bool {
	if m.source == nil {
		slog.Error("player: command failed", "op", op, "reason", "sourceNotSet")
		return false
	}
	if id != m.currentID {
		slog.Error("player: command failed", "op", op, "reason", "sourceIdMismatch", "id", id, "currentId", m.currentID)
		return false
	}
	return true
}

// tearDownTransient runs the teardown half of a source change: a still
// active id observes stopped first, then the adapter is shut down, the
// transient elements removed, and all per-source state cleared.
func (m *MediaPlayer) tearDownTransient() {
	if m.currentID != models.ErrorSourceID {
		m.sendPlaybackStopped()
	}
	m.currentID = models.ErrorSourceID
	if m.source != nil {
		m.source.Shutdown()
		m.source = nil
	}
	m.ap.TearDownTransient()
	m.offsets.Clear()
	m.playPending = false
	m.pausePending = false
	m.resumePending = false
	m.pauseImmediately = false
	m.playbackStartedSent = false
	m.playbackFinishedSent = false
	m.isPaused = false
	m.isBufferUnderrun = false
}
