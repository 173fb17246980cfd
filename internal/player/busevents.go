package player

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/kohtzk/mediaplayer-go/internal/models"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

// handleBusMessage translates engine bus traffic into observer events.
// Dispatcher-goroutine only; the pump posts messages in engine-emit order.
func (m *MediaPlayer) handleBusMessage(msg pipeline.Message) {
	slog.Debug("player: bus message", "kind", msg.Kind, "origin", msg.Origin)
	switch msg.Kind {
	case pipeline.MessageEOS:
		m.handleEOS(msg)
	case pipeline.MessageError:
		m.handleError(msg)
	case pipeline.MessageStateChanged:
		m.handleStateChanged(msg)
	case pipeline.MessageBuffering:
		m.handleBuffering(msg)
	case pipeline.MessageTag:
		m.sendTags(collectTags(msg.Tags))
	}
}

func (m *MediaPlayer) handleEOS(msg pipeline.Message) {
	if !msg.FromPipeline || m.source == nil {
		return
	}

	if !m.source.HandleEndOfStream() {
		slog.Error("player: source failed to handle end of stream")
		m.sendPlaybackError(models.MediaErrorInternalDeviceError, "source failed to handle end of stream")
		if m.source == nil {
			// The error tore everything down; nothing left to cycle.
			return
		}
	}

	if m.source.HasAdditionalData() {
		// Cycle the pipeline to consume the next segment.
		if m.ap.Pipeline().SetState(pipeline.StateNull) == pipeline.StateChangeFailure {
			slog.Error("player: continuing playback failed", "reason", "setNullFailed")
			m.sendPlaybackError(models.MediaErrorInternalDeviceError, "restarting pipeline for next segment failed")
			return
		}
		if m.ap.Pipeline().SetState(pipeline.StatePlaying) == pipeline.StateChangeFailure {
			slog.Error("player: continuing playback failed", "reason", "setPlayingFailed")
			m.sendPlaybackError(models.MediaErrorInternalDeviceError, "restarting pipeline for next segment failed")
		}
	} else {
		m.sendPlaybackFinished()
	}
}

func (m *MediaPlayer) handleError(msg pipeline.Message) {
	errText := "unknown engine error"
	if msg.Err != nil {
		errText = msg.Err.Message
	}
	slog.Error("player: engine error", "origin", msg.Origin, "err", errText)
	remote := m.source != nil && m.source.IsPlaybackRemote()
	m.sendPlaybackError(classifyEngineError(msg.Err, remote), errText)
}

func (m *MediaPlayer) handleStateChanged(msg pipeline.Message) {
	if !msg.FromPipeline {
		return
	}
	slog.Debug("player: state change", "old", msg.Old, "new", msg.New, "pending", msg.Pending)

	switch {
	case msg.New == pipeline.StatePaused && m.pauseImmediately:
		// A pause raced an unfinished play/resume: complete that lifecycle
		// first, then report the pause.
		if m.playPending {
			m.sendPlaybackStarted()
		} else if m.resumePending {
			m.sendPlaybackResumed()
		}
		m.sendPlaybackPaused()

	case msg.New == pipeline.StatePlaying:
		if !m.playbackStartedSent {
			m.sendPlaybackStarted()
		} else if m.isBufferUnderrun {
			m.sendBufferRefilled()
			m.isBufferUnderrun = false
		} else if m.isPaused {
			m.sendPlaybackResumed()
			m.isPaused = false
		}

	case msg.New == pipeline.StatePaused && msg.Old == pipeline.StateReady &&
		msg.Pending == pipeline.StateVoidPending:
		// Initial preroll done. Some sources (HLS among them) never emit
		// BUFFERING; when nothing reports itself busy, start playing now.
		if busy, ok := m.ap.QueryBuffering(); !ok || !busy {
			m.ap.Pipeline().SetState(pipeline.StatePlaying)
		}

	case msg.New == pipeline.StatePaused && msg.Old == pipeline.StatePlaying:
		if m.isBufferUnderrun {
			m.sendBufferUnderrun()
		} else if !m.isPaused {
			m.sendPlaybackPaused()
			m.isPaused = true
		}

	case msg.New == pipeline.StateNull && msg.Old == pipeline.StateReady:
		m.sendPlaybackStopped()
	}
}

func (m *MediaPlayer) handleBuffering(msg pipeline.Message) {
	slog.Debug("player: buffering", "percent", msg.Percent)
	if msg.Percent < 100 {
		if m.ap.Pipeline().SetState(pipeline.StatePaused) == pipeline.StateChangeFailure {
			slog.Error("player: pausing on buffer underrun failed")
			m.sendPlaybackError(models.MediaErrorInternalDeviceError, "pausing on buffer underrun failed")
			return
		}
		// Only count as an underrun once playback has started.
		if m.playbackStartedSent {
			m.isBufferUnderrun = true
		}
		return
	}

	if m.pauseImmediately {
		// A pause raced the refill; stay paused.
		return
	}
	if seekable, ok := m.ap.QuerySeekable(); ok {
		m.offsets.SetSeekable(seekable)
	}
	if m.offsets.IsSeekable() && m.offsets.IsSeekPointSet() {
		m.seek()
	} else if m.ap.Pipeline().SetState(pipeline.StatePlaying) == pipeline.StateChangeFailure {
		slog.Error("player: resuming on buffer refilled failed")
		m.sendPlaybackError(models.MediaErrorInternalDeviceError, "resuming on buffer refilled failed")
	}
}

// seek issues the pending seek. The pending target is consumed either way.
func (m *MediaPlayer) seek() bool {
	ok := true
	if !m.offsets.IsSeekable() || !m.offsets.IsSeekPointSet() {
		slog.Error("player: seek failed", "reason", "invalidState",
			"isSeekable", m.offsets.IsSeekable(), "seekPointSet", m.offsets.IsSeekPointSet())
		ok = false
	} else if !m.ap.Seek(m.offsets.SeekPoint()) {
		slog.Error("player: seek failed", "reason", "engineSeekFailed")
		ok = false
	} else {
		slog.Debug("player: seek successful", "offset", m.offsets.SeekPoint())
	}
	m.offsets.Clear()
	return ok
}

// collectTags stringifies the recognized tag value types, preserving order.
// Unrecognized types (buffers and the like) are dropped.
func collectTags(raw []pipeline.TagValue) []models.Tag {
	var tags []models.Tag
	for _, tv := range raw {
		tag := models.Tag{Key: tv.Key}
		switch v := tv.Value.(type) {
		case string:
			tag.Value = v
			tag.Type = models.TagString
		case uint:
			tag.Value = strconv.FormatUint(uint64(v), 10)
			tag.Type = models.TagUint
		case uint32:
			tag.Value = strconv.FormatUint(uint64(v), 10)
			tag.Type = models.TagUint
		case uint64:
			tag.Value = strconv.FormatUint(v, 10)
			tag.Type = models.TagUint
		case int:
			tag.Value = strconv.FormatInt(int64(v), 10)
			tag.Type = models.TagInt
		case int32:
			tag.Value = strconv.FormatInt(int64(v), 10)
			tag.Type = models.TagInt
		case int64:
			tag.Value = strconv.FormatInt(v, 10)
			tag.Type = models.TagInt
		case bool:
			tag.Value = strconv.FormatBool(v)
			tag.Type = models.TagBoolean
		case float32:
			tag.Value = strconv.FormatFloat(float64(v), 'f', -1, 32)
			tag.Type = models.TagDouble
		case float64:
			tag.Value = strconv.FormatFloat(v, 'f', -1, 64)
			tag.Type = models.TagDouble
		case time.Time:
			tag.Value = v.Format(time.RFC3339)
			tag.Type = models.TagString
		default:
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// Observer event helpers. sendPlaybackStarted and sendPlaybackFinished are
// edge-triggered through their *Sent flags so bus races cannot duplicate
// them; the terminal helpers clear the current id and tear down.

func (m *MediaPlayer) sendPlaybackStarted() {
	if m.playbackStartedSent {
		return
	}
	slog.Debug("player: playback started", "id", m.currentID)
	m.playbackStartedSent = true
	m.playPending = false
	if m.observer != nil {
		m.observer.OnPlaybackStarted(m.currentID)
	}
}

func (m *MediaPlayer) sendPlaybackFinished() {
	if m.source != nil {
		m.source.Shutdown()
		m.source = nil
	}
	m.isPaused = false
	m.playbackStartedSent = false
	if !m.playbackFinishedSent {
		m.playbackFinishedSent = true
		slog.Debug("player: playback finished", "id", m.currentID)
		if m.observer != nil {
			m.observer.OnPlaybackFinished(m.currentID)
		}
	}
	m.currentID = models.ErrorSourceID
	m.tearDownTransient()
}

func (m *MediaPlayer) sendPlaybackPaused() {
	slog.Debug("player: playback paused", "id", m.currentID)
	m.pausePending = false
	if m.observer != nil {
		m.observer.OnPlaybackPaused(m.currentID)
	}
}

func (m *MediaPlayer) sendPlaybackResumed() {
	slog.Debug("player: playback resumed", "id", m.currentID)
	m.resumePending = false
	if m.observer != nil {
		m.observer.OnPlaybackResumed(m.currentID)
	}
}

func (m *MediaPlayer) sendPlaybackStopped() {
	slog.Debug("player: playback stopped", "id", m.currentID)
	if m.observer != nil && m.currentID != models.ErrorSourceID {
		m.observer.OnPlaybackStopped(m.currentID)
	}
	m.currentID = models.ErrorSourceID
	m.tearDownTransient()
}

func (m *MediaPlayer) sendPlaybackError(errorType models.ErrorType, message string) {
	slog.Debug("player: playback error", "id", m.currentID, "type", errorType, "message", message)
	m.playPending = false
	m.pausePending = false
	m.resumePending = false
	m.pauseImmediately = false
	if m.observer != nil {
		m.observer.OnPlaybackError(m.currentID, errorType, message)
	}
	m.currentID = models.ErrorSourceID
	m.tearDownTransient()
}

func (m *MediaPlayer) sendBufferUnderrun() {
	slog.Debug("player: buffer underrun", "id", m.currentID)
	if m.observer != nil {
		m.observer.OnBufferUnderrun(m.currentID)
	}
}

func (m *MediaPlayer) sendBufferRefilled() {
	slog.Debug("player: buffer refilled", "id", m.currentID)
	if m.observer != nil {
		m.observer.OnBufferRefilled(m.currentID)
	}
}

func (m *MediaPlayer) sendTags(tags []models.Tag) {
	if len(tags) == 0 {
		return
	}
	slog.Debug("player: tags", "id", m.currentID, "count", len(tags))
	if m.observer != nil {
		m.observer.OnTags(m.currentID, tags)
	}
}
