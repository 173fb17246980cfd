// Package sources implements the source adapters that bridge audio inputs
// (byte stream, pull reader, URL+playlist) to the pipeline. Each adapter
// inserts a source element and a decoder element into the pipeline on
// construction and feeds compressed bytes from its own goroutine.
package sources

import (
	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

// Source is the capability the player consumes from every adapter.
// All methods except Shutdown are called on the dispatcher goroutine.
type Source interface {
	// Preprocess is called before each play request.
	Preprocess()

	// HandleEndOfStream lets the source recover at end of stream (rewind a
	// repeating stream, advance to the next playlist segment). Reports
	// success.
	HandleEndOfStream() bool

	// HasAdditionalData reports whether HandleEndOfStream queued another
	// segment, in which case the pipeline is cycled to consume it.
	HasAdditionalData() bool

	// IsPlaybackRemote reports whether content arrives over the network,
	// for error classification.
	IsPlaybackRemote() bool

	// Shutdown stops the feeder goroutine and releases resources. Safe to
	// call more than once.
	Shutdown()
}

// Host is the player-side surface an adapter uses to insert its elements
// and to surface data-path failures. Adapters are constructed on the
// dispatcher goroutine (URL adapters too; only their playlist expansion runs
// on the preparation goroutine).
type Host interface {
	// Engine creates the adapter's source and decoder elements.
	Engine() pipeline.Engine

	// AttachSourceElements inserts the transient head of the pipeline graph.
	AttachSourceElements(src pipeline.SourceElement, dec pipeline.DecoderElement) error

	// ReportError surfaces an engine-level failure from the adapter's data
	// path (a failed fetch, an unreadable resource). Safe to call from the
	// feeder goroutine; delivery is serialized with bus messages.
	ReportError(err *pipeline.EngineError)
}
