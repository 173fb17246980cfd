package pipeline

import "time"

// Element is a node in the pipeline graph.
type Element interface {
	Name() string
}

// VolumeElement is the persistent volume/mute element.
type VolumeElement interface {
	Element

	// SetVolume sets the engine-scale volume [0.0, 1.0].
	SetVolume(v float64)
	Volume() float64

	SetMute(m bool)
	Muted() bool
}

// SourceElement is the transient head of the graph. Adapters feed compressed
// bytes into it; the engine pulls via the need-data callback.
type SourceElement interface {
	Element

	// Push enqueues compressed audio bytes. Returns an error once the
	// element has been removed from its pipeline.
	Push(data []byte) error

	// EndOfStream marks the byte stream complete. The engine emits EOS on
	// the bus once the queued data has drained through the sink.
	EndOfStream()

	// OnNeedData registers the flow-control callback invoked (on an engine
	// goroutine) when the element wants roughly n more bytes. Pass nil to
	// clear.
	OnNeedData(fn func(n int))

	// OnEnoughData registers the callback invoked when the element's queue
	// is full. Pass nil to clear.
	OnEnoughData(fn func())
}

// DecoderElement is the transient decode element. Its output pad appears only
// after enough bytes have arrived to identify the stream.
type DecoderElement interface {
	Element

	// UseBuffering reports whether the decoder wants pre-roll buffering.
	// Play requests PAUSED first when set, PLAYING directly otherwise.
	UseBuffering() bool
	SetUseBuffering(b bool)

	// OnPadAdded registers the one-shot hook fired (on an engine goroutine)
	// when the decoder's output pad appears. Pass nil to clear.
	OnPadAdded(fn func())
}

// Pipeline is the engine's pipeline root.
type Pipeline interface {
	Element

	Add(elements ...Element) error
	Remove(elements ...Element) error

	// Link wires elements in order. Linking a DecoderElement to a
	// downstream element is only valid after its output pad has appeared.
	Link(elements ...Element) error

	// SetState requests a state change. Changing to StateNull is always
	// synchronous: it never returns StateChangeAsync.
	SetState(s State) StateChangeResult

	// State is a zero-timeout state query.
	State() (current State, pending State, result StateChangeResult)

	// Position reports the current play position.
	Position() (time.Duration, bool)

	// QueryBuffering reports whether buffering is in progress. ok is false
	// when the pipeline cannot answer (e.g. buffering unsupported).
	QueryBuffering() (busy bool, ok bool)

	// QuerySeekable reports whether the current stream supports seeking.
	QuerySeekable() (seekable bool, ok bool)

	// Seek issues a flushing key-unit seek to offset.
	Seek(offset time.Duration) bool

	// Messages is the pipeline bus. Messages arrive in engine-emit order
	// and the channel is closed by Release.
	Messages() <-chan Message

	// Release stops the pipeline and frees engine resources.
	Release()
}

// Engine creates pipelines and elements. Implementations: beepengine (real
// output) and enginemock (tests).
type Engine interface {
	NewPipeline(name string) (Pipeline, error)
	NewConverter() (Element, error)
	NewVolume() (VolumeElement, error)
	NewSink() (Element, error)
	NewSource(name string) (SourceElement, error)
	NewDecoder(name string) (DecoderElement, error)
}
