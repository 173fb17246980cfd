package pipeline

import "fmt"

// MessageKind identifies a bus message.
type MessageKind int

const (
	MessageEOS MessageKind = iota
	MessageError
	MessageStateChanged
	MessageBuffering
	MessageTag
)

func (k MessageKind) String() string {
	switch k {
	case MessageEOS:
		return "EOS"
	case MessageError:
		return "ERROR"
	case MessageStateChanged:
		return "STATE_CHANGED"
	case MessageBuffering:
		return "BUFFERING"
	case MessageTag:
		return "TAG"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// ErrorDomain is the engine-side classification of an error's origin layer.
type ErrorDomain int

const (
	// DomainCore covers engine-internal failures (state changes, wiring).
	DomainCore ErrorDomain = iota
	// DomainResource covers failures opening/reading the underlying resource.
	DomainResource
	// DomainNetwork covers transport-level failures.
	DomainNetwork
	// DomainStream covers decode/parse failures in the stream itself.
	DomainStream
)

// EngineError is the payload of a MessageError bus message.
type EngineError struct {
	Domain ErrorDomain
	// FromSource is true when the failing element is the source element,
	// i.e. the error originated in the attached adapter's data path.
	FromSource bool
	// HTTPStatus is the underlying HTTP status code when the resource was
	// fetched over HTTP, 0 otherwise.
	HTTPStatus int
	Message    string
}

func (e *EngineError) Error() string { return e.Message }

// TagValue is one raw metadata entry as the engine decoded it. The player
// stringifies recognized value types and drops the rest.
type TagValue struct {
	Key   string
	Value any
}

// Message is one engine bus delivery. Only the fields relevant to Kind are
// populated.
type Message struct {
	Kind MessageKind

	// Origin is the emitting element's name. FromPipeline is true when the
	// message originates from the pipeline root; the state machine ignores
	// EOS and STATE_CHANGED messages from anywhere else.
	Origin       string
	FromPipeline bool

	// STATE_CHANGED
	Old     State
	New     State
	Pending State

	// BUFFERING
	Percent int

	// ERROR
	Err *EngineError

	// TAG
	Tags []TagValue
}
