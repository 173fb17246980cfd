// Package pipeline defines the audio engine abstraction (element and
// pipeline interfaces, engine states, and bus messages) plus the
// AudioPipeline facade that owns the element graph:
// source, decoder, converter, volume, sink.
package pipeline

import "fmt"

// State is an engine pipeline state.
type State int

const (
	// StateVoidPending marks "no pending state" in state queries and
	// state-changed messages.
	StateVoidPending State = iota
	StateNull
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateVoidPending:
		return "VOID_PENDING"
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateChangeResult is the outcome of a state change request or query.
type StateChangeResult int

const (
	StateChangeFailure StateChangeResult = iota
	StateChangeSuccess
	// StateChangeAsync means the change is in progress; completion is
	// reported on the bus.
	StateChangeAsync
	// StateChangeNoPreroll means the change succeeded but the pipeline
	// cannot produce data in the paused state (live sources).
	StateChangeNoPreroll
)

func (r StateChangeResult) String() string {
	switch r {
	case StateChangeFailure:
		return "FAILURE"
	case StateChangeSuccess:
		return "SUCCESS"
	case StateChangeAsync:
		return "ASYNC"
	case StateChangeNoPreroll:
		return "NO_PREROLL"
	default:
		return fmt.Sprintf("StateChangeResult(%d)", int(r))
	}
}

// Engine volume element scale.
const (
	EngineVolumeMin = 0.0
	EngineVolumeMax = 1.0

	EngineAdjustVolumeMin = -1.0
	EngineAdjustVolumeMax = 1.0
)
