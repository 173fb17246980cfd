package player

import "github.com/kohtzk/mediaplayer-go/internal/models"

// Observer receives playback lifecycle, buffering, tag, and error events.
// Every callback fires on the dispatcher goroutine; implementations must not
// call back into the player from inside a callback.
//
// For one source id the event order is:
//
//	started → (paused|underrun|refilled|resumed|tags)* → (finished|stopped|error)
//
// and no callback carries an id after its terminal event.
type Observer interface {
	OnPlaybackStarted(id models.SourceID)
	OnPlaybackPaused(id models.SourceID)
	OnPlaybackResumed(id models.SourceID)
	OnPlaybackStopped(id models.SourceID)
	OnPlaybackFinished(id models.SourceID)
	OnPlaybackError(id models.SourceID, errorType models.ErrorType, message string)
	OnBufferUnderrun(id models.SourceID)
	OnBufferRefilled(id models.SourceID)
	OnTags(id models.SourceID, tags []models.Tag)
}
