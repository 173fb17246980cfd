// Package mediaplayer is an audio media player controller. It accepts one
// audio source at a time (a byte stream, a pull-style attachment reader, or
// a URL with playlist expansion), renders it through a local audio pipeline,
// and reports playback lifecycle, buffering, tag, and error events to an
// observer.
//
// All commands are serialized through a single dispatcher goroutine together
// with the engine's bus traffic; observer callbacks fire on that goroutine.
package mediaplayer

import (
	"github.com/kohtzk/mediaplayer-go/internal/engine/beepengine"
	"github.com/kohtzk/mediaplayer-go/internal/fetcher"
	"github.com/kohtzk/mediaplayer-go/internal/models"
	"github.com/kohtzk/mediaplayer-go/internal/player"
)

// Core types, re-exported from the internal packages.
type (
	MediaPlayer     = player.MediaPlayer
	Config          = player.Config
	Observer        = player.Observer
	SourceID        = models.SourceID
	Tag             = models.Tag
	TagType         = models.TagType
	SpeakerSettings = models.SpeakerSettings
	SpeakerType     = models.SpeakerType
	ErrorType       = models.ErrorType
)

// Sentinels and enums.
const (
	// ErrorSourceID is returned by SetSource* on failure and never names a
	// live source.
	ErrorSourceID = models.ErrorSourceID

	// InvalidOffset is returned by GetOffset when no position is available.
	InvalidOffset = models.InvalidOffset

	SpeakerAvatar = models.SpeakerAvatar
	SpeakerAlert  = models.SpeakerAlert

	MediaErrorUnknown             = models.MediaErrorUnknown
	MediaErrorInvalidRequest      = models.MediaErrorInvalidRequest
	MediaErrorServiceUnavailable  = models.MediaErrorServiceUnavailable
	MediaErrorInternalServerError = models.MediaErrorInternalServerError
	MediaErrorInternalDeviceError = models.MediaErrorInternalDeviceError
)

// New creates a player from an explicit configuration.
func New(cfg Config) (*MediaPlayer, error) {
	return player.New(cfg)
}

// NewWithDefaults creates a player over the built-in beep engine and the
// default HTTP fetcher, the configuration most applications want.
func NewWithDefaults(speakerType SpeakerType) (*MediaPlayer, error) {
	return player.New(player.Config{
		Engine:         beepengine.New(),
		FetcherFactory: fetcher.NewHTTPFactory(),
		SpeakerType:    speakerType,
	})
}
