package models

import "fmt"

// ErrorType classifies a playback error surfaced to the observer.
type ErrorType int

const (
	// MediaErrorUnknown is the fallback for unclassifiable failures.
	MediaErrorUnknown ErrorType = iota
	// MediaErrorInvalidRequest covers malformed or rejected requests (HTTP 4xx).
	MediaErrorInvalidRequest
	// MediaErrorServiceUnavailable covers unreachable or overloaded remote
	// services (HTTP 503 and transient 5xx).
	MediaErrorServiceUnavailable
	// MediaErrorInternalServerError covers other remote 5xx failures.
	MediaErrorInternalServerError
	// MediaErrorInternalDeviceError covers local failures: engine state-change
	// failures and errors not originating from the source.
	MediaErrorInternalDeviceError
)

func (e ErrorType) String() string {
	switch e {
	case MediaErrorUnknown:
		return "MEDIA_ERROR_UNKNOWN"
	case MediaErrorInvalidRequest:
		return "MEDIA_ERROR_INVALID_REQUEST"
	case MediaErrorServiceUnavailable:
		return "MEDIA_ERROR_SERVICE_UNAVAILABLE"
	case MediaErrorInternalServerError:
		return "MEDIA_ERROR_INTERNAL_SERVER_ERROR"
	case MediaErrorInternalDeviceError:
		return "MEDIA_ERROR_INTERNAL_DEVICE_ERROR"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(e))
	}
}
