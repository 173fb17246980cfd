package player

import (
	"github.com/kohtzk/mediaplayer-go/internal/models"
	"github.com/kohtzk/mediaplayer-go/internal/pipeline"
)

// classifyEngineError maps an engine error plus the adapter's remoteness
// into the public error taxonomy:
//
//   - explicit HTTP status families win: 4xx → INVALID_REQUEST,
//     503 → SERVICE_UNAVAILABLE, other 5xx → INTERNAL_SERVER_ERROR
//   - errors not originating from the source element are device errors
//   - network-like failures from the source are SERVICE_UNAVAILABLE when the
//     content is remote, device errors when local
//   - everything else is UNKNOWN
func classifyEngineError(err *pipeline.EngineError, remote bool) models.ErrorType {
	if err == nil {
		return models.MediaErrorUnknown
	}
	if err.HTTPStatus != 0 {
		switch {
		case err.HTTPStatus >= 400 && err.HTTPStatus < 500:
			return models.MediaErrorInvalidRequest
		case err.HTTPStatus == 503:
			return models.MediaErrorServiceUnavailable
		case err.HTTPStatus >= 500 && err.HTTPStatus < 600:
			return models.MediaErrorInternalServerError
		}
	}
	if !err.FromSource {
		return models.MediaErrorInternalDeviceError
	}
	switch err.Domain {
	case pipeline.DomainNetwork, pipeline.DomainResource:
		if remote {
			return models.MediaErrorServiceUnavailable
		}
		return models.MediaErrorInternalDeviceError
	case pipeline.DomainCore:
		return models.MediaErrorInternalDeviceError
	}
	return models.MediaErrorUnknown
}
