package submission

import (
	"errors"
	"fmt"
)

// Client-side intake failures. Callers match them with errors.Is.
var (
	ErrInvalidContentType = errors.New("content type is not multipart/form-data")
	ErrMissingDataPart    = errors.New("missing data part")
	ErrInvalidJSON        = errors.New("data part is not a JSON object")
	ErrMissingVideoFile   = errors.New("missing liveness_video file")
	ErrNoFileSelected     = errors.New("no video file selected")
	ErrMalformedMultipart = errors.New("malformed multipart body")
)

// ErrMalformedLocation means gps_location is present but has no coordinates.
// The submission is still stored; only its transcript cannot be built.
var ErrMalformedLocation = errors.New("gps_location must be an object with latitude and longitude")

// MissingFieldError reports the first required metadata key that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}
