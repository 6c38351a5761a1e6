package submission

import (
	"strings"
	"time"
)

// Time layouts used in filenames, transcripts and JSON responses.
const (
	KeyLayout     = "20060102_150405"
	DisplayLayout = "2006-01-02 15:04:05"
	ISOLayout     = "2006-01-02T15:04:05.000000Z07:00"
)

// DataSaveFailed is reported as data_saved_as when the transcript could not be written.
const DataSaveFailed = "failed"

var fileUnsafe = strings.NewReplacer("/", "_", "\\", "_", "\x00", "_")

// FileSafeID replaces path separators and NUL in a device id.
func FileSafeID(deviceID string) string {
	return fileUnsafe.Replace(deviceID)
}

// Key is the {device_id}_{timestamp} part shared by both artifacts of a submission.
func Key(deviceID string, at time.Time) string {
	return FileSafeID(deviceID) + "_" + at.Format(KeyLayout)
}

// VideoName returns mobile_liveness_{device_id}_{timestamp}.mp4.
func VideoName(deviceID string, at time.Time) string {
	return "mobile_liveness_" + Key(deviceID, at) + ".mp4"
}

// TranscriptName returns device_data_{device_id}_{timestamp}.txt.
func TranscriptName(deviceID string, at time.Time) string {
	return "device_data_" + Key(deviceID, at) + ".txt"
}
