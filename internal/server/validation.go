// validation.go - inspection of the uploaded video part
package server

import (
	"mime"
	"path/filepath"
	"strings"
)

// defaultVideoContentType is used when the client sends no part Content-Type.
const defaultVideoContentType = "video/mp4"

// knownVideoTypes are the container types mobile recorders produce.
var knownVideoTypes = map[string]bool{
	"video/mp4":                true,
	"video/quicktime":          true,
	"video/3gpp":               true,
	"video/3gpp2":              true,
	"video/webm":               true,
	"video/mpeg":               true,
	"video/x-matroska":         true,
	"application/octet-stream": true,
}

// videoPart describes the liveness_video part as declared by the client.
type videoPart struct {
	Filename    string
	ContentType string
}

// fileParam returns the raw filename parameter of a Content-Disposition
// header. ok is false when the part is a plain form field.
func fileParam(contentDisposition string) (filename string, ok bool) {
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return "", false
	}
	filename, ok = params["filename"]
	return filename, ok
}

// mediaType strips parameters and normalises case.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// storedContentType is the type recorded for the mirrored video object.
func (v videoPart) storedContentType() string {
	if mt := mediaType(v.ContentType); mt != "" {
		return mt
	}
	return defaultVideoContentType
}

// warning returns a note for the log when the declared type or extension does
// not look like a video. Submissions are never rejected for it.
func (v videoPart) warning() string {
	if mt := mediaType(v.ContentType); mt != "" && !knownVideoTypes[mt] {
		return "unexpected video content type " + mt
	}

	ext := strings.ToLower(filepath.Ext(v.Filename))
	if ext == "" {
		return ""
	}
	if byExt := mediaType(mime.TypeByExtension(ext)); byExt != "" && !strings.HasPrefix(byExt, "video/") {
		return "video filename extension suggests " + byExt
	}
	return ""
}
