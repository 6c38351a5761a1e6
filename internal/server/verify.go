package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"liveness-intake/internal/storage"
	"liveness-intake/internal/submission"
)

const (
	dataField  = "data"
	videoField = "liveness_video"

	// maxDataBytes bounds the JSON metadata part.
	maxDataBytes = 1 << 20
)

// verifyResp is the acknowledgement returned for a stored submission.
type verifyResp struct {
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	ReceivedAt   string          `json:"received_at"`
	DeviceID     json.RawMessage `json:"device_id"`
	VideoSize    int64           `json:"video_size"`
	VideoSavedAs string          `json:"video_saved_as"`
	DataSavedAs  string          `json:"data_saved_as"`
}

// intake is the state of one POST /verify while its parts are read.
type intake struct {
	meta       *submission.Metadata
	receivedAt time.Time

	videoSeen bool // a liveness_video part with a filename parameter arrived
	video     videoPart
	spooled   *storage.Spooled
	result    storage.WriteResult
}

// readErrTracker remembers the first read error so a failed copy can be
// attributed to the client body rather than the disk.
type readErrTracker struct {
	r   io.Reader
	err error
}

func (t *readErrTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", submission.ErrMalformedMultipart, err)
}

// verifyHandler handles POST /verify: a multipart body with a JSON "data"
// field and a "liveness_video" file. Both are stored under names derived from
// the device id and the receipt time, then a JSON acknowledgement is returned.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := RequestIDFromContext(r.Context())

	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	// Failures only ever remove this request's spool file.
	in := &intake{}
	defer func() { in.spooled.Discard() }()

	if err := s.readSubmission(r, in); err != nil {
		s.writeIntakeError(w, r, err)
		return
	}

	videoName := submission.VideoName(in.meta.DeviceID, in.receivedAt)
	if err := s.store.Commit(in.spooled, videoName); err != nil {
		s.writeIntakeError(w, r, fmt.Errorf("commit video: %w", err))
		return
	}
	in.result = in.spooled.Result
	in.spooled = nil

	s.log.Info("verification received", map[string]interface{}{
		"rid":            rid,
		"device_id":      in.meta.DeviceID,
		"is_compromised": in.meta.IsCompromised,
		"platform":       in.meta.Platform,
		"ip_address":     in.meta.IPAddress,
		"video_filename": in.video.Filename,
		"content_type":   in.video.ContentType,
		"video_size":     in.result.Size,
		"video_saved_as": videoName,
	})
	if warn := in.video.warning(); warn != "" {
		s.log.Warn(warn, map[string]interface{}{"rid": rid, "video_filename": in.video.Filename})
	}

	transcriptName := submission.TranscriptName(in.meta.DeviceID, in.receivedAt)
	dataSavedAs := transcriptName
	transcript, err := submission.Transcript{
		Metadata:         in.meta,
		ReceivedAt:       in.receivedAt,
		OriginalFilename: in.video.Filename,
		VideoSize:        in.result.Size,
		VideoName:        videoName,
		VideoSHA256:      in.result.SHA256,
	}.Bytes()
	if err == nil {
		err = s.store.WriteFile(transcriptName, transcript)
	}
	if err != nil {
		s.metrics.RecordTranscriptFailure()
		s.log.Error("transcript write failed", map[string]interface{}{
			"rid":  rid,
			"name": transcriptName,
		}, err)
		dataSavedAs = submission.DataSaveFailed
		transcript = nil
	}

	s.dispatchSinks(r.Context(), sinkJob{
		meta:           in.meta,
		video:          in.video,
		result:         in.result,
		videoName:      videoName,
		transcriptName: dataSavedAs,
		transcript:     transcript,
		receivedAt:     in.receivedAt,
	})

	s.metrics.RecordSubmission(in.result.Size, time.Since(start))

	writeJSON(w, http.StatusOK, verifyResp{
		Status:       "received_ok",
		Message:      "Successfully received both JSON data and video file from mobile",
		ReceivedAt:   in.receivedAt.Format(submission.ISOLayout),
		DeviceID:     in.meta.DeviceIDJSON(),
		VideoSize:    in.result.Size,
		VideoSavedAs: videoName,
		DataSavedAs:  dataSavedAs,
	})
}

// readSubmission walks the multipart body once. The first "data" form field
// and the first "liveness_video" file part win; other parts are skipped.
// Metadata errors are returned as soon as the data part is read; a missing
// data part or video is only known once the body is exhausted.
func (s *Server) readSubmission(r *http.Request, in *intake) error {
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		return submission.ErrInvalidContentType
	}
	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrMissingBoundary) {
		// Parsed as an empty form.
		return submission.ErrMissingDataPart
	}
	if err != nil {
		return fmt.Errorf("%w: %w", submission.ErrInvalidContentType, err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return malformed(err)
		}

		filename, isFile := fileParam(part.Header.Get("Content-Disposition"))
		switch {
		case part.FormName() == dataField && !isFile && in.meta == nil:
			err = s.readData(part, in)
		case part.FormName() == videoField && isFile && !in.videoSeen:
			in.videoSeen = true
			in.video = videoPart{Filename: filename, ContentType: part.Header.Get("Content-Type")}
			if filename != "" {
				err = s.readVideo(part, in)
			}
		}
		_ = part.Close()
		if err != nil {
			return err
		}
	}

	switch {
	case in.meta == nil:
		return submission.ErrMissingDataPart
	case !in.videoSeen:
		return submission.ErrMissingVideoFile
	case in.video.Filename == "":
		return submission.ErrNoFileSelected
	}
	return nil
}

func (s *Server) readData(part *multipart.Part, in *intake) error {
	raw, err := io.ReadAll(io.LimitReader(part, maxDataBytes+1))
	if err != nil {
		return malformed(err)
	}
	if len(raw) > maxDataBytes {
		return submission.ErrInvalidJSON
	}

	meta, err := submission.ParseMetadata(raw)
	if err != nil {
		return err
	}
	in.meta = meta
	in.receivedAt = s.now()
	return nil
}

// readVideo spools the video. It is named and moved into the upload
// directory only after the whole body has been read.
func (s *Server) readVideo(part *multipart.Part, in *intake) error {
	src := &readErrTracker{r: part}
	sp, err := s.store.Spool(src)
	if err != nil {
		if src.err != nil {
			return malformed(src.err)
		}
		return fmt.Errorf("spool video: %w", err)
	}
	in.spooled = sp
	return nil
}

// writeIntakeError maps intake errors to HTTP responses in one place.
func (s *Server) writeIntakeError(w http.ResponseWriter, r *http.Request, err error) {
	rid := RequestIDFromContext(r.Context())

	var (
		missing *submission.MissingFieldError
		tooBig  *http.MaxBytesError
		status  = http.StatusBadRequest
		msg     string
	)
	switch {
	case errors.As(err, &tooBig):
		status, msg = http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, submission.ErrInvalidContentType):
		msg = "Content type must be multipart/form-data"
	case errors.Is(err, submission.ErrMissingDataPart):
		msg = "Missing 'data' part"
	case errors.Is(err, submission.ErrInvalidJSON):
		msg = "Invalid JSON in 'data' part"
	case errors.As(err, &missing):
		msg = "Missing required field: " + missing.Field
	case errors.Is(err, submission.ErrMissingVideoFile):
		msg = "Missing 'liveness_video' file"
	case errors.Is(err, submission.ErrNoFileSelected):
		msg = "No video file selected"
	case errors.Is(err, submission.ErrMalformedMultipart):
		msg = "Malformed multipart body"
	default:
		s.metrics.RecordSubmissionError()
		s.log.Error("verification failed", map[string]interface{}{"rid": rid}, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"details": err.Error(),
		})
		return
	}

	s.metrics.RecordValidationFailure()
	s.log.Warn("verification rejected", map[string]interface{}{
		"rid":    rid,
		"status": status,
		"reason": msg,
		"cause":  err.Error(),
	})
	writeError(w, status, msg)
}
