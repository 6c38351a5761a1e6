package server

import (
	"bytes"
	"context"
	"time"

	"liveness-intake/internal/events"
	"liveness-intake/internal/storage"
	"liveness-intake/internal/submission"
)

const (
	sinkIndex  = "index"
	sinkMirror = "mirror"
	sinkEvents = "events"
)

// sinkJob carries a stored submission to the optional sinks.
type sinkJob struct {
	meta           *submission.Metadata
	video          videoPart
	result         storage.WriteResult
	videoName      string
	transcriptName string // submission.DataSaveFailed when no transcript exists
	transcript     []byte
	receivedAt     time.Time
}

// dispatchSinks runs the index, mirror and publisher for one submission.
// Failures are logged and counted; they never fail the request.
func (s *Server) dispatchSinks(parent context.Context, job sinkJob) {
	if s.index == nil && s.mirror == nil {
		if _, ok := s.publisher.(events.Nop); ok {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.SinkTimeout)
	defer cancel()

	rid := RequestIDFromContext(parent)
	fail := func(sink string, err error) {
		s.metrics.RecordSinkFailure()
		s.log.Warn("sink failed", map[string]interface{}{
			"rid":       rid,
			"sink":      sink,
			"device_id": job.meta.DeviceID,
			"error":     err.Error(),
		})
	}

	transcriptName := job.transcriptName
	if transcriptName == submission.DataSaveFailed {
		transcriptName = ""
	}

	if s.index != nil {
		rec := SubmissionRecord{
			DeviceID:         job.meta.DeviceID,
			IsCompromised:    job.meta.Compromised(),
			Platform:         job.meta.Platform,
			IPAddress:        job.meta.IPAddress,
			OriginalFilename: job.video.Filename,
			VideoName:        job.videoName,
			TranscriptName:   transcriptName,
			VideoSize:        job.result.Size,
			VideoSHA256:      job.result.SHA256,
			ReceivedAt:       job.receivedAt,
		}
		if lat, lon, ok := job.meta.Coordinates(); ok {
			rec.Latitude, rec.Longitude = &lat, &lon
		}
		err := s.breakers.run(sinkIndex, func() error {
			_, err := s.index.Record(ctx, rec)
			return err
		})
		if err != nil {
			fail(sinkIndex, err)
		}
	}

	if s.mirror != nil {
		err := s.breakers.run(sinkMirror, func() error {
			return s.mirrorArtifacts(ctx, job, transcriptName)
		})
		if err != nil {
			fail(sinkMirror, err)
		}
	}

	if _, ok := s.publisher.(events.Nop); ok {
		return
	}
	err := s.breakers.run(sinkEvents, func() error {
		return s.publisher.Publish(ctx, events.Event{
			Type:          events.TypeVerificationReceived,
			DeviceID:      job.meta.DeviceIDJSON(),
			IsCompromised: job.meta.Compromised(),
			Platform:      job.meta.Platform,
			VideoSavedAs:  job.videoName,
			DataSavedAs:   job.transcriptName,
			VideoSize:     job.result.Size,
			VideoSHA256:   job.result.SHA256,
			ReceivedAt:    job.receivedAt,
			Key:           submission.FileSafeID(job.meta.DeviceID),
		})
	})
	if err != nil {
		fail(sinkEvents, err)
	}
}

func (s *Server) mirrorArtifacts(ctx context.Context, job sinkJob, transcriptName string) error {
	f, info, err := s.store.Open(job.videoName)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := s.mirror.Put(ctx, job.receivedAt, job.videoName, f, info.Size(), job.video.storedContentType()); err != nil {
		return err
	}

	if transcriptName == "" {
		return nil
	}
	_, err = s.mirror.Put(ctx, job.receivedAt, transcriptName, bytes.NewReader(job.transcript), int64(len(job.transcript)), "text/plain; charset=utf-8")
	return err
}
