package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SubmissionRecord is one row of the submissions table.
type SubmissionRecord struct {
	ID               string    `json:"id"`
	DeviceID         string    `json:"device_id"`
	IsCompromised    bool      `json:"is_compromised"`
	Platform         string    `json:"platform"`
	IPAddress        string    `json:"ip_address"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	OriginalFilename string    `json:"original_filename"`
	VideoName        string    `json:"video_name"`
	TranscriptName   string    `json:"transcript_name,omitempty"`
	VideoSize        int64     `json:"video_size"`
	VideoSHA256      string    `json:"video_sha256"`
	ReceivedAt       time.Time `json:"received_at"`
}

// SubmissionIndex stores submission metadata in Postgres.
type SubmissionIndex struct {
	db *sql.DB
}

// NewSubmissionIndex wraps an open pool whose schema is already migrated.
// OpenSubmissionIndex does both.
func NewSubmissionIndex(db *sql.DB) *SubmissionIndex {
	return &SubmissionIndex{db: db}
}

// Record inserts rec, assigning an id when it has none.
func (x *SubmissionIndex) Record(ctx context.Context, rec SubmissionRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	_, err := x.db.ExecContext(ctx, `
		INSERT INTO submissions (
			id, device_id, is_compromised, platform, ip_address, latitude, longitude,
			original_filename, video_name, transcript_name, video_size, video_sha256, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		rec.ID,
		rec.DeviceID,
		rec.IsCompromised,
		rec.Platform,
		rec.IPAddress,
		nullFloat(rec.Latitude),
		nullFloat(rec.Longitude),
		rec.OriginalFilename,
		rec.VideoName,
		nullString(rec.TranscriptName),
		rec.VideoSize,
		rec.VideoSHA256,
		rec.ReceivedAt,
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Recent returns up to limit submissions, newest first.
func (x *SubmissionIndex) Recent(ctx context.Context, limit int) ([]SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT id, device_id, is_compromised, platform, ip_address, latitude, longitude,
		       original_filename, video_name, transcript_name, video_size, video_sha256, received_at
		FROM submissions
		ORDER BY received_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		var (
			rec        SubmissionRecord
			lat, lon   sql.NullFloat64
			transcript sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.DeviceID,
			&rec.IsCompromised,
			&rec.Platform,
			&rec.IPAddress,
			&lat,
			&lon,
			&rec.OriginalFilename,
			&rec.VideoName,
			&transcript,
			&rec.VideoSize,
			&rec.VideoSHA256,
			&rec.ReceivedAt,
		)
		if err != nil {
			return nil, err
		}
		if lat.Valid {
			rec.Latitude = &lat.Float64
		}
		if lon.Valid {
			rec.Longitude = &lon.Float64
		}
		if transcript.Valid {
			rec.TranscriptName = transcript.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (x *SubmissionIndex) Close() error {
	return x.db.Close()
}

// Ping checks the connection for readiness probes.
func (x *SubmissionIndex) Ping(ctx context.Context) error {
	return x.db.PingContext(ctx)
}

// nullString helper for nullable strings
func nullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
