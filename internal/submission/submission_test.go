package submission

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{"device_id":"abc123","is_compromised":false,"ip_address":"1.2.3.4","gps_location":{"latitude":1.0,"longitude":2.0}}`

func TestParseMetadata_Valid(t *testing.T) {
	m, err := ParseMetadata([]byte(validJSON))
	require.NoError(t, err)

	assert.Equal(t, "abc123", m.DeviceID)
	assert.Equal(t, "false", m.IsCompromised)
	assert.Equal(t, DefaultPlatform, m.Platform)
	assert.Equal(t, "1.2.3.4", m.IPAddress)
	assert.Equal(t, "1.0", m.Latitude)
	assert.Equal(t, "2.0", m.Longitude)
	assert.False(t, m.Compromised())
	assert.JSONEq(t, `"abc123"`, string(m.DeviceIDJSON()))

	lat, lon, ok := m.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 1.0, lat)
	assert.Equal(t, 2.0, lon)
	assert.NoError(t, m.Location())
}

func TestParseMetadata_PlatformAndNumericID(t *testing.T) {
	m, err := ParseMetadata([]byte(`{"device_id":42,"is_compromised":true,"platform":"android","ip_address":"10.0.0.1","gps_location":{"latitude":"n/a","longitude":3}}`))
	require.NoError(t, err)

	assert.Equal(t, "42", m.DeviceID)
	assert.Equal(t, "android", m.Platform)
	assert.True(t, m.Compromised())

	_, _, ok := m.Coordinates()
	assert.False(t, ok, "non-numeric latitude must not parse")
}

func TestParseMetadata_MissingFieldsInOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty object", `{}`, "device_id"},
		{"only device", `{"device_id":"d"}`, "is_compromised"},
		{"no gps", `{"device_id":"d","is_compromised":false,"ip_address":"x"}`, "gps_location"},
		{"no ip", `{"device_id":"d","is_compromised":false,"gps_location":{"latitude":1,"longitude":2}}`, "ip_address"},
		{"null value still counts as present", `{"device_id":null,"is_compromised":false,"gps_location":{"latitude":1,"longitude":2}}`, "ip_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(tt.body))
			var mf *MissingFieldError
			require.True(t, errors.As(err, &mf), "expected MissingFieldError, got %v", err)
			assert.Equal(t, tt.want, mf.Field)
		})
	}
}

func TestParseMetadata_InvalidJSON(t *testing.T) {
	for _, body := range []string{`{not json`, `[1,2,3]`, `[]`, `"text"`, `5`, `null`, ``} {
		_, err := ParseMetadata([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidJSON, "body %q", body)
	}
}

func TestParseMetadata_MalformedLocation(t *testing.T) {
	for _, gps := range []string{`"here"`, `{"latitude":1}`, `{"longitude":1}`, `null`} {
		body := `{"device_id":"d","is_compromised":false,"ip_address":"x","gps_location":` + gps + `}`
		m, err := ParseMetadata([]byte(body))
		require.NoError(t, err, "gps %s", gps)
		assert.ErrorIs(t, m.Location(), ErrMalformedLocation, "gps %s", gps)

		_, _, ok := m.Coordinates()
		assert.False(t, ok)

		_, err = Transcript{Metadata: m, ReceivedAt: time.Now()}.Bytes()
		assert.ErrorIs(t, err, ErrMalformedLocation)
	}
}

func TestNames(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)

	assert.Equal(t, "mobile_liveness_abc123_20240309_070501.mp4", VideoName("abc123", at))
	assert.Equal(t, "device_data_abc123_20240309_070501.txt", TranscriptName("abc123", at))
	assert.Equal(t, "mobile_liveness_.._etc_20240309_070501.mp4", VideoName("../etc", at))
}

func TestTranscript_Bytes(t *testing.T) {
	m, err := ParseMetadata([]byte(validJSON))
	require.NoError(t, err)

	at := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	b, err := Transcript{
		Metadata:         m,
		ReceivedAt:       at,
		OriginalFilename: "clip.mp4",
		VideoSize:        10,
		VideoName:        VideoName(m.DeviceID, at),
		VideoSHA256:      "deadbeef",
	}.Bytes()
	require.NoError(t, err)
	out := string(b)

	for _, want := range []string{
		"=== DEVICE VERIFICATION DATA ===\n",
		"Timestamp: 2024-03-09 07:05:01\n",
		"Received At: 2024-03-09T07:05:01.000000Z\n",
		"Device ID: abc123\n",
		"Is Compromised: false\n",
		"Platform: unknown\n",
		"IP Address: 1.2.3.4\n",
		"Latitude: 1.0\n",
		"Longitude: 2.0\n",
		"Video Filename: clip.mp4\n",
		"Video Size: 10 bytes\n",
		"Video Saved As: mobile_liveness_abc123_20240309_070501.mp4\n",
		"Video SHA-256: deadbeef\n",
		"--- RAW JSON DATA ---\n{\n  \"device_id\": \"abc123\",",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasSuffix(out, "}"))
}
