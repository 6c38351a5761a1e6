package submission

import (
	"bytes"
	"fmt"
	"time"
)

// Transcript is the human-readable audit file written next to each video.
type Transcript struct {
	Metadata         *Metadata
	ReceivedAt       time.Time
	OriginalFilename string
	VideoSize        int64
	VideoName        string
	VideoSHA256      string
}

// Bytes renders the transcript. It fails when the metadata has no usable
// location.
func (t Transcript) Bytes() ([]byte, error) {
	m := t.Metadata
	if err := m.Location(); err != nil {
		return nil, err
	}
	var b bytes.Buffer

	b.WriteString("=== DEVICE VERIFICATION DATA ===\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", t.ReceivedAt.Format(DisplayLayout))
	fmt.Fprintf(&b, "Received At: %s\n", t.ReceivedAt.Format(ISOLayout))

	b.WriteString("\n--- DEVICE INFORMATION ---\n")
	fmt.Fprintf(&b, "Device ID: %s\n", m.DeviceID)
	fmt.Fprintf(&b, "Is Compromised: %s\n", m.IsCompromised)
	fmt.Fprintf(&b, "Platform: %s\n", m.Platform)
	fmt.Fprintf(&b, "IP Address: %s\n", m.IPAddress)

	b.WriteString("\n--- LOCATION DATA ---\n")
	fmt.Fprintf(&b, "Latitude: %s\n", m.Latitude)
	fmt.Fprintf(&b, "Longitude: %s\n", m.Longitude)

	b.WriteString("\n--- VIDEO INFORMATION ---\n")
	fmt.Fprintf(&b, "Video Filename: %s\n", t.OriginalFilename)
	fmt.Fprintf(&b, "Video Size: %d bytes\n", t.VideoSize)
	fmt.Fprintf(&b, "Video Saved As: %s\n", t.VideoName)
	if t.VideoSHA256 != "" {
		fmt.Fprintf(&b, "Video SHA-256: %s\n", t.VideoSHA256)
	}

	b.WriteString("\n--- RAW JSON DATA ---\n")
	b.WriteString(m.PrettyJSON())

	return b.Bytes(), nil
}
