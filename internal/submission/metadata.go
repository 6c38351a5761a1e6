// Package submission holds the verification metadata model, the naming rules
// for stored artifacts and the transcript layout. It has no I/O of its own.
package submission

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RequiredFields lists the metadata keys every submission must carry, in the
// order they are checked.
var RequiredFields = []string{"device_id", "is_compromised", "gps_location", "ip_address"}

// DefaultPlatform is reported when the client omits "platform".
const DefaultPlatform = "unknown"

// Metadata is the decoded "data" part of a verification request.
//
// Scalar values are kept as display text because mobile clients are not
// consistent about types (device ids arrive as strings or numbers).
type Metadata struct {
	DeviceID      string
	IsCompromised string
	Platform      string
	IPAddress     string
	Latitude      string
	Longitude     string

	deviceIDRaw json.RawMessage
	compromised bool
	locationErr error
	raw         json.RawMessage
}

// ParseMetadata decodes raw as a JSON object and checks the required keys.
// Only presence is checked; values may be of any JSON type. A gps_location
// without coordinates is accepted here and reported by Location.
func ParseMetadata(raw []byte) (*Metadata, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrInvalidJSON
	}

	for _, name := range RequiredFields {
		if _, ok := fields[name]; !ok {
			return nil, &MissingFieldError{Field: name}
		}
	}

	m := &Metadata{
		DeviceID:      displayText(fields["device_id"]),
		IsCompromised: displayText(fields["is_compromised"]),
		Platform:      DefaultPlatform,
		IPAddress:     displayText(fields["ip_address"]),
		deviceIDRaw:   append(json.RawMessage(nil), fields["device_id"]...),
		raw:           append(json.RawMessage(nil), raw...),
	}
	if p, ok := fields["platform"]; ok {
		m.Platform = displayText(p)
	}
	_ = json.Unmarshal(fields["is_compromised"], &m.compromised)

	var gps map[string]json.RawMessage
	if err := json.Unmarshal(fields["gps_location"], &gps); err != nil || gps == nil {
		m.locationErr = ErrMalformedLocation
		return m, nil
	}
	lat, okLat := gps["latitude"]
	lon, okLon := gps["longitude"]
	if !okLat || !okLon {
		m.locationErr = ErrMalformedLocation
		return m, nil
	}
	m.Latitude, m.Longitude = displayText(lat), displayText(lon)

	return m, nil
}

// Location returns ErrMalformedLocation when gps_location is not an object
// carrying both latitude and longitude.
func (m *Metadata) Location() error {
	return m.locationErr
}

// DeviceIDJSON returns device_id exactly as the client encoded it.
func (m *Metadata) DeviceIDJSON() json.RawMessage {
	return m.deviceIDRaw
}

// Compromised reports whether is_compromised was the JSON literal true.
func (m *Metadata) Compromised() bool {
	return m.compromised
}

// Coordinates returns the GPS position when both values are numeric.
func (m *Metadata) Coordinates() (lat, lon float64, ok bool) {
	lat, errLat := strconv.ParseFloat(m.Latitude, 64)
	lon, errLon := strconv.ParseFloat(m.Longitude, 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// PrettyJSON re-indents the submitted object with two spaces, keeping the
// client's key order.
func (m *Metadata) PrettyJSON() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, m.raw, "", "  "); err != nil {
		return string(m.raw)
	}
	return buf.String()
}

// displayText renders a JSON value for humans: strings lose their quotes,
// everything else is shown in compact JSON form.
func displayText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}
