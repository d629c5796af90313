package ai

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURI is a parsed data: URL attachment payload.
type DataURI struct {
	MediaType string
	Base64    bool
	Payload   string
}

// ParseDataURI splits a data: URL into media type, encoding flag and raw
// payload. The payload is left undecoded.
func ParseDataURI(url string) (*DataURI, error) {
	if !strings.HasPrefix(url, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}

	header, payload, ok := strings.Cut(url, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI: missing payload separator")
	}

	mediaType := strings.TrimPrefix(strings.SplitN(header, ";", 2)[0], "data:")

	return &DataURI{
		MediaType: mediaType,
		Base64:    strings.Contains(header, "base64"),
		Payload:   payload,
	}, nil
}

// Decode returns the payload bytes, base64-decoding when flagged.
// Embedded newlines in base64 payloads are tolerated.
func (d *DataURI) Decode() ([]byte, error) {
	if !d.Base64 {
		return []byte(d.Payload), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(d.Payload, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return decoded, nil
}
