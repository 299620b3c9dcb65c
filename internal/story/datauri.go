package story

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// PlaceholderImageURL marks a sentence whose illustration could not be produced.
const PlaceholderImageURL = "https://placehold.co/600x400.png"

// IsPlaceholder reports whether url is the placeholder image.
func IsPlaceholder(url string) bool {
	return strings.HasPrefix(url, "https://placehold.co")
}

// IsDataURI reports whether value carries inline data.
func IsDataURI(value string) bool {
	return strings.HasPrefix(value, "data:")
}

// EncodeDataURI renders payload as a base64 data URI.
func EncodeDataURI(mimeType string, payload []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

// DecodeDataURI splits a base64 data URI into its media type and payload.
// Media type parameters (";rate=24000") are preserved in the returned type.
func DecodeDataURI(uri string) (string, []byte, error) {
	if !IsDataURI(uri) {
		return "", nil, errors.New("not a data uri")
	}
	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return "", nil, errors.New("data uri: missing payload separator")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data uri: %q is not base64 encoded", header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data uri: decode payload: %w", err)
	}
	return mimeType, data, nil
}
