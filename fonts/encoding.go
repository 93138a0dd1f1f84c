package fonts

import (
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
)

const (
	woff2MIME     = "font/woff2"
	dataURLPrefix = "data:" + woff2MIME + ";base64,"
)

// EncodePayload returns the base64 form persisted in storage.
func EncodePayload(payload []byte) string {
	return base64.StdEncoding.EncodeToString(payload)
}

// DataURL wraps a base64 WOFF2 payload into a data: URI.
func DataURL(encoded string) string {
	return dataURLPrefix + encoded
}

// IsDataURL reports whether src embeds the payload.
func IsDataURL(src string) bool {
	return len(src) >= len(dataURLPrefix) && src[:len(dataURLPrefix)] == dataURLPrefix
}

// DetectMIME sniffs the media type of a font payload.
func DetectMIME(payload []byte) string {
	return mimetype.Detect(payload).String()
}

// IsWOFF2 reports whether payload looks like a WOFF2 font.
func IsWOFF2(payload []byte) bool {
	return mimetype.Detect(payload).Is(woff2MIME)
}
