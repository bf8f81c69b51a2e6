// Package repair recovers documents damaged by earlier append-based tagging.
//
// Repair only ever removes bytes: leading garbage before a known file
// signature and trailing "<!-- ... -->" markers.
package repair

import (
	"bytes"
	"mime"
	"strings"
)

var (
	sigPDF  = []byte("%PDF")
	sigJPEG = []byte{0xFF, 0xD8}
	sigPNG  = []byte("\x89PNG\r\n\x1a\n")

	markerOpen  = []byte("<!--")
	markerClose = []byte("-->")
)

// Signature returns the magic bytes expected at the start of a document of
// the given media type, or nil when the type is not repairable.
func Signature(contentType string) []byte {
	switch Normalize(contentType) {
	case "application/pdf":
		return sigPDF
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return sigJPEG
	case "image/png":
		return sigPNG
	}
	return nil
}

// Normalize lowercases a media type and drops parameters.
func Normalize(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// Valid reports whether b passes the structural sanity check for its type.
// Unknown types are always valid.
func Valid(b []byte, contentType string) bool {
	sig := Signature(contentType)
	if sig == nil {
		return true
	}
	return bytes.HasPrefix(b, sig) && trailingMarker(b) < 0
}

// Repair strips trailing markers and any garbage before the file signature.
// It is idempotent, never panics and returns b unchanged for unknown types.
func Repair(b []byte, contentType string) (out []byte) {
	sig := Signature(contentType)
	if sig == nil || len(b) == 0 {
		return b
	}
	defer func() {
		if r := recover(); r != nil {
			out = b
		}
	}()

	out = b
	for {
		i := trailingMarker(out)
		if i < 0 {
			break
		}
		out = out[:i]
	}

	if !bytes.HasPrefix(out, sig) {
		if i := bytes.Index(out, sig); i > 0 {
			out = out[i:]
		}
	}
	return out
}

// trailingMarker returns the offset of a comment marker that runs to the end
// of b (ignoring trailing whitespace), or -1. A marker at offset 0 is content.
func trailingMarker(b []byte) int {
	tail := bytes.TrimRight(b, " \t\r\n")
	if !bytes.HasSuffix(tail, markerClose) {
		return -1
	}
	i := bytes.LastIndex(tail, markerOpen)
	if i <= 0 {
		return -1
	}
	return i
}
