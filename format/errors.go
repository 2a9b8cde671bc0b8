package format

import "errors"

// Shared error taxonomy for all codecs. Low-level field reads wrap
// ErrTruncated or ErrMalformed with positional context; handlers bubble the
// failure upward immediately rather than keeping partial records.
var (
	// ErrTruncated means the stream ended before an expected field.
	ErrTruncated = errors.New("stream truncated")
	// ErrMalformed means a bad magic, version or structure was found.
	ErrMalformed = errors.New("malformed input")
	// ErrValidationFailed means the loaded document failed structural checks
	// even after the repair pass.
	ErrValidationFailed = errors.New("scene graph validation failed")
	// ErrSaveUnsupported marks load-only codecs.
	ErrSaveUnsupported = errors.New("format does not support saving")
	// ErrScreenshotUnsupported marks codecs without embedded thumbnails.
	ErrScreenshotUnsupported = errors.New("format does not carry a screenshot")
	// ErrUnknownFormat means no codec matched the path or magic bytes.
	ErrUnknownFormat = errors.New("unknown format")
)
