package dex

import "errors"

// Sentinel errors for loader operations.
//
// Every failure returned by this package wraps one of these (or an
// underlying I/O error) with location context, so callers classify with
// errors.Is and display the message as-is.
var (
	// ErrUnsupportedFormat is returned when input starts with neither a dex
	// magic in the supported version range nor a zip magic.
	ErrUnsupportedFormat = errors.New("dex: unsupported format")

	// ErrTruncated is returned when input is too short to hold a header.
	ErrTruncated = errors.New("dex: truncated")

	// ErrMissingClassesDex is returned when an archive has no classes.dex.
	ErrMissingClassesDex = errors.New("dex: archive has no classes.dex")

	// ErrCorruptArchive is returned when an archive's directory or entry
	// data is unreadable, or when a classes entry name is duplicated.
	ErrCorruptArchive = errors.New("dex: corrupt archive")

	// ErrChecksumMismatch is returned when a segment's content does not
	// match its expected checksum.
	ErrChecksumMismatch = errors.New("dex: checksum mismatch")

	// ErrVerificationFailed is returned when the structural verifier
	// rejects a segment.
	ErrVerificationFailed = errors.New("dex: verification failed")
)
