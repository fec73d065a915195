package dex

import "log/slog"

// Option configures a Loader.
type Option func(*Loader)

// WithVerify controls structural verification of opened segments.
// Disabled by default; callers that trust the source, or that carry a
// companion artifact, typically leave it off.
func WithVerify(enabled bool) Option {
	return func(l *Loader) {
		l.verify = enabled
	}
}

// WithVerifyChecksum controls checksum verification of opened segments:
// the content's recomputed checksum must equal the expected value.
// Disabled by default.
func WithVerifyChecksum(enabled bool) Option {
	return func(l *Loader) {
		l.verifyChecksum = enabled
	}
}

// WithVerifier replaces the built-in structural verifier.
func WithVerifier(v Verifier) Option {
	return func(l *Loader) {
		l.verifier = v
	}
}

// WithCompanion supplies a pre-compiled companion artifact. Segments
// whose checksum the companion confirms skip structural verification.
func WithCompanion(c Companion) Option {
	return func(l *Loader) {
		l.companion = c
	}
}

// WithLogger sets the logger for debug and warning events. By default
// nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// OpenOption configures a single open call on in-memory input.
type OpenOption func(*openConfig)

type openConfig struct {
	sum    uint32
	sumSet bool
}

func newOpenConfig(opts []OpenOption) openConfig {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// OpenWithChecksum records sum as the expected checksum of a raw
// container, replacing the value embedded in its header. Checksum
// verification, when enabled, compares against it. Archive inputs carry
// per-entry checksums in their directory and ignore this option.
func OpenWithChecksum(sum uint32) OpenOption {
	return func(c *openConfig) {
		c.sum = sum
		c.sumSet = true
	}
}
