// Copyright 2025 Certen Protocol
//
// Canonical Codec - Error Taxonomy
// Per spec §4.A: UnsupportedType, CanonicalizationViolation, TruncatedInput

package codec

import "errors"

// Sentinel errors for the canonical codec. Wrapped with fmt.Errorf("...: %w", ...)
// at call sites so callers can errors.Is against these.
var (
	// ErrUnsupportedType is returned when encode/decode is asked to handle a
	// Go value (or wire tag) outside the closed schema the codec understands.
	ErrUnsupportedType = errors.New("codec: unsupported type")

	// ErrCanonicalization is returned when decoded bytes violate the
	// canonical-encoding contract: duplicate map keys, NaN float, or a
	// link tag that doesn't carry a well-formed CID.
	ErrCanonicalization = errors.New("codec: canonicalization violation")

	// ErrTruncatedInput is returned when bytes end before a complete value
	// could be decoded.
	ErrTruncatedInput = errors.New("codec: truncated input")
)
