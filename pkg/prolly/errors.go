// Copyright 2025 Certen Protocol
//
// Prolly Index - Error Taxonomy. Per spec §4.C.

package prolly

import "errors"

var (
	// ErrNotFound is returned by Lookup when the key is absent.
	ErrNotFound = errors.New("prolly: not found")

	// ErrInvalidProof is returned when a Merkle proof fails to
	// reconstruct the expected root.
	ErrInvalidProof = errors.New("prolly: invalid proof")

	// ErrInconsistentRoot is returned when a child hash does not
	// reproduce its parent during verification.
	ErrInconsistentRoot = errors.New("prolly: inconsistent root")

	// ErrOutOfOrder is returned when a node's keys are not sorted
	// ascending.
	ErrOutOfOrder = errors.New("prolly: malformed node, keys out of order")
)
