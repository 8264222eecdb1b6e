// Copyright 2025 Certen Protocol
//
// Sync Protocol - error taxonomy. Per spec §4.G "Failure modes".

package sync

import "errors"

var (
	// ErrNoCommonAncestor is returned when ancestor discovery exhausts
	// every probe, including block 0, without a match: the receiver's
	// chain is not a prefix of the sender's.
	ErrNoCommonAncestor = errors.New("sync: no common ancestor")

	// ErrObjectUnavailable is returned when the transport could not
	// deliver an object a transferred block references.
	ErrObjectUnavailable = errors.New("sync: referenced object unavailable")

	// ErrBlockRejected is returned when the peer on the other end of the
	// wire Nacks a transferred block.
	ErrBlockRejected = errors.New("sync: peer rejected block")
)
