// Copyright 2025 Certen Protocol
//
// Content Store - put/get/has/delete by CID, backend-agnostic.
// Per spec §4.B, §6 (External Interfaces: Content store interface).

package store

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// ErrNotFound is returned by Get when the CID is absent from the store.
var ErrNotFound = errors.New("store: not found")

// ContentStore is the pluggable backend interface. put is idempotent on
// identical bytes; get returns the exact bytes previously stored.
// Implementations must make concurrent put of identical content converge
// on one entry (spec §4.B, §5).
type ContentStore interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, c cid.Cid) ([]byte, error)
	Has(ctx context.Context, c cid.Cid) (bool, error)
	Delete(ctx context.Context, c cid.Cid) error
}

// Closer is implemented by backends that hold resources (DB handles,
// connections) that must be released.
type Closer interface {
	Close() error
}
