// Copyright 2025 Certen Protocol
//
// CometBFT-DB backed Content Store. Adapted directly from
// pkg/kvdb/adapter.go's KVAdapter, generalized from ledger.KV's
// Get/Set-only surface to the full ContentStore interface (adding
// Has/Delete) and switched from an externally-supplied key to the
// content-derived CID key.

package store

import (
	"context"

	"github.com/certen/vms/pkg/codec"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/ipfs/go-cid"
)

// CometBackend stores objects in a CometBFT dbm.DB (e.g. goleveldb,
// memdb, badgerdb - any backend cometbft-db supports), keyed by CID bytes.
type CometBackend struct {
	db dbm.DB
}

// NewCometBackend wraps an already-open dbm.DB.
func NewCometBackend(db dbm.DB) *CometBackend {
	return &CometBackend{db: db}
}

func (b *CometBackend) Put(_ context.Context, data []byte) (cid.Cid, error) {
	c, err := codec.DeriveCID(data)
	if err != nil {
		return cid.Undef, err
	}
	// SetSync for durable writes at commit time, matching the teacher's
	// choice in KVAdapter.Set.
	if err := b.db.SetSync(c.Bytes(), data); err != nil {
		return cid.Undef, err
	}
	return c, nil
}

func (b *CometBackend) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	v, err := b.db.Get(c.Bytes())
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (b *CometBackend) Has(_ context.Context, c cid.Cid) (bool, error) {
	return b.db.Has(c.Bytes())
}

func (b *CometBackend) Delete(_ context.Context, c cid.Cid) error {
	return b.db.DeleteSync(c.Bytes())
}

// Close releases the underlying dbm.DB.
func (b *CometBackend) Close() error {
	return b.db.Close()
}
