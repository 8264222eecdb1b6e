// Copyright 2025 Certen Protocol
//
// Typed Content Store wrapper - put_object/get_object computing
// cid = cid(encode(obj)) on put and decode(get(cid)) on get. Per spec §4.B.

package store

import (
	"context"

	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/objects"
	"github.com/ipfs/go-cid"
)

// Typed wraps a ContentStore with canonical-codec aware Put/Get.
type Typed struct {
	Backend ContentStore
}

// NewTyped wraps backend.
func NewTyped(backend ContentStore) *Typed {
	return &Typed{Backend: backend}
}

// PutObject canonically encodes obj and stores it, returning its CID.
func (t *Typed) PutObject(ctx context.Context, obj interface{}) (cid.Cid, error) {
	data, err := codec.Encode(obj)
	if err != nil {
		return cid.Undef, err
	}
	return t.Backend.Put(ctx, data)
}

// GetObject fetches bytes for c and decodes them into the concrete type
// matching their `type` discriminator (one of the pkg/objects graph types).
func (t *Typed) GetObject(ctx context.Context, c cid.Cid) (interface{}, error) {
	data, err := t.Backend.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	return objects.Decode(data)
}

// PutBytes stores raw opaque bytes (e.g. an Event's payload) without
// going through the canonical object codec.
func (t *Typed) PutBytes(ctx context.Context, data []byte) (cid.Cid, error) {
	return t.Backend.Put(ctx, data)
}

// GetBytes fetches raw bytes for c without decoding.
func (t *Typed) GetBytes(ctx context.Context, c cid.Cid) ([]byte, error) {
	return t.Backend.Get(ctx, c)
}
