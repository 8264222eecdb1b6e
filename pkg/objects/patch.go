// Copyright 2025 Certen Protocol
//
// Patch - change manifest for a block. Per spec §3, §4.E step 3.

package objects

import "github.com/certen/vms/pkg/codec"

// Patch describes everything a single commit added and changed.
type Patch struct {
	Type Kind `cbor:"type"`

	ParentBlockHash [32]byte `cbor:"parent_block_hash"`

	// AddedCIDs is ordered in emission order (deterministic: events then
	// claims, in the order the Vault created them, per spec §4.E step 1).
	AddedCIDs []codec.Link `cbor:"added_cids,omitempty"`

	// RemovedRefs is a logical removal list (e.g. IDs of superseded
	// claims) - spec §9 clarifies physical deletion is never exercised
	// by the core, so this records intent, not storage deletions.
	RemovedRefs []string `cbor:"removed_refs,omitempty"`

	// UpdatedRoots maps named Prolly tree (e.g. "events_by_time") to its
	// new root CID after this patch's additions were applied.
	UpdatedRoots map[string]codec.Link `cbor:"updated_roots,omitempty"`

	// LinkIndex maps an added object's CID (string form) to the links it
	// carries, so provenance queries don't need to re-decode every
	// object to discover its references.
	LinkIndex map[string][]codec.Link `cbor:"link_index,omitempty"`

	Metadata map[string]interface{} `cbor:"metadata,omitempty"`
}

// NewPatch builds an empty Patch extending parentBlockHash.
func NewPatch(parentBlockHash [32]byte) *Patch {
	return &Patch{
		Type:            KindPatch,
		ParentBlockHash: parentBlockHash,
		UpdatedRoots:    make(map[string]codec.Link),
		LinkIndex:       make(map[string][]codec.Link),
	}
}
