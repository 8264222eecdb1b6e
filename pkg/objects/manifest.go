// Copyright 2025 Certen Protocol
//
// Manifest - per-block summary of all named Prolly roots and auxiliary
// roots (policy, revocation, batch-inclusion root). Per spec §3, §4.E step 4.

package objects

import "github.com/certen/vms/pkg/codec"

// Well-known auxiliary root names. Roots not populated by a minimal
// implementation are recorded as empty Links (spec §4.E: "auxiliary
// roots may be zero placeholders in minimal implementations but must be
// deterministic").
const (
	AuxRootPolicy     = "policy"
	AuxRootRevocation = "revocation"
	AuxRootCAS        = "cas"
	// AuxRootBatchProof is VMS's supplemented auxiliary root: the binary
	// Merkle accumulator over this block's added_cids (see pkg/chain's
	// batch proof), giving O(log n) inclusion proofs independent of the
	// named Prolly indices.
	AuxRootBatchProof = "batch_proof"
)

// Manifest is a deterministic snapshot of every named index and auxiliary
// root as of a given block.
type Manifest struct {
	Type Kind `cbor:"type"`

	BlockNo  uint64                 `cbor:"block_no"`
	Roots    map[string]codec.Link  `cbor:"roots"`
	AuxRoots map[string]codec.Link  `cbor:"aux_roots"`
}

// NewManifest builds a Manifest for blockNo with empty root maps ready to
// be filled in.
func NewManifest(blockNo uint64) *Manifest {
	return &Manifest{
		Type:     KindManifest,
		BlockNo:  blockNo,
		Roots:    make(map[string]codec.Link),
		AuxRoots: make(map[string]codec.Link),
	}
}
