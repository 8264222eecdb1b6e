// Copyright 2025 Certen Protocol
//
// Block - attestation. Per spec §3, §4.F.

package objects

import (
	"crypto/sha256"

	"github.com/certen/vms/pkg/codec"
)

// BlockLinks carries the Patch and Manifest CIDs for a block.
type BlockLinks struct {
	Patch    codec.Link `cbor:"patch"`
	Manifest codec.Link `cbor:"manifest"`
}

// Signature is one signer's attestation over a block's digest.
type Signature struct {
	PublicKey []byte `cbor:"public_key"`
	Signature []byte `cbor:"signature"`
}

// BlockHeader is the part of a Block that gets canonically encoded and
// hashed to produce BlockHash. Signatures and the hash itself are
// deliberately excluded (spec §4.E step 6: "block_hash =
// sha-256(canonical_encode(block_without_hash_and_signatures))").
type BlockHeader struct {
	Type Kind `cbor:"type"`

	BlockNo         uint64     `cbor:"block_no"`
	PrevBlockHash   [32]byte   `cbor:"prev_block_hash"`
	TimestampMs     int64      `cbor:"timestamp_ms"`
	Links           BlockLinks `cbor:"links"`
}

// Block is a signed, hash-linked commit of a batch of objects.
type Block struct {
	BlockHeader `cbor:"header"`

	Signatures []Signature `cbor:"signatures,omitempty"`
	BlockHash  [32]byte    `cbor:"block_hash"`
}

// NewBlockHeader builds a BlockHeader for blockNo extending prevBlockHash.
func NewBlockHeader(blockNo uint64, prevBlockHash [32]byte, timestampMs int64, links BlockLinks) BlockHeader {
	return BlockHeader{
		Type:          KindBlock,
		BlockNo:       blockNo,
		PrevBlockHash: prevBlockHash,
		TimestampMs:   timestampMs,
		Links:         links,
	}
}

// ComputeBlockHash canonically encodes header and hashes it, implementing
// spec §4.E step 6.
func ComputeBlockHash(header BlockHeader) ([32]byte, error) {
	b, err := codec.Encode(header)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// IsGenesis reports whether this is block 0 with the all-zero prev hash
// (spec §8 boundary behavior: "Block 0 (genesis) has prev_block_hash =
// 32 zero bytes").
func (b *Block) IsGenesis() bool {
	return b.BlockNo == 0 && b.PrevBlockHash == codec.ZeroBlockHash
}
