// Copyright 2025 Certen Protocol
//
// CID derivation - cid(obj) = multihash(sha-256, encode(obj)) wrapped in a
// versioned CID envelope (version=1, codec=dag-cbor-equivalent, hash=sha-256).
// Per spec §3, §4.A.

package codec

import (
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// DagCBORCodec is the multicodec value for dag-cbor (0x71), used as the
// CID's codec field. VMS's canonical encoding is DAG-CBOR-equivalent, so
// we reuse the real multicodec table entry rather than minting a private one.
const DagCBORCodec = 0x71

// DeriveCID computes the CIDv1 of already-canonical-encoded bytes.
func DeriveCID(canonicalBytes []byte) (cid.Cid, error) {
	sum, err := mh.Sum(canonicalBytes, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("derive cid: %w", err)
	}
	return cid.NewCidV1(DagCBORCodec, sum), nil
}

// CIDOf canonically encodes v and derives its CID in one step. This is the
// `cid(obj)` function from spec §3.
func CIDOf(v interface{}) (cid.Cid, error) {
	b, err := Encode(v)
	if err != nil {
		return cid.Undef, err
	}
	return DeriveCID(b)
}

// EncodeAndCID canonically encodes v and returns both the bytes and the
// resulting CID, saving a double-encode for callers that need to store the
// bytes under that CID (the common put_object path).
func EncodeAndCID(v interface{}) ([]byte, cid.Cid, error) {
	b, err := Encode(v)
	if err != nil {
		return nil, cid.Undef, err
	}
	c, err := DeriveCID(b)
	if err != nil {
		return nil, cid.Undef, err
	}
	return b, c, nil
}

// ParseCID parses a CID string, e.g. read from a Link or user input.
func ParseCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("parse cid %q: %w", s, err)
	}
	return c, nil
}

// ZeroBlockHash is the 32 zero bytes used as prev_block_hash for the
// genesis block (spec §8 boundary behaviors).
var ZeroBlockHash = [32]byte{}
