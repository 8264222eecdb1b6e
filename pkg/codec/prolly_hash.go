// Copyright 2025 Certen Protocol
//
// prolly_node_hash - the exact byte layout required by spec §4.A so that
// independent implementations agree on Merkle roots:
//
//	sha-256 over
//	  [level (u8)] ||
//	  [keys_count (u16 BE)] ||
//	  for each key: (u16 BE length || bytes) ||
//	  for each value: (raw UTF-8 of the CID string)
//
// This is deliberately NOT routed through the canonical CBOR codec - the
// layout is fixed at the byte level so it matches other-language
// implementations bit for bit.

package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ipfs/go-cid"
)

// ProllyNodeHash computes the deterministic node hash for a Prolly tree
// node given its level, ordered keys, and ordered values (CIDs of leaf
// objects, or child node CIDs above leaf level).
func ProllyNodeHash(level uint8, keys [][]byte, values []cid.Cid) ([32]byte, error) {
	if len(keys) != len(values) {
		return [32]byte{}, fmt.Errorf("prolly_node_hash: %d keys but %d values", len(keys), len(values))
	}
	if len(keys) > 0xFFFF {
		return [32]byte{}, fmt.Errorf("prolly_node_hash: %d keys exceeds u16 key count", len(keys))
	}

	h := sha256.New()
	h.Write([]byte{level})

	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(keys)))
	h.Write(countBuf[:])

	for _, k := range keys {
		if len(k) > 0xFFFF {
			return [32]byte{}, fmt.Errorf("prolly_node_hash: key of length %d exceeds u16", len(k))
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(k)))
		h.Write(lenBuf[:])
		h.Write(k)
	}

	for _, v := range values {
		if !v.Defined() {
			return [32]byte{}, fmt.Errorf("prolly_node_hash: undefined value CID")
		}
		h.Write([]byte(v.String()))
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
