// Copyright 2025 Certen Protocol
//
// Prolly Node wire object - the content-addressed representation of a
// Prolly tree node, persisted through the content store. Distinct from
// pkg/prolly's in-memory node type, which wraps this with tree-building
// machinery. Per spec §3, §4.A (prolly_node_hash layout), §4.C.

package objects

import (
	"github.com/certen/vms/pkg/codec"
)

// ProllyNode is the stored form of one Prolly tree node.
type ProllyNode struct {
	Type Kind `cbor:"type"`

	Level  uint8        `cbor:"level"`
	Keys   [][]byte     `cbor:"keys"`
	Values []codec.Link `cbor:"values"`

	// NodeHash is computed via codec.ProllyNodeHash over (Level, Keys,
	// Values) using the fixed byte layout spec §4.A mandates - not the
	// generic canonical encoding - so independent implementations agree
	// bit for bit.
	NodeHash [32]byte `cbor:"node_hash"`
}

// NewProllyNode builds a ProllyNode object, stamping its discriminator.
func NewProllyNode(level uint8, keys [][]byte, values []codec.Link, nodeHash [32]byte) *ProllyNode {
	return &ProllyNode{
		Type:     KindProllyNode,
		Level:    level,
		Keys:     keys,
		Values:   values,
		NodeHash: nodeHash,
	}
}
