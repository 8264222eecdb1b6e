// Copyright 2025 Certen Protocol
//
// Prolly tree node - in-memory form used while building/walking the tree,
// converted to/from the content-addressed objects.ProllyNode wire type.
// Per spec §3, §4.A, §4.C.

package prolly

import (
	"bytes"
	"context"
	"fmt"

	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/store"
	"github.com/ipfs/go-cid"
)

// node is the in-memory representation of one tree node: leaves hold
// (key, value CID) pairs; internal nodes hold (separator key, child CID)
// pairs, where each separator is the largest key in the child's subtree.
type node struct {
	level  uint8
	keys   [][]byte
	values []cid.Cid
}

func (n *node) isLeaf() bool { return n.level == 0 }

// hash computes the fixed-layout node hash spec §4.A defines.
func (n *node) hash() ([32]byte, error) {
	return codec.ProllyNodeHash(n.level, n.keys, n.values)
}

// validate checks the keys are strictly ascending (spec §4.C "malformed
// node with unsorted keys" -> OutOfOrder).
func (n *node) validate() error {
	for i := 1; i < len(n.keys); i++ {
		if bytes.Compare(n.keys[i-1], n.keys[i]) >= 0 {
			return fmt.Errorf("%w: key %d (%x) >= key %d (%x)", ErrOutOfOrder, i-1, n.keys[i-1], i, n.keys[i])
		}
	}
	if len(n.keys) > maxNodeKeys {
		return fmt.Errorf("prolly: node has %d keys, exceeds forced-boundary ceiling %d", len(n.keys), maxNodeKeys)
	}
	return nil
}

// wireObject builds the objects.ProllyNode n would be stored as.
func (n *node) wireObject(h [32]byte) *objects.ProllyNode {
	links := make([]codec.Link, len(n.values))
	for i, v := range n.values {
		links[i] = codec.NewLink(v)
	}
	return objects.NewProllyNode(n.level, n.keys, links, h)
}

// cid returns the content CID n would have once stored, without a store
// round trip: it is fully determined by (level, keys, values, nodeHash).
func (n *node) cid() (cid.Cid, error) {
	h, err := n.hash()
	if err != nil {
		return cid.Undef, err
	}
	return codec.CIDOf(n.wireObject(h))
}

// store canonically encodes n as an objects.ProllyNode and persists it,
// returning its content CID (the value used to reference it from a
// parent node or as a tree root).
func (n *node) store(ctx context.Context, typed *store.Typed) (cid.Cid, error) {
	if err := n.validate(); err != nil {
		return cid.Undef, err
	}
	h, err := n.hash()
	if err != nil {
		return cid.Undef, err
	}
	return typed.PutObject(ctx, n.wireObject(h))
}

// loadNode fetches and decodes the node stored at c.
func loadNode(ctx context.Context, typed *store.Typed, c cid.Cid) (*node, error) {
	decoded, err := typed.GetObject(ctx, c)
	if err != nil {
		return nil, err
	}
	wire, ok := decoded.(*objects.ProllyNode)
	if !ok {
		return nil, fmt.Errorf("prolly: object %s is a %T, not a ProllyNode", c, decoded)
	}
	values := make([]cid.Cid, len(wire.Values))
	for i, l := range wire.Values {
		values[i] = l.CID
	}
	n := &node{level: wire.Level, keys: wire.Keys, values: values}
	wantHash, err := n.hash()
	if err != nil {
		return nil, err
	}
	if wantHash != wire.NodeHash {
		return nil, fmt.Errorf("%w: stored node_hash does not match recomputed hash for %s", ErrInconsistentRoot, c)
	}
	return n, nil
}
