// Copyright 2025 Certen Protocol
//
// Prolly tree operations - Build, Lookup, Insert, Delete, Range, Diff.
// Per spec §4.C.
//
// Insert and Delete are implemented as materialize-then-rebuild: the full
// sorted key set of the tree is recovered via a leaf walk, the single key
// change is applied to that set, and the result is handed to Build. Build
// partitions strictly by the H(key) mod Q boundary rule (above the leaves,
// H covers the level byte followed by the key), so the resulting
// shape - and therefore the root CID - depends only on the final key set,
// never on the sequence of operations that produced it. That is what
// gives the tree its history-independence (spec §4.C invariant).

package prolly

import (
	"bytes"
	"context"
	"sort"

	"github.com/certen/vms/pkg/store"
	"github.com/ipfs/go-cid"
)

// KV is one leaf (key, value CID) pair.
type KV struct {
	Key   []byte
	Value cid.Cid
}

// Tree operates Prolly trees rooted at content-addressed node CIDs,
// against a backing Typed content store.
type Tree struct {
	objs *store.Typed

	emptyRoot cid.Cid
}

// NewTree returns a Tree backed by objs.
func NewTree(objs *store.Typed) *Tree {
	return &Tree{objs: objs}
}

// EmptyRoot returns the canonical CID of the empty tree (a single leaf
// node, level 0, with no keys and no values), storing it on first use.
func (t *Tree) EmptyRoot(ctx context.Context) (cid.Cid, error) {
	if t.emptyRoot.Defined() {
		return t.emptyRoot, nil
	}
	n := &node{level: 0}
	c, err := n.store(ctx, t.objs)
	if err != nil {
		return cid.Undef, err
	}
	t.emptyRoot = c
	return c, nil
}

// Build constructs a tree from a set of (key, value) pairs and returns
// its root CID. leaves need not be pre-sorted or deduplicated; Build
// sorts and, on duplicate keys, keeps the last value in input order
// (later writers win), matching Insert's replace-on-duplicate semantics.
func (t *Tree) Build(ctx context.Context, leaves []KV) (cid.Cid, error) {
	dedup := dedupeSorted(leaves)
	if len(dedup) == 0 {
		return t.EmptyRoot(ctx)
	}
	keys := make([][]byte, len(dedup))
	values := make([]cid.Cid, len(dedup))
	for i, kv := range dedup {
		keys[i] = kv.Key
		values[i] = kv.Value
	}
	return t.buildLevel(ctx, 0, keys, values)
}

// buildLevel partitions (keys, values) into boundary-delimited groups at
// level, stores one node per group, and recurses upward with the group
// separators (last key of each group) and child CIDs until a single
// node remains - the root. A group that reaches maxNodeKeys without
// hitting a content-defined boundary is force-closed there (spec §8's
// ceiling closes the node rather than letting it grow unbounded), so
// node.validate's maxNodeKeys check is an invariant buildLevel
// guarantees, never a case it has to reject after the fact.
func (t *Tree) buildLevel(ctx context.Context, level uint8, keys [][]byte, values []cid.Cid) (cid.Cid, error) {
	var groupKeys [][][]byte
	var groupValues [][]cid.Cid

	start := 0
	for i, k := range keys {
		last := i == len(keys)-1
		forced := i-start+1 >= maxNodeKeys
		boundaryKey := k
		if level > 0 {
			// A separator that closed its group below is a level-0
			// boundary, so testing it unchanged would close a one-entry
			// node at every level and never narrow to a root. Above the
			// leaves the level byte is hashed in ahead of the key.
			boundaryKey = append([]byte{level}, k...)
		}
		if last || isBoundary(boundaryKey) || forced {
			end := i + 1
			groupKeys = append(groupKeys, keys[start:end])
			groupValues = append(groupValues, values[start:end])
			start = end
		}
	}

	if len(groupKeys) == 1 {
		n := &node{level: level, keys: groupKeys[0], values: groupValues[0]}
		return n.store(ctx, t.objs)
	}

	separators := make([][]byte, len(groupKeys))
	children := make([]cid.Cid, len(groupKeys))
	for i := range groupKeys {
		n := &node{level: level, keys: groupKeys[i], values: groupValues[i]}
		c, err := n.store(ctx, t.objs)
		if err != nil {
			return cid.Undef, err
		}
		separators[i] = groupKeys[i][len(groupKeys[i])-1]
		children[i] = c
	}
	return t.buildLevel(ctx, level+1, separators, children)
}

// Lookup returns the value CID stored under key, or ErrNotFound.
func (t *Tree) Lookup(ctx context.Context, root cid.Cid, key []byte) (cid.Cid, error) {
	n, err := loadNode(ctx, t.objs, root)
	if err != nil {
		return cid.Undef, err
	}
	for {
		if n.isLeaf() {
			i := sort.Search(len(n.keys), func(i int) bool { return bytes.Compare(n.keys[i], key) >= 0 })
			if i < len(n.keys) && bytes.Equal(n.keys[i], key) {
				return n.values[i], nil
			}
			return cid.Undef, ErrNotFound
		}
		i := sort.Search(len(n.keys), func(i int) bool { return bytes.Compare(n.keys[i], key) >= 0 })
		if i == len(n.keys) {
			return cid.Undef, ErrNotFound
		}
		n, err = loadNode(ctx, t.objs, n.values[i])
		if err != nil {
			return cid.Undef, err
		}
	}
}

// Insert writes (key, value), replacing any existing value under key,
// and returns the new root.
func (t *Tree) Insert(ctx context.Context, root cid.Cid, key []byte, value cid.Cid) (cid.Cid, error) {
	leaves, err := t.leaves(ctx, root)
	if err != nil {
		return cid.Undef, err
	}
	leaves = append(leaves, KV{Key: key, Value: value})
	return t.Build(ctx, leaves)
}

// Delete removes key, a no-op (returning root unchanged) if absent.
func (t *Tree) Delete(ctx context.Context, root cid.Cid, key []byte) (cid.Cid, error) {
	leaves, err := t.leaves(ctx, root)
	if err != nil {
		return cid.Undef, err
	}
	out := leaves[:0]
	for _, kv := range leaves {
		if !bytes.Equal(kv.Key, key) {
			out = append(out, kv)
		}
	}
	return t.Build(ctx, out)
}

// Range returns all (key, value) pairs with low <= key <= high. A nil
// low/high bound is open on that side.
func (t *Tree) Range(ctx context.Context, root cid.Cid, low, high []byte) ([]KV, error) {
	var out []KV
	err := t.walk(ctx, root, func(kv KV) error {
		if low != nil && bytes.Compare(kv.Key, low) < 0 {
			return nil
		}
		if high != nil && bytes.Compare(kv.Key, high) > 0 {
			return nil
		}
		out = append(out, kv)
		return nil
	})
	return out, err
}

// Diff returns the symmetric difference of (key, value) pairs between
// two roots: entries present in b but not a, absent in b but present in
// a, or present with a different value in each.
func (t *Tree) Diff(ctx context.Context, a, b cid.Cid) ([]DiffEntry, error) {
	if a.Equals(b) {
		return nil, nil
	}
	la, err := t.leaves(ctx, a)
	if err != nil {
		return nil, err
	}
	lb, err := t.leaves(ctx, b)
	if err != nil {
		return nil, err
	}

	var entries []DiffEntry
	i, j := 0, 0
	for i < len(la) && j < len(lb) {
		switch bytes.Compare(la[i].Key, lb[j].Key) {
		case 0:
			if !la[i].Value.Equals(lb[j].Value) {
				entries = append(entries, DiffEntry{Key: la[i].Key, Old: &la[i].Value, New: &lb[j].Value})
			}
			i++
			j++
		case -1:
			entries = append(entries, DiffEntry{Key: la[i].Key, Old: &la[i].Value})
			i++
		default:
			entries = append(entries, DiffEntry{Key: lb[j].Key, New: &lb[j].Value})
			j++
		}
	}
	for ; i < len(la); i++ {
		entries = append(entries, DiffEntry{Key: la[i].Key, Old: &la[i].Value})
	}
	for ; j < len(lb); j++ {
		entries = append(entries, DiffEntry{Key: lb[j].Key, New: &lb[j].Value})
	}
	return entries, nil
}

// DiffEntry describes one changed key between two roots. Old is nil for
// an addition, New is nil for a removal, both set for a value change.
type DiffEntry struct {
	Key []byte
	Old *cid.Cid
	New *cid.Cid
}

// leaves materializes every (key, value) pair under root in ascending
// key order.
func (t *Tree) leaves(ctx context.Context, root cid.Cid) ([]KV, error) {
	var out []KV
	err := t.walk(ctx, root, func(kv KV) error {
		out = append(out, kv)
		return nil
	})
	return out, err
}

func (t *Tree) walk(ctx context.Context, root cid.Cid, fn func(KV) error) error {
	n, err := loadNode(ctx, t.objs, root)
	if err != nil {
		return err
	}
	if n.isLeaf() {
		for i, k := range n.keys {
			if err := fn(KV{Key: k, Value: n.values[i]}); err != nil {
				return err
			}
		}
		return nil
	}
	for _, child := range n.values {
		if err := t.walk(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// dedupeSorted sorts leaves by key and collapses duplicate keys, the
// last occurrence in the original (pre-sort) order winning - a stable
// sort preserves that tie-break.
func dedupeSorted(leaves []KV) []KV {
	indexed := make([]KV, len(leaves))
	copy(indexed, leaves)
	sort.SliceStable(indexed, func(i, j int) bool {
		return bytes.Compare(indexed[i].Key, indexed[j].Key) < 0
	})
	out := indexed[:0]
	for _, kv := range indexed {
		if len(out) > 0 && bytes.Equal(out[len(out)-1].Key, kv.Key) {
			out[len(out)-1] = kv
			continue
		}
		out = append(out, kv)
	}
	return out
}
