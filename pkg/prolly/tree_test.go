// Copyright 2025 Certen Protocol
//
// Prolly Tree Tests

package prolly

import (
	"context"
	"testing"

	"github.com/certen/vms/pkg/store"
	"github.com/ipfs/go-cid"
)

func testTree(t *testing.T) *Tree {
	t.Helper()
	return NewTree(store.NewTyped(store.NewMemoryStore()))
}

func fakeValue(t *testing.T, tree *Tree, ctx context.Context, s string) cid.Cid {
	t.Helper()
	c, err := tree.objs.PutBytes(ctx, []byte(s))
	if err != nil {
		t.Fatalf("put value %q: %v", s, err)
	}
	return c
}

func TestTree_EmptyRoot(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	r1, err := tree.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("empty root: %v", err)
	}
	r2, err := tree.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("empty root 2: %v", err)
	}
	if !r1.Equals(r2) {
		t.Errorf("empty root not stable: %s != %s", r1, r2)
	}

	if _, err := tree.Lookup(ctx, r1, []byte("x")); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on empty tree, got %v", err)
	}
}

func TestTree_BuildLookupRoundTrip(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	keys := []string{"apple", "banana", "cherry", "date", "elderberry", "fig", "grape"}
	var leaves []KV
	for _, k := range keys {
		leaves = append(leaves, KV{Key: []byte(k), Value: fakeValue(t, tree, ctx, "v-"+k)})
	}

	root, err := tree.Build(ctx, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, k := range keys {
		got, err := tree.Lookup(ctx, root, []byte(k))
		if err != nil {
			t.Fatalf("lookup %q: %v", k, err)
		}
		want := fakeValue(t, tree, ctx, "v-"+k)
		if !got.Equals(want) {
			t.Errorf("lookup %q: got %s, want %s", k, got, want)
		}
	}

	if _, err := tree.Lookup(ctx, root, []byte("missing")); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}

// TestTree_HistoryIndependence is the spec's end-to-end scenario:
// inserting the same key set in two different orders must produce the
// same root CID.
func TestTree_HistoryIndependence(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	forward := []string{"a", "b", "c", "d", "e"}
	reverse := []string{"e", "d", "c", "b", "a"}

	root1, err := tree.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("empty root: %v", err)
	}
	for _, k := range forward {
		v := fakeValue(t, tree, ctx, "val-"+k)
		root1, err = tree.Insert(ctx, root1, []byte(k), v)
		if err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	root2, err := tree.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("empty root: %v", err)
	}
	for _, k := range reverse {
		v := fakeValue(t, tree, ctx, "val-"+k)
		root2, err = tree.Insert(ctx, root2, []byte(k), v)
		if err != nil {
			t.Fatalf("insert %q: %v", k, err)
		}
	}

	if !root1.Equals(root2) {
		t.Errorf("history independence violated: forward root %s != reverse root %s", root1, root2)
	}
}

func TestTree_InsertReplacesExistingKey(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	root, err := tree.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("empty root: %v", err)
	}
	v1 := fakeValue(t, tree, ctx, "one")
	root, err = tree.Insert(ctx, root, []byte("k"), v1)
	if err != nil {
		t.Fatalf("insert v1: %v", err)
	}
	v2 := fakeValue(t, tree, ctx, "two")
	root, err = tree.Insert(ctx, root, []byte("k"), v2)
	if err != nil {
		t.Fatalf("insert v2: %v", err)
	}

	got, err := tree.Lookup(ctx, root, []byte("k"))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !got.Equals(v2) {
		t.Errorf("expected replaced value %s, got %s", v2, got)
	}
}

func TestTree_DeleteRemovesKey(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	root, err := tree.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("empty root: %v", err)
	}
	root, err = tree.Insert(ctx, root, []byte("k1"), fakeValue(t, tree, ctx, "1"))
	if err != nil {
		t.Fatalf("insert k1: %v", err)
	}
	root, err = tree.Insert(ctx, root, []byte("k2"), fakeValue(t, tree, ctx, "2"))
	if err != nil {
		t.Fatalf("insert k2: %v", err)
	}

	root, err = tree.Delete(ctx, root, []byte("k1"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := tree.Lookup(ctx, root, []byte("k1")); err != ErrNotFound {
		t.Errorf("expected k1 gone, got err=%v", err)
	}
	if _, err := tree.Lookup(ctx, root, []byte("k2")); err != nil {
		t.Errorf("expected k2 still present: %v", err)
	}

	// Deleting through Build from scratch must match the post-delete
	// root exactly: history independence again, this time for deletion.
	rebuilt, err := tree.Build(ctx, []KV{{Key: []byte("k2"), Value: fakeValue(t, tree, ctx, "2")}})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !root.Equals(rebuilt) {
		t.Errorf("post-delete root %s != rebuilt-from-scratch root %s", root, rebuilt)
	}
}

func TestTree_RangeQuery(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	keys := []string{"a1", "a2", "b1", "b2", "c1"}
	var leaves []KV
	for _, k := range keys {
		leaves = append(leaves, KV{Key: []byte(k), Value: fakeValue(t, tree, ctx, k)})
	}
	root, err := tree.Build(ctx, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := tree.Range(ctx, root, []byte("a2"), []byte("b2"))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, want := range []string{"a2", "b1", "b2"} {
		if string(got[i].Key) != want {
			t.Errorf("result %d: got %q, want %q", i, got[i].Key, want)
		}
	}
}

func TestTree_Diff(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	rootA, err := tree.Build(ctx, []KV{
		{Key: []byte("x"), Value: fakeValue(t, tree, ctx, "1")},
		{Key: []byte("y"), Value: fakeValue(t, tree, ctx, "2")},
	})
	if err != nil {
		t.Fatalf("build a: %v", err)
	}
	rootB, err := tree.Build(ctx, []KV{
		{Key: []byte("y"), Value: fakeValue(t, tree, ctx, "2-changed")},
		{Key: []byte("z"), Value: fakeValue(t, tree, ctx, "3")},
	})
	if err != nil {
		t.Fatalf("build b: %v", err)
	}

	diffs, err := tree.Diff(ctx, rootA, rootB)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(diffs) != 3 {
		t.Fatalf("expected 3 diff entries (removed x, changed y, added z), got %d", len(diffs))
	}

	byKey := map[string]DiffEntry{}
	for _, d := range diffs {
		byKey[string(d.Key)] = d
	}
	if d, ok := byKey["x"]; !ok || d.Old == nil || d.New != nil {
		t.Errorf("expected x to be a pure removal, got %+v", d)
	}
	if d, ok := byKey["y"]; !ok || d.Old == nil || d.New == nil {
		t.Errorf("expected y to be a value change, got %+v", d)
	}
	if d, ok := byKey["z"]; !ok || d.Old != nil || d.New == nil {
		t.Errorf("expected z to be a pure addition, got %+v", d)
	}
}

func TestTree_MerkleProofVerifies(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	keys := make([]string, 0, 50)
	var leaves []KV
	for i := 0; i < 50; i++ {
		k := string(rune('a'+i%26)) + string(rune('A'+i/26))
		keys = append(keys, k)
		leaves = append(leaves, KV{Key: []byte(k), Value: fakeValue(t, tree, ctx, k)})
	}
	root, err := tree.Build(ctx, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, k := range []string{keys[0], keys[len(keys)/2], keys[len(keys)-1]} {
		proof, err := tree.MerkleProof(ctx, root, []byte(k))
		if err != nil {
			t.Fatalf("proof for %q: %v", k, err)
		}
		ok, err := VerifyProof(proof, root)
		if err != nil {
			t.Fatalf("verify %q: %v", k, err)
		}
		if !ok {
			t.Errorf("proof for %q did not verify", k)
		}
	}
}

func TestTree_MerkleProofRejectsTamperedValue(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	root, err := tree.Build(ctx, []KV{
		{Key: []byte("k1"), Value: fakeValue(t, tree, ctx, "v1")},
		{Key: []byte("k2"), Value: fakeValue(t, tree, ctx, "v2")},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	proof, err := tree.MerkleProof(ctx, root, []byte("k1"))
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	proof.Value = fakeValue(t, tree, ctx, "tampered")

	ok, err := VerifyProof(proof, root)
	if ok {
		t.Error("tampered proof unexpectedly verified")
	}
	if err != ErrInvalidProof {
		t.Errorf("expected ErrInvalidProof, got %v", err)
	}
}

func TestTree_ForcedBoundaryCeiling(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	var leaves []KV
	for i := 0; i < 2000; i++ {
		k := []byte{byte(i >> 8), byte(i)}
		leaves = append(leaves, KV{Key: k, Value: fakeValue(t, tree, ctx, string(k))})
	}
	root, err := tree.Build(ctx, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var walk func(c cid.Cid) error
	walk = func(c cid.Cid) error {
		n, err := loadNode(ctx, tree.objs, c)
		if err != nil {
			return err
		}
		if len(n.keys) > maxNodeKeys {
			t.Errorf("node %s has %d keys, exceeds ceiling %d", c, len(n.keys), maxNodeKeys)
		}
		if !n.isLeaf() {
			for _, child := range n.values {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		t.Fatalf("walk: %v", err)
	}
}

// TestTree_ForcedBoundarySplitsRunOfNonBoundaryKeys constructs a run of
// maxNodeKeys+1 keys that are deliberately never content-defined
// boundaries (isBoundary false for every one), so that without a forced
// split they would all land in one over-long node. It asserts the run
// is split into more than one leaf and that no leaf exceeds maxNodeKeys
// - unlike TestTree_ForcedBoundaryCeiling, this does not rely on a
// 2000-key input happening to contain such a run.
func TestTree_ForcedBoundarySplitsRunOfNonBoundaryKeys(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)

	var leaves []KV
	for i := 0; len(leaves) < maxNodeKeys+1; i++ {
		k := []byte{byte(i >> 24), byte(i >> 16), byte(i >> 8), byte(i)}
		if isBoundary(k) {
			continue
		}
		leaves = append(leaves, KV{Key: k, Value: fakeValue(t, tree, ctx, string(k))})
	}

	root, err := tree.Build(ctx, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	n, err := loadNode(ctx, tree.objs, root)
	if err != nil {
		t.Fatalf("load root: %v", err)
	}
	if n.isLeaf() {
		t.Fatalf("root is a single leaf with %d keys; expected a forced split of the %d-key non-boundary run", len(n.keys), len(leaves))
	}

	var totalLeafKeys int
	var walk func(c cid.Cid) error
	walk = func(c cid.Cid) error {
		child, err := loadNode(ctx, tree.objs, c)
		if err != nil {
			return err
		}
		if child.isLeaf() {
			if len(child.keys) > maxNodeKeys {
				t.Errorf("leaf %s has %d keys, exceeds ceiling %d", c, len(child.keys), maxNodeKeys)
			}
			totalLeafKeys += len(child.keys)
			return nil
		}
		for _, c := range child.values {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if totalLeafKeys != len(leaves) {
		t.Errorf("leaves hold %d keys total, want %d", totalLeafKeys, len(leaves))
	}
}
