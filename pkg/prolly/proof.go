// Copyright 2025 Certen Protocol
//
// Merkle inclusion proofs over a Prolly tree. Per spec §4.C: "A proof
// consists of the sibling hashes along the path from leaf to root,
// sufficient for a verifier to recompute the root hash without holding
// the rest of the tree."

package prolly

import (
	"bytes"
	"context"
	"sort"

	"github.com/ipfs/go-cid"
)

// ProofStep is one level of a MerkleProof: the full ordered key/value
// list of the node the path passed through, and the index of the
// entry taken at that level.
type ProofStep struct {
	Level  uint8
	Keys   [][]byte
	Values []cid.Cid
	Index  int
}

// Proof is an inclusion proof for a single key, root-to-leaf path
// included so verification can recompute every node hash bottom-up.
type Proof struct {
	Key   []byte
	Value cid.Cid
	Steps []ProofStep // leaf first, root last
}

// MerkleProof builds an inclusion proof for key under root.
func (t *Tree) MerkleProof(ctx context.Context, root cid.Cid, key []byte) (*Proof, error) {
	var path []ProofStep
	n, err := loadNode(ctx, t.objs, root)
	if err != nil {
		return nil, err
	}

	for {
		i := sort.Search(len(n.keys), func(i int) bool { return bytes.Compare(n.keys[i], key) >= 0 })
		if n.isLeaf() {
			if i == len(n.keys) || !bytes.Equal(n.keys[i], key) {
				return nil, ErrNotFound
			}
			path = append(path, ProofStep{Level: n.level, Keys: n.keys, Values: n.values, Index: i})
			break
		}
		if i == len(n.keys) {
			return nil, ErrNotFound
		}
		path = append(path, ProofStep{Level: n.level, Keys: n.keys, Values: n.values, Index: i})
		n, err = loadNode(ctx, t.objs, n.values[i])
		if err != nil {
			return nil, err
		}
	}

	// Reverse so the proof reads leaf-first, root-last.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	leafStep := path[0]
	return &Proof{Key: key, Value: leafStep.Values[leafStep.Index], Steps: path}, nil
}

// VerifyProof recomputes the root hash implied by proof and reports
// whether it equals root, without requiring access to the rest of the
// tree.
func VerifyProof(proof *Proof, root cid.Cid) (bool, error) {
	if len(proof.Steps) == 0 {
		return false, ErrInvalidProof
	}

	var expectChild cid.Cid
	haveChild := false

	for i, step := range proof.Steps {
		if step.Index < 0 || step.Index >= len(step.Values) {
			return false, ErrInvalidProof
		}
		if i == 0 {
			if !bytes.Equal(step.Keys[step.Index], proof.Key) {
				return false, ErrInvalidProof
			}
			if !step.Values[step.Index].Equals(proof.Value) {
				return false, ErrInvalidProof
			}
		} else if haveChild && !step.Values[step.Index].Equals(expectChild) {
			return false, ErrInvalidProof
		}

		n := &node{level: step.Level, keys: step.Keys, values: step.Values}
		nodeCID, err := n.cid()
		if err != nil {
			return false, err
		}
		expectChild = nodeCID
		haveChild = true
	}

	return expectChild.Equals(root), nil
}
