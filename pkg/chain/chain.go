// Copyright 2025 Certen Protocol
//
// Attestation Chain - the ordered, hash-linked, signed sequence of
// Blocks, and the five-rule verification of a block against its
// predecessor. Per spec §4.F.

package chain

import (
	"context"
	"fmt"

	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/store"
)

// VerifyGenesis checks block b in isolation as a genesis block: rule 1's
// alternate form (block_no == 0, prev_block_hash == zero), rule 3
// (hash), rule 4 (signature), and rule 5 (links resolve).
func VerifyGenesis(ctx context.Context, objs *store.Typed, policy AuthorityPolicy, b *objects.Block) error {
	if !b.IsGenesis() {
		return ErrNotGenesis
	}
	return verifyCommon(ctx, objs, policy, b)
}

// VerifyBlock checks block b against its immediate predecessor p,
// implementing all five rules of spec §4.F.
func VerifyBlock(ctx context.Context, objs *store.Typed, policy AuthorityPolicy, p, b *objects.Block) error {
	if b.BlockNo != p.BlockNo+1 {
		return fmt.Errorf("%w: have %d, want %d", ErrBlockNoMismatch, b.BlockNo, p.BlockNo+1)
	}
	if b.PrevBlockHash != p.BlockHash {
		return ErrChainBroken
	}
	return verifyCommon(ctx, objs, policy, b)
}

// verifyCommon implements rules 3-5, shared by genesis and
// non-genesis verification.
func verifyCommon(ctx context.Context, objs *store.Typed, policy AuthorityPolicy, b *objects.Block) error {
	gotHash, err := objects.ComputeBlockHash(b.BlockHeader)
	if err != nil {
		return fmt.Errorf("recompute block hash: %w", err)
	}
	if gotHash != b.BlockHash {
		return ErrHashMismatch
	}

	if !VerifySignatures(policy, b.BlockHash, b.Signatures) {
		return ErrSignatureInvalid
	}

	if _, err := fetchPatch(ctx, objs, b.Links.Patch); err != nil {
		return fmt.Errorf("%w: patch %s: %v", ErrLinkUnresolvable, b.Links.Patch, err)
	}
	if _, err := fetchManifest(ctx, objs, b.Links.Manifest); err != nil {
		return fmt.Errorf("%w: manifest %s: %v", ErrLinkUnresolvable, b.Links.Manifest, err)
	}
	return nil
}

func fetchPatch(ctx context.Context, objs *store.Typed, link codec.Link) (*objects.Patch, error) {
	decoded, err := objs.GetObject(ctx, link.CID)
	if err != nil {
		return nil, err
	}
	p, ok := decoded.(*objects.Patch)
	if !ok {
		return nil, fmt.Errorf("object %s is a %T, not a Patch", link.CID, decoded)
	}
	return p, nil
}

func fetchManifest(ctx context.Context, objs *store.Typed, link codec.Link) (*objects.Manifest, error) {
	decoded, err := objs.GetObject(ctx, link.CID)
	if err != nil {
		return nil, err
	}
	m, ok := decoded.(*objects.Manifest)
	if !ok {
		return nil, fmt.Errorf("object %s is a %T, not a Manifest", link.CID, decoded)
	}
	return m, nil
}

// VerifyChain walks blocks in order (blocks[0] must be genesis) and
// verifies every block against its predecessor, returning the index of
// the highest verified block_no on success, or an error identifying the
// first block that failed to verify (spec: "a chain is valid up to head
// H iff every block from 0..H verifies in sequence").
func VerifyChain(ctx context.Context, objs *store.Typed, policy AuthorityPolicy, blocks []*objects.Block) (uint64, error) {
	if len(blocks) == 0 {
		return 0, fmt.Errorf("chain: empty block sequence")
	}
	if err := VerifyGenesis(ctx, objs, policy, blocks[0]); err != nil {
		return 0, fmt.Errorf("block 0: %w", err)
	}
	for i := 1; i < len(blocks); i++ {
		if err := VerifyBlock(ctx, objs, policy, blocks[i-1], blocks[i]); err != nil {
			return blocks[i-1].BlockNo, fmt.Errorf("block %d: %w", blocks[i].BlockNo, err)
		}
	}
	return blocks[len(blocks)-1].BlockNo, nil
}

// VerifyPatchContinuity checks that the Patch referenced by b declares
// p's block_hash as its parent, the extra cross-check the sync
// protocol's verify-and-apply phase requires (spec §4.G phase 4:
// "verifies the block per §4.F (including the fact that the referenced
// Patch's parent_block_hash matches the previous accepted block)").
func VerifyPatchContinuity(ctx context.Context, objs *store.Typed, p, b *objects.Block) error {
	patch, err := fetchPatch(ctx, objs, b.Links.Patch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLinkUnresolvable, err)
	}
	if patch.ParentBlockHash != p.BlockHash {
		return ErrChainBroken
	}
	return nil
}
