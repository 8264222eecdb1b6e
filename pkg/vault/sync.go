// Copyright 2025 Certen Protocol
//
// Vault as a sync endpoint: serving its own committed blocks to a peer
// acting as sender, and verifying+applying a peer's blocks while acting
// as receiver. Per spec §4.G phases 3-4.

package vault

import (
	"context"
	"fmt"

	"github.com/certen/vms/pkg/chain"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/store"
	"github.com/ipfs/go-cid"
)

// HeadInfo returns the vault's current head hash, the block_no of that
// head block, and whether any block has been committed yet (hash and
// block_no are zero when none has). BlockNo gives the next block_no.
func (v *Vault) HeadInfo() (headHash [32]byte, blockNo uint64, hasHead bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.headHash == nil {
		return [32]byte{}, 0, false
	}
	return *v.headHash, v.blockNo - 1, true
}

// Objects exposes the vault's underlying typed store, so a sync peer can
// fetch the objects a BlockEnvelope references.
func (v *Vault) Objects() *store.Typed {
	return v.objs
}

// BlockAt returns the block committed as blockNo, along with its Patch
// and Manifest, for the sync protocol's transfer phase (spec §4.G phase
// 3: "sender streams blocks [ancestor_no+1..head_block_no] in order").
func (v *Vault) BlockAt(ctx context.Context, blockNo uint64) (*objects.Block, *objects.Patch, *objects.Manifest, error) {
	v.mu.Lock()
	var blockCID cid.Cid
	if blockNo < uint64(len(v.blockCIDs)) {
		blockCID = v.blockCIDs[blockNo]
	}
	v.mu.Unlock()

	if !blockCID.Defined() {
		return nil, nil, nil, fmt.Errorf("vault: no block committed at block_no %d", blockNo)
	}

	decoded, err := v.objs.GetObject(ctx, blockCID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("vault: fetch block %d: %w", blockNo, err)
	}
	block, ok := decoded.(*objects.Block)
	if !ok {
		return nil, nil, nil, fmt.Errorf("vault: object at block_no %d is a %T, not a Block", blockNo, decoded)
	}

	patchDecoded, err := v.objs.GetObject(ctx, block.Links.Patch.CID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("vault: fetch patch for block %d: %w", blockNo, err)
	}
	patch, ok := patchDecoded.(*objects.Patch)
	if !ok {
		return nil, nil, nil, fmt.Errorf("vault: patch link for block %d is a %T, not a Patch", blockNo, patchDecoded)
	}

	manifestDecoded, err := v.objs.GetObject(ctx, block.Links.Manifest.CID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("vault: fetch manifest for block %d: %w", blockNo, err)
	}
	manifest, ok := manifestDecoded.(*objects.Manifest)
	if !ok {
		return nil, nil, nil, fmt.Errorf("vault: manifest link for block %d is a %T, not a Manifest", blockNo, manifestDecoded)
	}

	return block, patch, manifest, nil
}

// ApplyRemoteBlock verifies an incoming block against the vault's
// current head under policy and, if it verifies, advances the vault's
// head/block_no/roots from manifest and records the block in the local
// index. Per spec §4.G phase 4: the objects a block references must
// already be in the store (the sync transport's ObjectBundle phase puts
// them there) before this is called.
func (v *Vault) ApplyRemoteBlock(ctx context.Context, policy chain.AuthorityPolicy, block *objects.Block, patch *objects.Patch, manifest *objects.Manifest) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if block.BlockNo != v.blockNo {
		return fmt.Errorf("vault: remote block_no %d does not extend local chain at %d", block.BlockNo, v.blockNo)
	}

	if v.headHash == nil {
		if err := chain.VerifyGenesis(ctx, v.objs, policy, block); err != nil {
			return fmt.Errorf("vault: remote genesis block failed verification: %w", err)
		}
	} else {
		prev, _, _, err := v.blockAtLocked(ctx, block.BlockNo-1)
		if err != nil {
			return fmt.Errorf("vault: fetch local predecessor block: %w", err)
		}
		if err := chain.VerifyBlock(ctx, v.objs, policy, prev, block); err != nil {
			return fmt.Errorf("vault: remote block failed verification: %w", err)
		}
		if patch.ParentBlockHash != prev.BlockHash {
			return fmt.Errorf("vault: remote patch does not continue from local head: %w", chain.ErrChainBroken)
		}
	}

	newRoots := make(map[string]cid.Cid, len(manifest.Roots))
	for name, link := range manifest.Roots {
		newRoots[name] = link.CID
	}

	blockCID, err := v.objs.PutObject(ctx, block)
	if err != nil {
		return fmt.Errorf("vault: persist applied block: %w", err)
	}

	head := block.BlockHash
	v.headHash = &head
	v.blockNo = block.BlockNo + 1
	v.roots = newRoots
	v.blockCIDs = append(v.blockCIDs, blockCID)

	v.log.Printf("applied remote block_no=%d", block.BlockNo)
	return nil
}

// blockAtLocked is BlockAt without acquiring v.mu, for callers that
// already hold the lock.
func (v *Vault) blockAtLocked(ctx context.Context, blockNo uint64) (*objects.Block, *objects.Patch, *objects.Manifest, error) {
	if blockNo >= uint64(len(v.blockCIDs)) {
		return nil, nil, nil, fmt.Errorf("vault: no block committed at block_no %d", blockNo)
	}
	blockCID := v.blockCIDs[blockNo]

	decoded, err := v.objs.GetObject(ctx, blockCID)
	if err != nil {
		return nil, nil, nil, err
	}
	block, ok := decoded.(*objects.Block)
	if !ok {
		return nil, nil, nil, fmt.Errorf("vault: object at block_no %d is a %T, not a Block", blockNo, decoded)
	}
	return block, nil, nil, nil
}
