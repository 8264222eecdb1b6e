// Copyright 2025 Certen Protocol
//
// Attestation Chain Tests

package chain

import (
	"context"
	"testing"

	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/store"
	"github.com/ipfs/go-cid"
)

func testChainDeps(t *testing.T) (*store.Typed, *Ed25519Signer) {
	t.Helper()
	signer, err := GenerateEd25519Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	return store.NewTyped(store.NewMemoryStore()), signer
}

// buildBlock assembles a minimal, signed block referencing an empty
// Patch and Manifest, for test setup.
func buildBlock(t *testing.T, ctx context.Context, objs *store.Typed, signer *Ed25519Signer, blockNo uint64, prevHash [32]byte) *objects.Block {
	t.Helper()

	patch := objects.NewPatch(prevHash)
	patchCID, err := objs.PutObject(ctx, patch)
	if err != nil {
		t.Fatalf("put patch: %v", err)
	}
	manifest := objects.NewManifest(blockNo)
	manifestCID, err := objs.PutObject(ctx, manifest)
	if err != nil {
		t.Fatalf("put manifest: %v", err)
	}

	links := objects.BlockLinks{Patch: codec.NewLink(patchCID), Manifest: codec.NewLink(manifestCID)}
	header := objects.NewBlockHeader(blockNo, prevHash, 1000+int64(blockNo), links)
	hash, err := objects.ComputeBlockHash(header)
	if err != nil {
		t.Fatalf("compute block hash: %v", err)
	}
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return &objects.Block{BlockHeader: header, Signatures: []objects.Signature{sig}, BlockHash: hash}
}

func TestVerifyGenesis_Valid(t *testing.T) {
	ctx := context.Background()
	objs, signer := testChainDeps(t)
	policy := SingleKeyPolicy{Owner: signer.PublicKey()}

	genesis := buildBlock(t, ctx, objs, signer, 0, codec.ZeroBlockHash)
	if err := VerifyGenesis(ctx, objs, policy, genesis); err != nil {
		t.Errorf("expected valid genesis, got %v", err)
	}
}

func TestVerifyBlock_FullChain(t *testing.T) {
	ctx := context.Background()
	objs, signer := testChainDeps(t)
	policy := SingleKeyPolicy{Owner: signer.PublicKey()}

	genesis := buildBlock(t, ctx, objs, signer, 0, codec.ZeroBlockHash)
	b1 := buildBlock(t, ctx, objs, signer, 1, genesis.BlockHash)
	b2 := buildBlock(t, ctx, objs, signer, 2, b1.BlockHash)

	head, err := VerifyChain(ctx, objs, policy, []*objects.Block{genesis, b1, b2})
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if head != 2 {
		t.Errorf("expected head block_no 2, got %d", head)
	}
}

func TestVerifyBlock_RejectsBrokenHashLink(t *testing.T) {
	ctx := context.Background()
	objs, signer := testChainDeps(t)
	policy := SingleKeyPolicy{Owner: signer.PublicKey()}

	genesis := buildBlock(t, ctx, objs, signer, 0, codec.ZeroBlockHash)
	b1 := buildBlock(t, ctx, objs, signer, 1, [32]byte{0xff})

	if err := VerifyBlock(ctx, objs, policy, genesis, b1); err != ErrChainBroken {
		t.Errorf("expected ErrChainBroken, got %v", err)
	}
}

func TestVerifyBlock_RejectsBlockNoSkip(t *testing.T) {
	ctx := context.Background()
	objs, signer := testChainDeps(t)
	policy := SingleKeyPolicy{Owner: signer.PublicKey()}

	genesis := buildBlock(t, ctx, objs, signer, 0, codec.ZeroBlockHash)
	b2 := buildBlock(t, ctx, objs, signer, 2, genesis.BlockHash)

	if err := VerifyBlock(ctx, objs, policy, genesis, b2); err == nil {
		t.Fatal("expected error for skipped block_no")
	}
}

func TestVerifyBlock_RejectsUntrustedSigner(t *testing.T) {
	ctx := context.Background()
	objs, signer := testChainDeps(t)
	other, err := GenerateEd25519Signer()
	if err != nil {
		t.Fatalf("generate other signer: %v", err)
	}
	policy := SingleKeyPolicy{Owner: other.PublicKey()}

	genesis := buildBlock(t, ctx, objs, signer, 0, codec.ZeroBlockHash)
	if err := VerifyGenesis(ctx, objs, policy, genesis); err != ErrSignatureInvalid {
		t.Errorf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyBlock_RejectsTamperedHash(t *testing.T) {
	ctx := context.Background()
	objs, signer := testChainDeps(t)
	policy := SingleKeyPolicy{Owner: signer.PublicKey()}

	genesis := buildBlock(t, ctx, objs, signer, 0, codec.ZeroBlockHash)
	genesis.BlockHash[0] ^= 0xff

	if err := VerifyGenesis(ctx, objs, policy, genesis); err != ErrHashMismatch {
		t.Errorf("expected ErrHashMismatch, got %v", err)
	}
}

func TestBatchTree_InclusionProofVerifies(t *testing.T) {
	objs, _ := testChainDeps(t)
	ctx := context.Background()

	var cids []cid.Cid
	for i := 0; i < 7; i++ {
		c, err := objs.PutBytes(ctx, []byte{byte(i)})
		if err != nil {
			t.Fatalf("put leaf %d: %v", i, err)
		}
		cids = append(cids, c)
	}

	tree, err := BuildBatchTree(cids)
	if err != nil {
		t.Fatalf("build batch tree: %v", err)
	}

	for i, c := range cids {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatalf("proof %d: %v", i, err)
		}
		leaf, err := leafDigest(c)
		if err != nil {
			t.Fatalf("leaf digest %d: %v", i, err)
		}
		if !VerifyBatchInclusion(leaf, proof, tree.Root()) {
			t.Errorf("inclusion proof %d did not verify", i)
		}
	}
}

func TestBatchTree_RejectsTamperedLeaf(t *testing.T) {
	ctx := context.Background()
	objs, _ := testChainDeps(t)

	var cids []cid.Cid
	for i := 0; i < 4; i++ {
		c, err := objs.PutBytes(ctx, []byte{byte(i)})
		if err != nil {
			t.Fatalf("put leaf %d: %v", i, err)
		}
		cids = append(cids, c)
	}
	tree, err := BuildBatchTree(cids)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	tampered := [32]byte{0xde, 0xad}
	if VerifyBatchInclusion(tampered, proof, tree.Root()) {
		t.Error("tampered leaf unexpectedly verified")
	}
}
