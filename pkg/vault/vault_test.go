// Copyright 2025 Certen Protocol
//
// Vault Tests

package vault

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/certen/vms/pkg/chain"
	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/store"
)

func testVault(t *testing.T) (*Vault, context.Context) {
	t.Helper()
	ctx := context.Background()
	objs := store.NewTyped(store.NewMemoryStore())
	signer, err := chain.GenerateEd25519Signer()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	v, err := New(ctx, objs, signer, WithOwner("agent-1"))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v, ctx
}

// TestVault_SingleEventCommit exercises spec §8 scenario 1: create one
// event, commit, and verify the resulting block is genesis and well
// formed.
func TestVault_SingleEventCommit(t *testing.T) {
	v, ctx := testVault(t)

	ev, err := v.CreateEvent(ctx, []byte("hello world"),
		WithEntities("alice", "bob"),
		WithPredicates("met_with"),
		WithFeatureText("alice met with bob"),
	)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if ev.PayloadRef.Empty() {
		t.Fatal("expected payload_ref to be set")
	}

	block, err := v.Commit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !block.IsGenesis() {
		t.Error("expected first commit to be genesis")
	}
	if len(block.Signatures) != 1 {
		t.Errorf("expected 1 signature, got %d", len(block.Signatures))
	}

	head, ok := v.Head()
	if !ok {
		t.Fatal("expected head to be set after commit")
	}
	if head != block.BlockHash {
		t.Error("head does not match committed block hash")
	}
	if v.BlockNo() != 1 {
		t.Errorf("expected next block_no 1, got %d", v.BlockNo())
	}

	events, claims := v.Pending()
	if events != 0 || claims != 0 {
		t.Errorf("expected pending lists cleared, got events=%d claims=%d", events, claims)
	}
}

func TestVault_CommitWithoutPendingFails(t *testing.T) {
	v, ctx := testVault(t)
	if _, err := v.Commit(ctx); err != ErrNothingPending {
		t.Errorf("expected ErrNothingPending, got %v", err)
	}
}

func TestVault_SequentialCommitsAdvanceChain(t *testing.T) {
	v, ctx := testVault(t)

	if _, err := v.CreateEvent(ctx, []byte("first")); err != nil {
		t.Fatalf("create event 1: %v", err)
	}
	b1, err := v.Commit(ctx)
	if err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	if _, err := v.CreateEvent(ctx, []byte("second")); err != nil {
		t.Fatalf("create event 2: %v", err)
	}
	b2, err := v.Commit(ctx)
	if err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	if b2.BlockNo != 1 {
		t.Errorf("expected block_no 1, got %d", b2.BlockNo)
	}
	if b2.PrevBlockHash != b1.BlockHash {
		t.Error("second block does not link to first block's hash")
	}

	policy := chain.SingleKeyPolicy{Owner: ed25519.PublicKey(b1.Signatures[0].PublicKey)}
	if _, err := chain.VerifyChain(ctx, v.objs, policy, []*objects.Block{b1, b2}); err != nil {
		t.Errorf("resulting chain does not verify: %v", err)
	}
}

func TestVault_ClaimWithEvidenceAndSupersedes(t *testing.T) {
	v, ctx := testVault(t)

	ev, err := v.CreateEvent(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := v.Commit(ctx); err != nil {
		t.Fatalf("commit event: %v", err)
	}
	evCID, err := v.objs.PutObject(ctx, ev)
	if err != nil {
		t.Fatalf("re-derive event cid: %v", err)
	}

	first, err := v.CreateClaim(ctx, "alice", "age", 30.0, objects.ValueNumber,
		WithEvidence(codec.NewLink(evCID)),
		WithConfidence(0.9),
	)
	if err != nil {
		t.Fatalf("create first claim: %v", err)
	}
	if _, err := v.Commit(ctx); err != nil {
		t.Fatalf("commit claim: %v", err)
	}

	firstCID, err := v.objs.PutObject(ctx, first)
	if err != nil {
		t.Fatalf("re-derive first claim cid: %v", err)
	}

	if _, err := v.CreateClaim(ctx, "alice", "age", nil, objects.ValueNumber,
		WithEpistemic(objects.EpistemicRetracted),
	); err == nil {
		t.Fatal("expected retraction without supersedes to fail validation")
	}

	retraction, err := v.CreateClaim(ctx, "alice", "age", nil, objects.ValueNumber,
		WithEpistemic(objects.EpistemicRetracted),
		WithSupersedes(codec.NewLink(firstCID)),
	)
	if err != nil {
		t.Fatalf("create retraction: %v", err)
	}
	if retraction.Supersedes.Empty() {
		t.Error("expected supersedes link to be set")
	}
	if _, err := v.Commit(ctx); err != nil {
		t.Fatalf("commit retraction: %v", err)
	}
}

// TestVault_ActiveClaimSupersessionChain exercises spec §8 scenario 4:
// C1 = (alice, diet, "vegetarian") committed, then superseded by
// C2 = (alice, diet, "pescatarian"). Querying the active claim must
// resolve to C2's value while still revealing C1 is reachable via the
// supersedes chain.
func TestVault_ActiveClaimSupersessionChain(t *testing.T) {
	v, ctx := testVault(t)

	c1, err := v.CreateClaim(ctx, "user:alice", "diet", "vegetarian", objects.ValueString,
		WithConfidence(0.9),
	)
	if err != nil {
		t.Fatalf("create c1: %v", err)
	}
	if _, err := v.Commit(ctx); err != nil {
		t.Fatalf("commit c1: %v", err)
	}
	c1CID, err := v.objs.PutObject(ctx, c1)
	if err != nil {
		t.Fatalf("re-derive c1 cid: %v", err)
	}

	if _, err := v.CreateClaim(ctx, "user:alice", "diet", "pescatarian", objects.ValueString,
		WithConfidence(0.9),
		WithSupersedes(codec.NewLink(c1CID)),
	); err != nil {
		t.Fatalf("create c2: %v", err)
	}
	if _, err := v.Commit(ctx); err != nil {
		t.Fatalf("commit c2: %v", err)
	}

	active, chain, err := v.ActiveClaim(ctx, "user:alice", "diet")
	if err != nil {
		t.Fatalf("active claim: %v", err)
	}
	if active.Value != "pescatarian" {
		t.Errorf("active claim value = %v, want pescatarian", active.Value)
	}
	if len(chain) != 1 {
		t.Fatalf("supersedes chain length = %d, want 1", len(chain))
	}
	if chain[0].Value != "vegetarian" {
		t.Errorf("superseded claim value = %v, want vegetarian (c1 must remain reachable)", chain[0].Value)
	}
}
