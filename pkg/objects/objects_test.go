// Copyright 2025 Certen Protocol
//
// Object graph round-trip tests

package objects

import (
	"testing"

	"github.com/certen/vms/pkg/codec"
)

func mustPayloadLink(t *testing.T) codec.Link {
	t.Helper()
	c, err := codec.CIDOf("payload bytes")
	if err != nil {
		t.Fatalf("CIDOf: %v", err)
	}
	return codec.NewLink(c)
}

func TestEvent_EncodeDecodeRoundTrip(t *testing.T) {
	ev := NewEvent(1000, mustPayloadLink(t), Source{Kind: SourceSelf, PrincipalID: "did:example:alice"})
	ev.Entities = []string{"alice", "bob"}
	ev.Tags = []string{"greeting"}
	ev.Normalize()

	b, err := codec.Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(*Event)
	if !ok {
		t.Fatalf("decode returned %T, want *Event", decoded)
	}
	if got.Source.PrincipalID != ev.Source.PrincipalID {
		t.Errorf("principal id mismatch: got %q, want %q", got.Source.PrincipalID, ev.Source.PrincipalID)
	}
	if len(got.Entities) != 2 || got.Entities[0] != "alice" {
		t.Errorf("entities mismatch: got %v", got.Entities)
	}
}

func TestEvent_Validate(t *testing.T) {
	ev := NewEvent(1000, mustPayloadLink(t), Source{Kind: SourceSelf})
	ev.Entropy = 1.5
	if err := ev.Validate(); err == nil {
		t.Errorf("expected validation error for out-of-range entropy")
	}
}

func TestClaim_SupersessionRequiresLink(t *testing.T) {
	c := NewClaim("user:alice", "diet", "vegetarian", ValueString, 1000, Source{Kind: SourceUser})
	c.Epistemic = EpistemicRetracted
	if err := c.Validate(); err == nil {
		t.Errorf("expected validation error: retracted claim without supersedes")
	}

	priorCID, err := codec.CIDOf(c)
	if err != nil {
		t.Fatalf("CIDOf: %v", err)
	}
	c.Supersedes = codec.NewLink(priorCID)
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestClaim_IsActive(t *testing.T) {
	c := NewClaim("user:alice", "diet", "vegetarian", ValueString, 1000, Source{Kind: SourceUser})
	c.Validity = &ValidityRange{From: 500, To: 2000}
	if !c.IsActive(1000) {
		t.Errorf("expected active at t=1000")
	}
	if c.IsActive(3000) {
		t.Errorf("expected inactive after validity window")
	}
}

func TestBlock_HashExcludesSignatures(t *testing.T) {
	header := NewBlockHeader(0, codec.ZeroBlockHash, 1000, BlockLinks{})
	h1, err := ComputeBlockHash(header)
	if err != nil {
		t.Fatalf("compute hash: %v", err)
	}

	blk := &Block{BlockHeader: header, BlockHash: h1}
	blk.Signatures = append(blk.Signatures, Signature{PublicKey: []byte("pk"), Signature: []byte("sig")})

	h2, err := ComputeBlockHash(blk.BlockHeader)
	if err != nil {
		t.Fatalf("compute hash 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("adding a signature changed the block hash: %x != %x", h1, h2)
	}
}

func TestBlock_IsGenesis(t *testing.T) {
	header := NewBlockHeader(0, codec.ZeroBlockHash, 1000, BlockLinks{})
	blk := &Block{BlockHeader: header}
	if !blk.IsGenesis() {
		t.Errorf("expected block 0 with zero prev hash to be genesis")
	}
}
