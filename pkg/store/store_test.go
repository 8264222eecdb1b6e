// Copyright 2025 Certen Protocol
//
// Content Store Tests

package store

import (
	"context"
	"testing"

	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/objects"
	"github.com/ipfs/go-cid"
)

func linkOf(c cid.Cid) codec.Link { return codec.NewLink(c) }

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("hello")
	c, err := s.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, c)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}

	has, err := s.Has(ctx, c)
	if err != nil || !has {
		t.Errorf("has: got (%v, %v), want (true, nil)", has, err)
	}
}

func TestMemoryStore_PutIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("same content")
	c1, err := s.Put(ctx, data)
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	c2, err := s.Put(ctx, data)
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if !c1.Equals(c2) {
		t.Errorf("expected identical CIDs for identical bytes: %s != %s", c1, c2)
	}
	if s.Len() != 1 {
		t.Errorf("expected a single stored entry, got %d", s.Len())
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	fake, _ := s.Put(ctx, []byte("x"))
	_ = s.Delete(ctx, fake)

	if _, err := s.Get(ctx, fake); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTyped_PutGetObject(t *testing.T) {
	ctx := context.Background()
	typed := NewTyped(NewMemoryStore())

	payload, err := typed.PutBytes(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("put bytes: %v", err)
	}

	ev := objects.NewEvent(1000, linkOf(payload), objects.Source{Kind: objects.SourceSelf})
	c, err := typed.PutObject(ctx, ev)
	if err != nil {
		t.Fatalf("put object: %v", err)
	}

	decoded, err := typed.GetObject(ctx, c)
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	got, ok := decoded.(*objects.Event)
	if !ok {
		t.Fatalf("decoded type %T, want *objects.Event", decoded)
	}
	if got.TimestampMs != 1000 {
		t.Errorf("timestamp mismatch: got %d", got.TimestampMs)
	}
}
