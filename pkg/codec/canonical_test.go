// Copyright 2025 Certen Protocol
//
// Canonical Codec Tests

package codec

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"
)

type sample struct {
	B int    `cbor:"b"`
	A int    `cbor:"a"`
	C string `cbor:"c"`
}

func TestEncode_SortsMapKeysDeterministically(t *testing.T) {
	m1 := map[string]interface{}{"z": 1, "a": 2, "m": 3}
	m2 := map[string]interface{}{"a": 2, "m": 3, "z": 1}

	b1, err := Encode(m1)
	if err != nil {
		t.Fatalf("encode m1: %v", err)
	}
	b2, err := Encode(m2)
	if err != nil {
		t.Fatalf("encode m2: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Errorf("map key order affected encoding: %x != %x", b1, b2)
	}
}

func TestDecodeEncode_RoundTrip(t *testing.T) {
	want := sample{A: 1, B: 2, C: "hello"}
	b, err := Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got sample
	if err := Decode(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestEncode_DeterministicAcrossCalls(t *testing.T) {
	v := sample{A: 7, B: 9, C: "xyz"}
	b1, err := Encode(v)
	if err != nil {
		t.Fatalf("encode 1: %v", err)
	}
	b2, err := Encode(v)
	if err != nil {
		t.Fatalf("encode 2: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Errorf("two encodes of identical value differ: %x != %x", b1, b2)
	}
}

func TestEncode_RejectsNaN(t *testing.T) {
	if _, err := Encode(map[string]interface{}{"x": nanFloat()}); err == nil {
		t.Errorf("expected error encoding NaN, got nil")
	}
}

func nanFloat() float64 {
	var zero float64
	return zero / zero
}

func TestDecode_RejectsDuplicateMapKeys(t *testing.T) {
	// Hand-build a CBOR map with two identical keys; EncMode's canonical
	// mode would never produce this, so we must construct it directly.
	// Manually crafted: map(2){"a":1,"a":2}
	raw := []byte{
		0xa2,                   // map(2)
		0x61, 'a', 0x01,        // "a": 1
		0x61, 'a', 0x02,        // "a": 2 (duplicate key)
	}

	var m map[string]int
	if err := Decode(raw, &m); err == nil {
		t.Errorf("expected duplicate-key decode error, got nil (m=%v)", m)
	}
}

func TestDecode_TruncatedInput(t *testing.T) {
	var m map[string]int
	if err := Decode(nil, &m); err == nil {
		t.Errorf("expected truncated-input error for empty bytes")
	}
}

func mustCID(t *testing.T, data string) cid.Cid {
	t.Helper()
	c, err := CIDOf(data)
	if err != nil {
		t.Fatalf("CIDOf(%q): %v", data, err)
	}
	return c
}

func TestProllyNodeHash_OrderSensitive(t *testing.T) {
	c1 := mustCID(t, "leaf-1")
	c2 := mustCID(t, "leaf-2")

	h1, err := ProllyNodeHash(0, [][]byte{[]byte("a"), []byte("b")}, []cid.Cid{c1, c2})
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, err := ProllyNodeHash(0, [][]byte{[]byte("b"), []byte("a")}, []cid.Cid{c2, c1})
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if h1 == h2 {
		t.Errorf("expected different hashes for different key orders")
	}
}
