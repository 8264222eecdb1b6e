// Copyright 2025 Certen Protocol
//
// Canonical Codec - deterministic binary encoding
// Per spec §3 (Canonical encoding) and §4.A (Canonical Codec)
//
// Encoding is IPLD-style DAG-CBOR-equivalent: fixed integer/float
// serialization, sorted map keys (bytewise ascending), length-prefixed
// byte/text strings, no NaN floats, no duplicate map keys, and explicit
// tagging of link values via Link (see link.go). We reuse
// github.com/fxamacker/cbor/v2's canonical encoding options
// (cbor.CanonicalEncOptions, RFC 7049 canonical CBOR), which already give
// us sorted map keys (length-first, which for text keys is the bytewise
// order of their encoded form) and minimal-width integers, and layer
// duplicate-key rejection and NaN rejection on top.

package codec

import (
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	encOpts := cbor.CanonicalEncOptions()
	// Reject NaN/Inf outright rather than
	// silently encoding them, matching the "no floating-point NaN" invariant.
	encOpts.NaNConvert = cbor.NaNConvertReject
	encOpts.InfConvert = cbor.InfConvertReject
	mode, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building canonical encode mode: %v", err))
	}
	encMode = mode

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF, // reject duplicate map keys
		IndefLength: cbor.IndefLengthForbidden, // canonical encoding is always definite-length
		NaN:         cbor.NaNDecodeForbidden,   // reject NaN floats
		Inf:         cbor.InfDecodeForbidden,   // reject infinite floats
	}
	dm, err := decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building canonical decode mode: %v", err))
	}
	decMode = dm
}

// Encode serializes v into the canonical binary encoding. v must be one of
// the closed schema types in pkg/objects (or a value built only from
// strings, []byte, bool, integers, float64, slices, maps, and Link), or a
// type implementing cbor.Marshaler.
func Encode(v interface{}) ([]byte, error) {
	if hasNaN(v) {
		return nil, fmt.Errorf("encode: %w: NaN or Inf float in value", ErrCanonicalization)
	}
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w: %v", ErrUnsupportedType, err)
	}
	return b, nil
}

// Decode deserializes canonical bytes into v (a pointer to a schema type).
func Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("decode: %w", ErrTruncatedInput)
	}
	if err := decMode.Unmarshal(data, v); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return fmt.Errorf("decode: %w: %v", ErrTruncatedInput, err)
		}
		return fmt.Errorf("decode: %w: %v", ErrCanonicalization, err)
	}
	return nil
}

// hasNaN walks common container shapes looking for a NaN/Inf float64.
// CBOR encoding itself also rejects NaN (NaNConvertReject), this is a
// cheaper first-pass check that produces our own error kind instead of a
// generic marshal failure.
func hasNaN(v interface{}) bool {
	switch t := v.(type) {
	case float64:
		return math.IsNaN(t) || math.IsInf(t, 0)
	case float32:
		f := float64(t)
		return math.IsNaN(f) || math.IsInf(f, 0)
	case []interface{}:
		for _, e := range t {
			if hasNaN(e) {
				return true
			}
		}
	case map[string]interface{}:
		for _, e := range t {
			if hasNaN(e) {
				return true
			}
		}
	}
	return false
}
