// Copyright 2025 Certen Protocol
//
// Dispatch - the codec dispatches on the `type` discriminator to decode
// the closed tagged variant (spec §9 Design Notes).

package objects

import (
	"fmt"

	"github.com/certen/vms/pkg/codec"
)

// SniffKind decodes just enough of canonically-encoded bytes to learn the
// object's Kind, without committing to a concrete type.
func SniffKind(data []byte) (Kind, error) {
	var env kindEnvelope
	if err := codec.Decode(data, &env); err != nil {
		return "", fmt.Errorf("sniff kind: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("sniff kind: missing type discriminator")
	}
	return env.Type, nil
}

// Decode decodes canonical bytes into the concrete Go type matching their
// Kind discriminator, returned as interface{} (one of *Event, *Claim,
// *Patch, *Manifest, *Block, *ProllyNode, *InterferenceEdge).
func Decode(data []byte) (interface{}, error) {
	kind, err := SniffKind(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindEvent:
		var v Event
		if err := codec.Decode(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case KindClaim:
		var v Claim
		if err := codec.Decode(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case KindPatch:
		var v Patch
		if err := codec.Decode(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case KindManifest:
		var v Manifest
		if err := codec.Decode(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case KindBlock:
		var v Block
		if err := codec.Decode(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case KindProllyNode:
		var v ProllyNode
		if err := codec.Decode(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case KindInterferenceEdge:
		var v InterferenceEdge
		if err := codec.Decode(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	default:
		return nil, fmt.Errorf("decode: unknown object kind %q", kind)
	}
}
