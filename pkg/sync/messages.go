// Copyright 2025 Certen Protocol
//
// Sync Protocol - wire messages. Per spec §4.G, §6 "Sync wire messages":
// a closed tagged variant, the same discriminator-field convention
// pkg/objects uses for the content-addressed graph, dispatch-decoded the
// same way (SniffKind then decode into the concrete type).

package sync

import (
	"fmt"

	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/objects"
)

// Kind discriminates the sync protocol's wire message variants.
type Kind string

const (
	KindHello            Kind = "hello"
	KindProbe            Kind = "probe"
	KindProbeReply       Kind = "probe_reply"
	KindAncestorFound    Kind = "ancestor_found"
	KindNoCommonAncestor Kind = "no_common_ancestor"
	KindBlockEnvelope    Kind = "block_envelope"
	KindObjectBundle     Kind = "object_bundle"
	KindAck              Kind = "ack"
	KindNack             Kind = "nack"
)

// Hello opens the protocol: the sender announces its head (spec §4.G
// phase 1); HeadNo is the block_no of that head block. SessionID
// identifies this one exchange end-to-end in both peers' logs: RunSender
// mints a fresh one for every run, and RunReceiver echoes the sender's,
// minting its own only when the sender's Hello carries none.
type Hello struct {
	Type      Kind     `cbor:"type"`
	VaultID   string   `cbor:"vault_id"`
	SessionID string   `cbor:"session_id"`
	HeadHash  [32]byte `cbor:"head_hash"`
	HeadNo    uint64   `cbor:"head_no"`
	HasHead   bool     `cbor:"has_head"`
}

// Probe is one exponentially-spaced ancestor-discovery candidate (spec
// §4.G phase 2: "heads, head-1, head-2, head-4, ...").  Final marks the
// last probe in the sequence (always the one for block_no 0), letting
// the peer know when to stop accumulating matches and announce the
// ancestor without a separate count field on the wire. RequestID
// correlates this probe with its ProbeReply.
type Probe struct {
	Type      Kind     `cbor:"type"`
	RequestID string   `cbor:"request_id"`
	BlockNo   uint64   `cbor:"block_no"`
	BlockHash [32]byte `cbor:"block_hash"`
	Final     bool     `cbor:"final"`
}

// ProbeReply answers a Probe with whether the hash matched the sender's
// own block at that block_no. RequestID echoes the Probe it answers.
type ProbeReply struct {
	Type      Kind   `cbor:"type"`
	RequestID string `cbor:"request_id"`
	Matches   bool   `cbor:"matches"`
}

// AncestorFound announces the highest block_no both peers agree on.
type AncestorFound struct {
	Type    Kind   `cbor:"type"`
	BlockNo uint64 `cbor:"block_no"`
}

// NoCommonAncestor signals that probing exhausted block 0 without a
// match: the receiver's chain is not a prefix of the sender's.
type NoCommonAncestor struct {
	Type Kind `cbor:"type"`
}

// BlockEnvelope carries one block's header, Patch, and Manifest (spec
// §4.G phase 3). It is followed by one ObjectBundle message for every
// CID in the Patch's AddedCIDs; the receiver does not report which
// objects it already holds. RequestID
// correlates this transfer with its eventual Ack/Nack.
type BlockEnvelope struct {
	Type      Kind              `cbor:"type"`
	RequestID string            `cbor:"request_id"`
	Block     *objects.Block    `cbor:"block"`
	Patch     *objects.Patch    `cbor:"patch"`
	Manifest  *objects.Manifest `cbor:"manifest"`
}

// ObjectBundle carries one object's raw bytes, addressed by CID.
type ObjectBundle struct {
	Type  Kind       `cbor:"type"`
	CID   codec.Link `cbor:"cid"`
	Bytes []byte     `cbor:"bytes"`
}

// Ack confirms a block was verified and applied. RequestID echoes the
// BlockEnvelope it answers.
type Ack struct {
	Type      Kind   `cbor:"type"`
	RequestID string `cbor:"request_id"`
	BlockNo   uint64 `cbor:"block_no"`
}

// Nack reports that a block failed verification or could not be
// applied; reason names one of the spec §4.G failure modes. RequestID
// echoes the BlockEnvelope it answers.
type Nack struct {
	Type      Kind   `cbor:"type"`
	RequestID string `cbor:"request_id"`
	BlockNo   uint64 `cbor:"block_no"`
	Reason    string `cbor:"reason"`
}

type kindEnvelope struct {
	Type Kind `cbor:"type"`
}

// sniffKind decodes just enough of a canonically-encoded message to
// learn its Kind.
func sniffKind(data []byte) (Kind, error) {
	var env kindEnvelope
	if err := codec.Decode(data, &env); err != nil {
		return "", fmt.Errorf("sync: sniff message kind: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("sync: message missing type discriminator")
	}
	return env.Type, nil
}

// decodeMessage dispatch-decodes canonically-encoded bytes into the
// concrete wire message type matching their Kind.
func decodeMessage(data []byte) (interface{}, error) {
	kind, err := sniffKind(data)
	if err != nil {
		return nil, err
	}
	var target interface{}
	switch kind {
	case KindHello:
		target = &Hello{}
	case KindProbe:
		target = &Probe{}
	case KindProbeReply:
		target = &ProbeReply{}
	case KindAncestorFound:
		target = &AncestorFound{}
	case KindNoCommonAncestor:
		target = &NoCommonAncestor{}
	case KindBlockEnvelope:
		target = &BlockEnvelope{}
	case KindObjectBundle:
		target = &ObjectBundle{}
	case KindAck:
		target = &Ack{}
	case KindNack:
		target = &Nack{}
	default:
		return nil, fmt.Errorf("sync: unknown message kind %q", kind)
	}
	if err := codec.Decode(data, target); err != nil {
		return nil, fmt.Errorf("sync: decode %s message: %w", kind, err)
	}
	return target, nil
}
