// Copyright 2025 Certen Protocol
//
// Object kinds - the closed tagged variant discriminator for the content-
// addressed object graph (Event | Claim | Patch | Manifest | Block |
// ProllyNode | InterferenceEdge). Per spec §9 Design Notes: "model as a
// closed tagged variant with a discriminator field (`type`)".

package objects

// Kind discriminates the polymorphic object graph on the wire.
type Kind string

const (
	KindEvent           Kind = "event"
	KindClaim           Kind = "claim"
	KindPatch           Kind = "patch"
	KindManifest        Kind = "manifest"
	KindBlock           Kind = "block"
	KindProllyNode      Kind = "prolly_node"
	KindInterferenceEdge Kind = "interference_edge"
)

// kindEnvelope is used to sniff an object's Kind before fully decoding it.
type kindEnvelope struct {
	Type Kind `cbor:"type"`
}
