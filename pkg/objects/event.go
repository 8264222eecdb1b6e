// Copyright 2025 Certen Protocol
//
// Event - raw observation. Per spec §3.

package objects

import (
	"fmt"

	"github.com/certen/vms/pkg/codec"
)

// Event is a raw observation recorded by an agent.
type Event struct {
	Type Kind `cbor:"type"`

	SchemaVersion int      `cbor:"schema_version"`
	TimestampMs   int64    `cbor:"timestamp_ms"`
	Actors        []string `cbor:"actors,omitempty"`
	Tags          []string `cbor:"tags,omitempty"`
	Entities      []string `cbor:"entities,omitempty"`

	// PayloadRef is the CID of the opaque payload bytes stored separately
	// in the content store.
	PayloadRef codec.Link `cbor:"payload_ref"`

	// FeatureSketch is a derived sketch of the observation: the RED
	// engine's sparse feature vector, serialized at 12 bytes per nonzero
	// dimension, so its length varies with the vector and is not fixed.
	FeatureSketch []byte `cbor:"feature_sketch,omitempty"`

	Entropy    float64 `cbor:"entropy"`
	Importance float64 `cbor:"importance"`
	Score      ScoreComponents `cbor:"score"`

	Source      Source `cbor:"source"`
	TrustTier   int    `cbor:"trust_tier"`

	Verification *Verification `cbor:"verification,omitempty"`

	Links    map[string]codec.Link  `cbor:"links,omitempty"`
	Metadata map[string]interface{} `cbor:"metadata,omitempty"`
}

// NewEvent builds an Event with sets normalized (deduplicated, sorted) and
// the schema version stamped, ready to be canonically encoded and stored.
func NewEvent(timestampMs int64, payloadRef codec.Link, source Source) *Event {
	return &Event{
		Type:          KindEvent,
		SchemaVersion: SchemaVersion,
		TimestampMs:   timestampMs,
		PayloadRef:    payloadRef,
		Source:        source,
		TrustTier:     TrustTierFor(source.Kind),
	}
}

// Validate checks the invariants spec §3 places on an Event: entropy and
// importance in [0,1], a defined payload reference.
func (e *Event) Validate() error {
	if e.PayloadRef.Empty() {
		return fmt.Errorf("event: payload_ref must be set")
	}
	if e.Entropy < 0 || e.Entropy > 1 {
		return fmt.Errorf("event: entropy %f out of [0,1]", e.Entropy)
	}
	if e.Importance < 0 || e.Importance > 1 {
		return fmt.Errorf("event: importance %f out of [0,1]", e.Importance)
	}
	return nil
}

// Normalize sorts and deduplicates the Event's set-valued fields in place.
func (e *Event) Normalize() {
	e.Actors = SortedSet(e.Actors)
	e.Tags = SortedSet(e.Tags)
	e.Entities = SortedSet(e.Entities)
}
