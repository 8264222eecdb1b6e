// Copyright 2025 Certen Protocol
//
// Claim - structured assertion. Per spec §3.

package objects

import (
	"fmt"

	"github.com/certen/vms/pkg/codec"
)

// EpistemicStatus is a Claim's epistemic standing.
type EpistemicStatus string

const (
	EpistemicObserved  EpistemicStatus = "observed"
	EpistemicInferred  EpistemicStatus = "inferred"
	EpistemicVerified  EpistemicStatus = "verified"
	EpistemicRetracted EpistemicStatus = "retracted"
)

// ValueType enumerates the polymorphic Claim.Value's wire type.
type ValueType string

const (
	ValueString ValueType = "string"
	ValueNumber ValueType = "number"
	ValueBool   ValueType = "bool"
	ValueJSON   ValueType = "json"
)

// ValidityRange is a Claim's optional validity window. Open is true when
// there is no "to" bound yet (the claim is still in force).
type ValidityRange struct {
	From int64 `cbor:"from"`
	To   int64 `cbor:"to,omitempty"`
	Open bool  `cbor:"open"`
}

// Claim is a structured assertion about a subject, with optional evidence
// and supersession linkage.
type Claim struct {
	Type Kind `cbor:"type"`

	SubjectID     string    `cbor:"subject_id"`
	PredicateKey  string    `cbor:"predicate_key"`
	Value         interface{} `cbor:"value"`
	ValueType     ValueType `cbor:"value_type"`
	Units         string    `cbor:"units,omitempty"`

	Epistemic  EpistemicStatus `cbor:"epistemic"`
	AssertedTs int64           `cbor:"asserted_ts"`
	Validity   *ValidityRange  `cbor:"validity,omitempty"`
	Confidence *float64        `cbor:"confidence,omitempty"`

	// EvidenceRefs is an ordered list of Event CIDs backing this claim.
	EvidenceRefs []codec.Link `cbor:"evidence_refs,omitempty"`

	// Supersedes points at the CID of an earlier Claim this one replaces.
	Supersedes codec.Link `cbor:"supersedes,omitempty"`

	Source    Source `cbor:"source"`
	TrustTier int    `cbor:"trust_tier"`

	Links    map[string]codec.Link  `cbor:"links,omitempty"`
	Metadata map[string]interface{} `cbor:"metadata,omitempty"`
}

// NewClaim builds a Claim with the schema-required fields set.
func NewClaim(subjectID, predicateKey string, value interface{}, valueType ValueType, assertedTs int64, source Source) *Claim {
	return &Claim{
		Type:         KindClaim,
		SubjectID:    subjectID,
		PredicateKey: predicateKey,
		Value:        value,
		ValueType:    valueType,
		Epistemic:    EpistemicObserved,
		AssertedTs:   assertedTs,
		Source:       source,
		TrustTier:    TrustTierFor(source.Kind),
	}
}

// Validate checks spec §3 invariants on a Claim: confidence in [0,1] when
// present, subject/predicate non-empty, and retracted claims carry a
// supersedes link (§9: retraction is a new Claim with epistemic=retracted
// and supersedes pointing at the retracted claim).
func (c *Claim) Validate() error {
	if c.SubjectID == "" {
		return fmt.Errorf("claim: subject_id must not be empty")
	}
	if c.PredicateKey == "" {
		return fmt.Errorf("claim: predicate_key must not be empty")
	}
	if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 1) {
		return fmt.Errorf("claim: confidence %f out of [0,1]", *c.Confidence)
	}
	if c.Epistemic == EpistemicRetracted && c.Supersedes.Empty() {
		return fmt.Errorf("claim: retracted claim must set supersedes")
	}
	return nil
}

// IsActive reports whether the claim is not retracted and, if it has a
// validity range, whether it is still open or has not yet expired at `asOf`.
func (c *Claim) IsActive(asOf int64) bool {
	if c.Epistemic == EpistemicRetracted {
		return false
	}
	if c.Validity == nil {
		return true
	}
	if asOf < c.Validity.From {
		return false
	}
	if c.Validity.Open {
		return true
	}
	return asOf <= c.Validity.To
}
