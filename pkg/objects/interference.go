// Copyright 2025 Certen Protocol
//
// Interference Edge - optional relational annotation between claims.
// Per spec §3.

package objects

import "github.com/certen/vms/pkg/codec"

// EdgeKind enumerates the relation an InterferenceEdge records between
// two claims.
type EdgeKind string

const (
	EdgeReinforce EdgeKind = "reinforce"
	EdgeContradict EdgeKind = "contradict"
	EdgeRefine    EdgeKind = "refine"
	EdgeAlias     EdgeKind = "alias"
)

// InterferenceEdge relates two claims (by CID), e.g. one contradicting or
// reinforcing another.
type InterferenceEdge struct {
	Type Kind `cbor:"type"`

	EdgeKind  EdgeKind   `cbor:"edge_kind"`
	Strength  float64    `cbor:"strength"`
	CreatedTs int64      `cbor:"created_ts"`
	From      codec.Link `cbor:"from"`
	To        codec.Link `cbor:"to"`
}

// NewInterferenceEdge builds an InterferenceEdge object.
func NewInterferenceEdge(kind EdgeKind, strength float64, createdTs int64, from, to codec.Link) *InterferenceEdge {
	return &InterferenceEdge{
		Type:      KindInterferenceEdge,
		EdgeKind:  kind,
		Strength:  strength,
		CreatedTs: createdTs,
		From:      from,
		To:        to,
	}
}
