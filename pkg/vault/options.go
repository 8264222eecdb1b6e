// Copyright 2025 Certen Protocol
//
// Vault construction and per-call options. Per spec §4.E.

package vault

import (
	"context"
	"log"
	"os"

	"github.com/certen/vms/pkg/chain"
	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/metrics"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/prolly"
	"github.com/certen/vms/pkg/red"
	"github.com/certen/vms/pkg/store"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
)

// Named Prolly indices the vault maintains, per spec §4.E step 2.
const (
	IndexEventsByTime             = "events_by_time"
	IndexClaimsBySubjectPredicate = "claims_by_subject_predicate"
	IndexCAS                      = "cas"
)

// Option configures a new Vault.
type Option func(*Vault)

// WithLogger overrides the vault's logger.
func WithLogger(l *log.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// WithRedEngine supplies a pre-configured RED engine (e.g. with
// non-default dimensionality) instead of the default one.
func WithRedEngine(e *red.Engine) Option {
	return func(v *Vault) { v.red = e }
}

// WithOwner sets the Source.PrincipalID stamped on self-sourced events
// and claims.
func WithOwner(principalID string) Option {
	return func(v *Vault) { v.ownerPrincipalID = principalID }
}

// WithMetrics attaches a Prometheus collector set; Commit and
// CreateEvent record against it when set, and are no-ops toward metrics
// otherwise.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Vault) { v.metrics = m }
}

// WithVaultID overrides the vault's generated identifier, e.g. when
// reopening a vault whose id was persisted alongside its store.
func WithVaultID(id string) Option {
	return func(v *Vault) { v.vaultID = id }
}

// New constructs a Vault with empty pending lists, canonical empty
// Prolly roots for every named index, and no head block (a fresh vault,
// per spec §4.E: "current head block hash (nullable)").
func New(ctx context.Context, objs *store.Typed, signer chain.Signer, opts ...Option) (*Vault, error) {
	v := &Vault{
		objs:    objs,
		tree:    prolly.NewTree(objs),
		signer:  signer,
		red:     red.NewEngine(),
		roots:   make(map[string]cid.Cid),
		log:     log.New(os.Stderr, "[Vault] ", log.LstdFlags),
		vaultID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(v)
	}

	empty, err := v.tree.EmptyRoot(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{IndexEventsByTime, IndexClaimsBySubjectPredicate, IndexCAS} {
		v.roots[name] = empty
	}
	return v, nil
}

// EventOption customizes CreateEvent beyond its required arguments.
type EventOption func(*objects.Event, *eventBuildState)

type eventBuildState struct {
	conflictCount           int
	secondsSinceLastSimilar float64
	predicates              []string
	text                    string
}

// WithActors sets the event's actor set.
func WithActors(actors ...string) EventOption {
	return func(e *objects.Event, _ *eventBuildState) { e.Actors = actors }
}

// WithTags sets the event's tag set.
func WithTags(tags ...string) EventOption {
	return func(e *objects.Event, _ *eventBuildState) { e.Tags = tags }
}

// WithEntities sets the event's entity set.
func WithEntities(entities ...string) EventOption {
	return func(e *objects.Event, _ *eventBuildState) { e.Entities = entities }
}

// WithPredicates feeds predicate tokens into the RED feature encoding
// for this event (spec §4.D: entities/predicates/text weighting).
// Events have no predicate_key field of their own; this only affects
// the salience score, not the stored Event.
func WithPredicates(predicates ...string) EventOption {
	return func(_ *objects.Event, s *eventBuildState) { s.predicates = predicates }
}

// WithFeatureText feeds free text into the RED feature encoding's
// character-trigram term.
func WithFeatureText(text string) EventOption {
	return func(_ *objects.Event, s *eventBuildState) { s.text = text }
}

// WithSource overrides the default self source.
func WithSource(source objects.Source) EventOption {
	return func(e *objects.Event, _ *eventBuildState) {
		e.Source = source
		e.TrustTier = objects.TrustTierFor(source.Kind)
	}
}

// WithTimestamp overrides the default (current time) timestamp.
func WithTimestamp(timestampMs int64) EventOption {
	return func(e *objects.Event, _ *eventBuildState) { e.TimestampMs = timestampMs }
}

// WithConflictCount feeds the RED combined-score conflict term (spec
// §4.D: 0.3·min(c/3, 1)).
func WithConflictCount(c int) EventOption {
	return func(_ *objects.Event, s *eventBuildState) { s.conflictCount = c }
}

// WithSecondsSinceLastSimilar feeds the RED combined-score recency term
// (spec §4.D: 0.3·(1 − exp(−t/86400))).
func WithSecondsSinceLastSimilar(t float64) EventOption {
	return func(_ *objects.Event, s *eventBuildState) { s.secondsSinceLastSimilar = t }
}

// ClaimOption customizes CreateClaim beyond its required arguments.
type ClaimOption func(*objects.Claim)

// WithClaimSource overrides the default self source.
func WithClaimSource(source objects.Source) ClaimOption {
	return func(c *objects.Claim) {
		c.Source = source
		c.TrustTier = objects.TrustTierFor(source.Kind)
	}
}

// WithUnits sets the claim's units.
func WithUnits(units string) ClaimOption {
	return func(c *objects.Claim) { c.Units = units }
}

// WithEpistemic overrides the default "observed" epistemic status.
func WithEpistemic(status objects.EpistemicStatus) ClaimOption {
	return func(c *objects.Claim) { c.Epistemic = status }
}

// WithValidity sets the claim's validity range.
func WithValidity(v objects.ValidityRange) ClaimOption {
	return func(c *objects.Claim) { c.Validity = &v }
}

// WithConfidence sets the claim's confidence.
func WithConfidence(conf float64) ClaimOption {
	return func(c *objects.Claim) { c.Confidence = &conf }
}

// WithEvidence sets the claim's evidence_refs - an ordered list of
// Event CIDs, which may reference events committed in this or any
// prior block (spec §4.E).
func WithEvidence(refs ...codec.Link) ClaimOption {
	return func(c *objects.Claim) { c.EvidenceRefs = refs }
}

// WithSupersedes records that this claim supersedes an earlier claim.
func WithSupersedes(link codec.Link) ClaimOption {
	return func(c *objects.Claim) { c.Supersedes = link }
}
