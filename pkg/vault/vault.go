// Copyright 2025 Certen Protocol
//
// Vault - single-writer commit assembly. Maintains per-vault head,
// block_no, and pending events/claims; commit() assembles them into a
// signed Block. Per spec §4.E.
//
// Grounded on the teacher's pkg/batch/collector.go (mutex-guarded
// pending-item accumulation into a unit that gets closed out and
// persisted) and pkg/attestation/service.go (the sign-then-store
// lifecycle Commit's steps 6-7 generalize).

package vault

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/certen/vms/pkg/chain"
	"github.com/certen/vms/pkg/codec"
	"github.com/certen/vms/pkg/metrics"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/prolly"
	"github.com/certen/vms/pkg/red"
	"github.com/certen/vms/pkg/store"
	"github.com/ipfs/go-cid"
)

// defaultNovelSeconds is used as the RED score's "seconds since last
// similar item" term when the caller does not track retrieval history
// (spec §4.D's combined score needs a value; a fresh vault has no prior
// observation to compare against, so the first sighting of any feature
// pattern is treated as maximally novel on the recency axis).
const defaultNovelSeconds = 365 * 24 * 3600

// Vault is a single-writer content-addressed commit log: events and
// claims accumulate in pending lists until Commit assembles them into a
// signed Block extending the vault's chain.
type Vault struct {
	mu sync.Mutex

	objs   *store.Typed
	tree   *prolly.Tree
	red    *red.Engine
	signer chain.Signer

	vaultID          string
	ownerPrincipalID string

	headHash  *[32]byte
	blockNo   uint64
	roots     map[string]cid.Cid
	pendingEv []*objects.Event
	pendingCl []*objects.Claim

	// blockCIDs is indexed by block_no, letting the vault serve as a
	// sync sender (pkg/sync.Chain) without a separate block index.
	blockCIDs []cid.Cid

	log     *log.Logger
	metrics *metrics.Metrics
}

// VaultID returns the vault's identifier, generated fresh by New unless
// overridden with WithVaultID. The sync protocol carries it in its Hello
// messages; the vault keeps its head pointer in memory only and does not
// persist it under this id or any other key.
func (v *Vault) VaultID() string {
	return v.vaultID
}

// BlockNo returns the next block number Commit would assign.
func (v *Vault) BlockNo() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.blockNo
}

// Head returns the current head block hash and whether the vault has
// committed at least one block.
func (v *Vault) Head() ([32]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.headHash == nil {
		return [32]byte{}, false
	}
	return *v.headHash, true
}

// Pending returns the count of pending events and claims awaiting
// Commit.
func (v *Vault) Pending() (events, claims int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pendingEv), len(v.pendingCl)
}

// CreateEvent encodes payload, fills an Event, computes its initial RED
// score, and appends it to the pending list. Per spec §4.E.
func (v *Vault) CreateEvent(ctx context.Context, payload []byte, opts ...EventOption) (*objects.Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	payloadCID, err := v.objs.PutBytes(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("vault: store payload: %w", err)
	}

	source := objects.Source{Kind: objects.SourceSelf, PrincipalID: v.ownerPrincipalID}
	ev := objects.NewEvent(time.Now().UnixMilli(), codec.NewLink(payloadCID), source)

	state := &eventBuildState{secondsSinceLastSimilar: defaultNovelSeconds}
	for _, opt := range opts {
		opt(ev, state)
	}
	ev.Normalize()

	vec := red.EncodeFeatures(ev.Entities, state.predicates, state.text, v.red.Dimensions())
	ev.FeatureSketch = red.SerializeSketch(vec)
	ev.Entropy = v.red.Entropy(vec)
	ev.Importance = v.red.Score(vec, state.conflictCount, state.secondsSinceLastSimilar)
	ev.Score.Salience = ev.Entropy

	if v.metrics != nil {
		v.metrics.RedNoveltyTotal.Inc()
		v.metrics.RedScoreObserved.Observe(ev.Importance)
	}

	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("vault: invalid event: %w", err)
	}

	v.pendingEv = append(v.pendingEv, ev)
	return ev, nil
}

// CreateClaim fills a Claim and appends it to the pending list. Per
// spec §4.E: "evidence_refs may reference events committed in this or
// any prior block."
func (v *Vault) CreateClaim(ctx context.Context, subjectID, predicateKey string, value interface{}, valueType objects.ValueType, opts ...ClaimOption) (*objects.Claim, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	source := objects.Source{Kind: objects.SourceSelf, PrincipalID: v.ownerPrincipalID}
	claim := objects.NewClaim(subjectID, predicateKey, value, valueType, time.Now().UnixMilli(), source)
	for _, opt := range opts {
		opt(claim)
	}

	if err := claim.Validate(); err != nil {
		return nil, fmt.Errorf("vault: invalid claim: %w", err)
	}
	if !claim.Supersedes.Empty() {
		obj, err := v.objs.GetObject(ctx, claim.Supersedes.CID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSupersedesUnresolved, claim.Supersedes.CID, err)
		}
		if _, ok := obj.(*objects.Claim); !ok {
			return nil, fmt.Errorf("%w: %s is a %T, not a Claim", ErrSupersedesUnresolved, claim.Supersedes.CID, obj)
		}
	}

	v.pendingCl = append(v.pendingCl, claim)
	return claim, nil
}

// claimIndexKey is the sort key for claims_by_subject_predicate:
// subject then predicate, so range queries over a subject's predicates
// are contiguous.
func claimIndexKey(c *objects.Claim) []byte {
	return []byte(c.SubjectID + "\x00" + c.PredicateKey + "\x00" + fmt.Sprintf("%020d", c.AssertedTs))
}

// eventIndexKey is the sort key for events_by_time: timestamp, ties
// broken by payload CID so the order is fully deterministic regardless
// of pending-list emission order.
func eventIndexKey(e *objects.Event) []byte {
	return []byte(fmt.Sprintf("%020d\x00%s", e.TimestampMs, e.PayloadRef.String()))
}

// ActiveClaim resolves the current value for (subjectID, predicateKey):
// the committed claim with the latest asserted_ts in
// claims_by_subject_predicate, provided it is not itself retracted. The
// returned chain holds every claim it transitively supersedes, most
// recent first (the walk stops at the first superseded claim the content
// store cannot return), so a caller can confirm an earlier value (e.g. C1) is
// still reachable after a newer claim (C2) superseded it (spec §8
// scenario 4). Returns ErrNoActiveClaim if the pair has no claims, or
// the latest one is retracted.
func (v *Vault) ActiveClaim(ctx context.Context, subjectID, predicateKey string) (*objects.Claim, []*objects.Claim, error) {
	v.mu.Lock()
	root := v.roots[IndexClaimsBySubjectPredicate]
	v.mu.Unlock()

	prefix := subjectID + "\x00" + predicateKey + "\x00"
	kvs, err := v.tree.Range(ctx, root, []byte(prefix), []byte(prefix+"\xff"))
	if err != nil {
		return nil, nil, fmt.Errorf("vault: range claims_by_subject_predicate: %w", err)
	}
	if len(kvs) == 0 {
		return nil, nil, ErrNoActiveClaim
	}

	byCID := make(map[cid.Cid]*objects.Claim, len(kvs))
	for _, kv := range kvs {
		obj, err := v.objs.GetObject(ctx, kv.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("vault: load claim %s: %w", kv.Value, err)
		}
		claim, ok := obj.(*objects.Claim)
		if !ok {
			return nil, nil, fmt.Errorf("vault: object %s is not a claim", kv.Value)
		}
		byCID[kv.Value] = claim
	}

	// kvs is in ascending claimIndexKey order, and asserted_ts is its
	// trailing component, so the last entry is the most recently
	// asserted claim for this subject/predicate.
	head := byCID[kvs[len(kvs)-1].Value]
	if head.Epistemic == objects.EpistemicRetracted {
		return nil, nil, ErrNoActiveClaim
	}

	var chain []*objects.Claim
	for cur := head; !cur.Supersedes.Empty(); {
		prev, ok := byCID[cur.Supersedes.CID]
		if !ok {
			// Not in this range result (e.g. a later claim with the same
			// index key replaced its entry); load it from the store.
			obj, err := v.objs.GetObject(ctx, cur.Supersedes.CID)
			if err != nil {
				break
			}
			if prev, ok = obj.(*objects.Claim); !ok {
				break
			}
		}
		chain = append(chain, prev)
		cur = prev
	}
	return head, chain, nil
}

// Commit assembles every pending event and claim into a new signed
// Block extending the vault's chain, per spec §4.E steps 1-8. On any
// store failure after partial writes, the content store retains
// harmless orphans and the head is NOT advanced (step propagation
// policy, spec §7) and the pending set is kept for a retry. A retry
// stores the same objects under the same CIDs, but the block header takes
// a fresh timestamp, so the retried block's hash differs from the one the
// failed attempt would have produced.
func (v *Vault) Commit(ctx context.Context) (*objects.Block, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.signer == nil {
		return nil, ErrNoSigner
	}
	if len(v.pendingEv) == 0 && len(v.pendingCl) == 0 {
		return nil, ErrNothingPending
	}

	commitStart := time.Now()

	// Step 1: persist pending events and claims in emission order,
	// collecting their CIDs. Any failure from here through step 7 leaves
	// only harmless content-addressed orphans behind (nothing yet
	// referenced by a root or head), surfaced as an IntegrityError rather
	// than a plain error so callers can distinguish "safe to retry" from
	// a rejected commit (spec §7).
	var addedCIDs []cid.Cid
	eventCIDs := make(map[*objects.Event]cid.Cid, len(v.pendingEv))
	for _, ev := range v.pendingEv {
		c, err := v.objs.PutObject(ctx, ev)
		if err != nil {
			return nil, &IntegrityError{Op: "persist event", Err: err}
		}
		eventCIDs[ev] = c
		addedCIDs = append(addedCIDs, c)
	}
	claimCIDs := make(map[*objects.Claim]cid.Cid, len(v.pendingCl))
	for _, cl := range v.pendingCl {
		c, err := v.objs.PutObject(ctx, cl)
		if err != nil {
			return nil, &IntegrityError{Op: "persist claim", Err: err}
		}
		claimCIDs[cl] = c
		addedCIDs = append(addedCIDs, c)
	}

	// Step 2: apply additions to the named Prolly indices.
	newRoots := make(map[string]cid.Cid, len(v.roots))
	for name, root := range v.roots {
		newRoots[name] = root
	}

	for _, ev := range v.pendingEv {
		newRoot, err := v.tree.Insert(ctx, newRoots[IndexEventsByTime], eventIndexKey(ev), eventCIDs[ev])
		if err != nil {
			return nil, &IntegrityError{Op: "update events_by_time", Err: err}
		}
		newRoots[IndexEventsByTime] = newRoot
	}
	for _, cl := range v.pendingCl {
		newRoot, err := v.tree.Insert(ctx, newRoots[IndexClaimsBySubjectPredicate], claimIndexKey(cl), claimCIDs[cl])
		if err != nil {
			return nil, &IntegrityError{Op: "update claims_by_subject_predicate", Err: err}
		}
		newRoots[IndexClaimsBySubjectPredicate] = newRoot
	}
	for _, c := range addedCIDs {
		newRoot, err := v.tree.Insert(ctx, newRoots[IndexCAS], c.Bytes(), c)
		if err != nil {
			return nil, &IntegrityError{Op: "update cas", Err: err}
		}
		newRoots[IndexCAS] = newRoot
	}

	// Step 3: construct the Patch.
	var parentHash [32]byte
	if v.headHash != nil {
		parentHash = *v.headHash
	}
	patch := objects.NewPatch(parentHash)
	for _, c := range addedCIDs {
		patch.AddedCIDs = append(patch.AddedCIDs, codec.NewLink(c))
	}
	for name, root := range newRoots {
		patch.UpdatedRoots[name] = codec.NewLink(root)
	}

	// Batch inclusion proof (supplemented feature, SPEC_FULL.md §3): a
	// binary Merkle accumulator over added_cids, stored as an auxiliary
	// root alongside the named Prolly roots.
	batchTree, err := chain.BuildBatchTree(addedCIDs)
	if err != nil {
		return nil, &IntegrityError{Op: "build batch proof", Err: err}
	}
	batchRootLink, err := chain.StoreBatchRoot(ctx, v.objs, batchTree)
	if err != nil {
		return nil, &IntegrityError{Op: "store batch proof", Err: err}
	}

	patchCID, err := v.objs.PutObject(ctx, patch)
	if err != nil {
		return nil, &IntegrityError{Op: "persist patch", Err: err}
	}

	// Step 4: construct the Manifest.
	manifest := objects.NewManifest(v.blockNo)
	for name, root := range newRoots {
		manifest.Roots[name] = codec.NewLink(root)
	}
	manifest.AuxRoots[objects.AuxRootBatchProof] = batchRootLink
	for _, name := range []string{objects.AuxRootPolicy, objects.AuxRootRevocation, objects.AuxRootCAS} {
		manifest.AuxRoots[name] = codec.Link{}
	}

	manifestCID, err := v.objs.PutObject(ctx, manifest)
	if err != nil {
		return nil, &IntegrityError{Op: "persist manifest", Err: err}
	}

	// Step 5: construct the Block header.
	links := objects.BlockLinks{Patch: codec.NewLink(patchCID), Manifest: codec.NewLink(manifestCID)}
	header := objects.NewBlockHeader(v.blockNo, parentHash, time.Now().UnixMilli(), links)

	// Step 6: block_hash.
	blockHash, err := objects.ComputeBlockHash(header)
	if err != nil {
		return nil, &IntegrityError{Op: "compute block hash", Err: err}
	}

	// Step 7: sign and store.
	sig, err := v.signer.Sign(blockHash)
	if err != nil {
		return nil, &IntegrityError{Op: "sign block", Err: err}
	}
	block := &objects.Block{BlockHeader: header, Signatures: []objects.Signature{sig}, BlockHash: blockHash}
	blockCID, err := v.objs.PutObject(ctx, block)
	if err != nil {
		return nil, &IntegrityError{Op: "persist block", Err: err}
	}

	// Step 8: advance head, clear pending (head advance is atomic: no
	// yield between assigning block_hash above and this update, per
	// spec §5 concurrency model - the vault holds its lock throughout).
	head := blockHash
	v.headHash = &head
	v.blockNo++
	v.roots = newRoots
	v.pendingEv = nil
	v.pendingCl = nil
	v.blockCIDs = append(v.blockCIDs, blockCID)

	if v.metrics != nil {
		v.metrics.CommitsTotal.Inc()
		v.metrics.CommitDuration.Observe(time.Since(commitStart).Seconds())
		v.metrics.CommitEventsTotal.Add(float64(len(eventCIDs)))
		v.metrics.CommitClaimsTotal.Add(float64(len(claimCIDs)))
	}

	v.log.Printf("committed block_no=%d events=%d claims=%d", block.BlockNo, len(eventCIDs), len(claimCIDs))
	return block, nil
}

// Feedback reports a retrieval outcome to the RED engine for vec - a
// feature vector previously produced by CreateEvent's encoding, or by
// EncodeFeatures directly for a read-path query (spec §4.D feedback).
func (v *Vault) Feedback(vec *red.SparseVector, useful bool) {
	v.red.Feedback(vec, useful)
}

// FeedbackText is the vault's documented feedback(entities, text, useful)
// surface (spec §6): it encodes entities/text the same way CreateEvent
// does and reports the outcome to the RED engine, for callers that only
// have the retrieval's entities and text on hand rather than a
// previously-encoded SparseVector.
func (v *Vault) FeedbackText(entities []string, text string, useful bool) {
	vec := red.EncodeFeatures(entities, nil, text, v.red.Dimensions())
	v.red.Feedback(vec, useful)
}

// Reframe triggers RED consolidation (spec §4.D: "called periodically").
func (v *Vault) Reframe() {
	v.red.Reframe()
}
