// Copyright 2025 Certen Protocol
//
// Sync Protocol - ancestor discovery, block-ordered transfer, and
// verify-and-apply, driven over a Conn. Per spec §4.G.
//
// Grounded on the teacher's Peer/Reconcile shape in
// aa00f4bd_teranos-QNTX__sync-peer_test.go.go (a peer owns a Conn plus
// local state and exposes one blocking call that runs a full exchange),
// retargeted from that example's bidirectional CRDT-style attestation
// merge onto this protocol's directional "bring receiver up to sender's
// head" semantics (spec §4.G: "iff the sender's chain is an extension of
// the receiver's").

package sync

import (
	"context"
	"fmt"

	"github.com/certen/vms/pkg/chain"
	"github.com/certen/vms/pkg/objects"
	"github.com/certen/vms/pkg/store"
	"github.com/google/uuid"
)

// Chain is what the sync protocol needs from a local vault: read its
// head and committed blocks to act as sender, verify and apply incoming
// blocks to act as receiver. *vault.Vault implements this.
type Chain interface {
	HeadInfo() (headHash [32]byte, blockNo uint64, hasHead bool)
	Objects() *store.Typed
	BlockAt(ctx context.Context, blockNo uint64) (*objects.Block, *objects.Patch, *objects.Manifest, error)
	ApplyRemoteBlock(ctx context.Context, policy chain.AuthorityPolicy, block *objects.Block, patch *objects.Patch, manifest *objects.Manifest) error
}

// probeCandidates returns the exponentially-spaced ancestor-discovery
// candidates for a chain of height headNo, descending and always ending
// at 0 (spec §4.G phase 2: "heads, head-1, head-2, head-4, ..., 0").
func probeCandidates(headNo uint64) []uint64 {
	out := []uint64{headNo}
	for gap := uint64(1); gap > 0 && gap < headNo; gap *= 2 {
		out = append(out, headNo-gap)
	}
	if headNo != 0 {
		out = append(out, 0)
	}
	return out
}

// recvCtx wraps conn.ReadMessage with context cancellation: a sync
// operation may be cancelled at any point and must not block forever on
// an unresponsive peer (spec §5: "timeouts apply to each phase
// independently and cancel cleanly at block boundaries").
func recvCtx(ctx context.Context, conn Conn) (interface{}, error) {
	type result struct {
		msg interface{}
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := conn.ReadMessage()
		ch <- result{msg, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.msg, r.err
	}
}

// RunSender drives the sending side of the protocol over conn: offers
// local's head, participates in ancestor discovery, and streams any
// blocks local has beyond the discovered ancestor.
func RunSender(ctx context.Context, conn Conn, vaultID string, local Chain) error {
	sessionID := uuid.New().String()
	headHash, headNo, hasHead := local.HeadInfo()
	if err := conn.WriteMessage(&Hello{Type: KindHello, VaultID: vaultID, SessionID: sessionID, HeadHash: headHash, HeadNo: headNo, HasHead: hasHead}); err != nil {
		return fmt.Errorf("sync: send hello: %w", err)
	}
	if !hasHead {
		return nil
	}

	peerMsg, err := recvCtx(ctx, conn)
	if err != nil {
		return fmt.Errorf("sync: await receiver hello: %w", err)
	}
	peerHello, ok := peerMsg.(*Hello)
	if !ok {
		return fmt.Errorf("sync: expected hello, got %T", peerMsg)
	}

	var ancestorNo int64 = -1
	if peerHello.HasHead {
		ancestorNo, err = senderDiscoverAncestor(ctx, conn, local)
		if err != nil {
			return err
		}
	}

	for blockNo := uint64(ancestorNo + 1); blockNo <= headNo; blockNo++ {
		if err := sendBlock(ctx, conn, local, blockNo); err != nil {
			return err
		}
	}
	return nil
}

// senderDiscoverAncestor answers the receiver's Probe sequence and
// announces the resulting ancestor (or NoCommonAncestor).
func senderDiscoverAncestor(ctx context.Context, conn Conn, local Chain) (int64, error) {
	best := int64(-1)
	for {
		msg, err := recvCtx(ctx, conn)
		if err != nil {
			return -1, fmt.Errorf("sync: await probe: %w", err)
		}
		probe, ok := msg.(*Probe)
		if !ok {
			return -1, fmt.Errorf("sync: expected probe, got %T", msg)
		}

		block, _, _, err := local.BlockAt(ctx, probe.BlockNo)
		matches := err == nil && block.BlockHash == probe.BlockHash
		if matches && int64(probe.BlockNo) > best {
			best = int64(probe.BlockNo)
		}
		if werr := conn.WriteMessage(&ProbeReply{Type: KindProbeReply, RequestID: probe.RequestID, Matches: matches}); werr != nil {
			return -1, fmt.Errorf("sync: send probe reply: %w", werr)
		}
		if probe.Final {
			break
		}
	}

	if best < 0 {
		if err := conn.WriteMessage(&NoCommonAncestor{Type: KindNoCommonAncestor}); err != nil {
			return -1, fmt.Errorf("sync: send no_common_ancestor: %w", err)
		}
		return -1, ErrNoCommonAncestor
	}
	if err := conn.WriteMessage(&AncestorFound{Type: KindAncestorFound, BlockNo: uint64(best)}); err != nil {
		return -1, fmt.Errorf("sync: send ancestor_found: %w", err)
	}
	return best, nil
}

// sendBlock transmits one BlockEnvelope followed by an ObjectBundle for
// every CID the patch added, then awaits Ack/Nack.
func sendBlock(ctx context.Context, conn Conn, local Chain, blockNo uint64) error {
	block, patch, manifest, err := local.BlockAt(ctx, blockNo)
	if err != nil {
		return fmt.Errorf("sync: load local block %d: %w", blockNo, err)
	}
	requestID := uuid.New().String()
	if err := conn.WriteMessage(&BlockEnvelope{Type: KindBlockEnvelope, RequestID: requestID, Block: block, Patch: patch, Manifest: manifest}); err != nil {
		return fmt.Errorf("sync: send block envelope %d: %w", blockNo, err)
	}

	for _, link := range patch.AddedCIDs {
		data, err := local.Objects().GetBytes(ctx, link.CID)
		if err != nil {
			return fmt.Errorf("%w: block %d cid %s: %v", ErrObjectUnavailable, blockNo, link.CID, err)
		}
		if err := conn.WriteMessage(&ObjectBundle{Type: KindObjectBundle, CID: link, Bytes: data}); err != nil {
			return fmt.Errorf("sync: send object bundle %d: %w", blockNo, err)
		}
	}

	msg, err := recvCtx(ctx, conn)
	if err != nil {
		return fmt.Errorf("sync: await ack for block %d: %w", blockNo, err)
	}
	switch m := msg.(type) {
	case *Ack:
		if m.RequestID != requestID {
			return fmt.Errorf("sync: ack for block %d carries request_id %q, expected %q", blockNo, m.RequestID, requestID)
		}
		return nil
	case *Nack:
		return fmt.Errorf("%w: block %d: %s", ErrBlockRejected, blockNo, m.Reason)
	default:
		return fmt.Errorf("sync: expected ack/nack for block %d, got %T", blockNo, msg)
	}
}

// RunReceiver drives the receiving side of the protocol over conn:
// learns the sender's head, participates in ancestor discovery, and
// verifies+applies every transferred block in order. It returns the
// number of blocks applied.
func RunReceiver(ctx context.Context, conn Conn, vaultID string, local Chain, policy chain.AuthorityPolicy) (int, error) {
	msg, err := recvCtx(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("sync: await sender hello: %w", err)
	}
	senderHello, ok := msg.(*Hello)
	if !ok {
		return 0, fmt.Errorf("sync: expected hello, got %T", msg)
	}

	headHash, headNo, hasHead := local.HeadInfo()
	sessionID := senderHello.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if err := conn.WriteMessage(&Hello{Type: KindHello, VaultID: vaultID, SessionID: sessionID, HeadHash: headHash, HeadNo: headNo, HasHead: hasHead}); err != nil {
		return 0, fmt.Errorf("sync: send receiver hello: %w", err)
	}
	if !senderHello.HasHead {
		return 0, nil
	}

	var ancestorNo int64 = -1
	if hasHead {
		ancestorNo, err = receiverDiscoverAncestor(ctx, conn, local, headNo)
		if err != nil {
			return 0, err
		}
	}

	applied := 0
	for blockNo := uint64(ancestorNo + 1); blockNo <= senderHello.HeadNo; blockNo++ {
		if err := receiveBlock(ctx, conn, local, policy, blockNo); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// receiverDiscoverAncestor sends the local probe sequence and returns
// the ancestor block_no the sender reports.
func receiverDiscoverAncestor(ctx context.Context, conn Conn, local Chain, headNo uint64) (int64, error) {
	candidates := probeCandidates(headNo)
	for i, blockNo := range candidates {
		block, _, _, err := local.BlockAt(ctx, blockNo)
		if err != nil {
			return -1, fmt.Errorf("sync: load local block %d for probe: %w", blockNo, err)
		}
		requestID := uuid.New().String()
		final := i == len(candidates)-1
		if err := conn.WriteMessage(&Probe{Type: KindProbe, RequestID: requestID, BlockNo: blockNo, BlockHash: block.BlockHash, Final: final}); err != nil {
			return -1, fmt.Errorf("sync: send probe: %w", err)
		}
		msg, err := recvCtx(ctx, conn)
		if err != nil {
			return -1, fmt.Errorf("sync: await probe reply: %w", err)
		}
		reply, ok := msg.(*ProbeReply)
		if !ok {
			return -1, fmt.Errorf("sync: expected probe_reply, got %T", msg)
		}
		if reply.RequestID != requestID {
			return -1, fmt.Errorf("sync: probe reply carries request_id %q, expected %q", reply.RequestID, requestID)
		}
	}

	msg, err := recvCtx(ctx, conn)
	if err != nil {
		return -1, fmt.Errorf("sync: await ancestor decision: %w", err)
	}
	switch m := msg.(type) {
	case *AncestorFound:
		return int64(m.BlockNo), nil
	case *NoCommonAncestor:
		return -1, ErrNoCommonAncestor
	default:
		return -1, fmt.Errorf("sync: expected ancestor_found/no_common_ancestor, got %T", msg)
	}
}

// receiveBlock reads one BlockEnvelope plus its ObjectBundles, stores
// the objects, verifies and applies the block, and replies Ack/Nack.
func receiveBlock(ctx context.Context, conn Conn, local Chain, policy chain.AuthorityPolicy, blockNo uint64) error {
	msg, err := recvCtx(ctx, conn)
	if err != nil {
		return fmt.Errorf("sync: await block envelope %d: %w", blockNo, err)
	}
	env, ok := msg.(*BlockEnvelope)
	if !ok {
		return fmt.Errorf("sync: expected block_envelope, got %T", msg)
	}

	for range env.Patch.AddedCIDs {
		bmsg, err := recvCtx(ctx, conn)
		if err != nil {
			return fmt.Errorf("sync: await object bundle for block %d: %w", blockNo, err)
		}
		bundle, ok := bmsg.(*ObjectBundle)
		if !ok {
			return fmt.Errorf("sync: expected object_bundle, got %T", bmsg)
		}
		got, err := local.Objects().Backend.Put(ctx, bundle.Bytes)
		if err != nil {
			return fmt.Errorf("sync: store object for block %d: %w", blockNo, err)
		}
		if !got.Equals(bundle.CID.CID) {
			nackBlock(conn, env.RequestID, blockNo, "object hash mismatch")
			return fmt.Errorf("%w: block %d: stored cid %s does not match advertised %s", ErrObjectUnavailable, blockNo, got, bundle.CID.CID)
		}
	}

	// The Patch and Manifest travel inside the envelope, not as bundles;
	// store them so the block's links resolve during verification.
	if _, err := local.Objects().PutObject(ctx, env.Patch); err != nil {
		return fmt.Errorf("sync: store patch for block %d: %w", blockNo, err)
	}
	if _, err := local.Objects().PutObject(ctx, env.Manifest); err != nil {
		return fmt.Errorf("sync: store manifest for block %d: %w", blockNo, err)
	}

	if err := local.ApplyRemoteBlock(ctx, policy, env.Block, env.Patch, env.Manifest); err != nil {
		nackBlock(conn, env.RequestID, blockNo, err.Error())
		return fmt.Errorf("sync: apply block %d: %w", blockNo, err)
	}

	if err := conn.WriteMessage(&Ack{Type: KindAck, RequestID: env.RequestID, BlockNo: blockNo}); err != nil {
		return fmt.Errorf("sync: send ack %d: %w", blockNo, err)
	}
	return nil
}

// nackBlock best-effort notifies the peer of a rejected block; failure
// to send the Nack itself does not mask the original error.
func nackBlock(conn Conn, requestID string, blockNo uint64, reason string) {
	_ = conn.WriteMessage(&Nack{Type: KindNack, RequestID: requestID, BlockNo: blockNo, Reason: reason})
}
