// Copyright 2025 Certen Protocol
//
// Attestation Chain - Error Taxonomy. Per spec §4.F.

package chain

import "errors"

var (
	// ErrBlockNoMismatch is rule 1: B.block_no must equal P.block_no + 1.
	ErrBlockNoMismatch = errors.New("chain: block_no does not extend predecessor")

	// ErrChainBroken is rule 2: B.prev_block_hash must equal P.block_hash.
	ErrChainBroken = errors.New("chain: prev_block_hash does not match predecessor")

	// ErrHashMismatch is rule 3: recomputed block_hash must match.
	ErrHashMismatch = errors.New("chain: recomputed block_hash does not match")

	// ErrSignatureInvalid is rule 4: no signature verifies under the
	// authority policy.
	ErrSignatureInvalid = errors.New("chain: no valid signature under authority policy")

	// ErrLinkUnresolvable is rule 5: the Patch or Manifest CID referenced
	// by the block does not fetch or decode cleanly.
	ErrLinkUnresolvable = errors.New("chain: patch or manifest link unresolvable")

	// ErrNotGenesis is returned when a block presented as genesis fails
	// the genesis shape check (block_no == 0, prev_block_hash == zero).
	ErrNotGenesis = errors.New("chain: not a valid genesis block")
)
