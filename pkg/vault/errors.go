// Copyright 2025 Certen Protocol
//
// Vault - Error Taxonomy. Per spec §4.E, §7.

package vault

import "errors"

var (
	// ErrNoSigner is returned when commit is attempted with no signer
	// bound.
	ErrNoSigner = errors.New("vault: no signer bound")

	// ErrNothingPending is returned by Commit when there are no pending
	// events or claims to assemble into a block.
	ErrNothingPending = errors.New("vault: no pending events or claims")

	// ErrSupersedesUnresolved is returned when a claim's supersedes link
	// does not resolve to a previously committed claim.
	ErrSupersedesUnresolved = errors.New("vault: supersedes link does not resolve")

	// ErrNoActiveClaim is returned by ActiveClaim when a subject/predicate
	// pair has no committed claims, or every claim reachable for it is
	// retracted.
	ErrNoActiveClaim = errors.New("vault: no active claim for subject/predicate")
)

// IntegrityError wraps a commit failure that left the store holding
// orphaned (but harmless, content-addressed) objects without advancing
// the head. Per spec §7: commit converts partial failures into either a
// clean "no head advance" outcome or a surfaced IntegrityError, never
// both.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return "vault: integrity error during " + e.Op + ": " + e.Err.Error()
}

func (e *IntegrityError) Unwrap() error { return e.Err }
