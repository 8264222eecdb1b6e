// Copyright 2025 Certen Protocol
//
// Block signing - Ed25519, adapted from the teacher's attestation
// service (pkg/attestation/service.go uses crypto/ed25519 the same way:
// one keypair per signing identity, sign over a fixed-size digest).
// Per spec §4.E step 7, §4.F rule 4.

package chain

import (
	"crypto/ed25519"
	"fmt"

	"github.com/certen/vms/pkg/objects"
)

// Signer produces a Signature over a block digest.
type Signer interface {
	Sign(digest [32]byte) (objects.Signature, error)
	PublicKey() ed25519.PublicKey
}

// Ed25519Signer signs with a single Ed25519 keypair.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer wraps an existing private key.
func NewEd25519Signer(priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{priv: priv}
}

// GenerateEd25519Signer generates a fresh keypair, for tests and
// first-run vault bootstrap.
func GenerateEd25519Signer() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate signer key: %w", err)
	}
	return &Ed25519Signer{priv: priv}, nil
}

// Sign signs digest, returning an objects.Signature carrying the public
// key alongside the signature bytes.
func (s *Ed25519Signer) Sign(digest [32]byte) (objects.Signature, error) {
	sig := ed25519.Sign(s.priv, digest[:])
	return objects.Signature{
		PublicKey: append([]byte(nil), s.PublicKey()...),
		Signature: sig,
	}, nil
}

// PublicKey returns the signer's public key.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// AuthorityPolicy decides whether a public key is authorized to sign
// blocks for a vault. The minimal configuration (spec §4.F rule 4:
// "in the minimal configuration: the vault owner's key") is a
// single-key policy.
type AuthorityPolicy interface {
	Authorized(pub ed25519.PublicKey) bool
}

// SingleKeyPolicy authorizes exactly one public key: the vault owner.
type SingleKeyPolicy struct {
	Owner ed25519.PublicKey
}

// Authorized reports whether pub matches the owner key.
func (p SingleKeyPolicy) Authorized(pub ed25519.PublicKey) bool {
	return ed25519.PublicKey(pub).Equal(p.Owner)
}

// VerifySignatures reports whether at least one of sigs verifies digest
// under a key authorized by policy (spec §4.F rule 4).
func VerifySignatures(policy AuthorityPolicy, digest [32]byte, sigs []objects.Signature) bool {
	for _, sig := range sigs {
		pub := ed25519.PublicKey(sig.PublicKey)
		if len(pub) != ed25519.PublicKeySize {
			continue
		}
		if !policy.Authorized(pub) {
			continue
		}
		if ed25519.Verify(pub, digest[:], sig.Signature) {
			return true
		}
	}
	return false
}
