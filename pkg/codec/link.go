// Copyright 2025 Certen Protocol
//
// Link values - CIDs embedded in canonical-encoded objects, tagged so
// link discovery is structural (per spec §4.A).
//
// Links are encoded as CBOR tag 42 wrapping a byte string whose first
// byte is 0x00 (the "identity" multibase prefix), followed by the raw
// CID bytes - the same convention go-ipld/go-ipld-prime uses for CID
// links in dag-cbor, so these bytes interoperate with any IPLD tool
// that speaks dag-cbor.

package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

const cidLinkTag = 42

// Link wraps a CID so it round-trips through the canonical codec as a
// tagged link value rather than an opaque byte string.
type Link struct {
	CID cid.Cid
}

// NewLink wraps a CID in a Link.
func NewLink(c cid.Cid) Link { return Link{CID: c} }

// Empty reports whether the link carries no CID (the zero value).
func (l Link) Empty() bool { return !l.CID.Defined() }

// String returns the link's CID string, or "" for an empty link.
func (l Link) String() string {
	if l.Empty() {
		return ""
	}
	return l.CID.String()
}

// MarshalCBOR implements cbor.Marshaler, emitting tag 42 over an
// identity-multibase-prefixed CID byte string.
func (l Link) MarshalCBOR() ([]byte, error) {
	if l.Empty() {
		return cbor.Marshal(cbor.Tag{Number: cidLinkTag, Content: []byte{0x00}})
	}
	raw := l.CID.Bytes()
	buf := make([]byte, 1+len(raw))
	buf[0] = 0x00
	copy(buf[1:], raw)
	return cbor.Marshal(cbor.Tag{Number: cidLinkTag, Content: buf})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := decMode.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("link: %w: %v", ErrCanonicalization, err)
	}
	if tag.Number != cidLinkTag {
		return fmt.Errorf("link: %w: tag %d is not a CID link", ErrUnsupportedType, tag.Number)
	}
	raw, ok := tag.Content.([]byte)
	if !ok || len(raw) == 0 {
		return fmt.Errorf("link: %w: malformed link content", ErrCanonicalization)
	}
	if raw[0] != 0x00 {
		return fmt.Errorf("link: %w: unsupported multibase prefix %x", ErrCanonicalization, raw[0])
	}
	if len(raw) == 1 {
		l.CID = cid.Undef
		return nil
	}
	c, err := cid.Cast(raw[1:])
	if err != nil {
		return fmt.Errorf("link: %w: %v", ErrCanonicalization, err)
	}
	l.CID = c
	return nil
}
