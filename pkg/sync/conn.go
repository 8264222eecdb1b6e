// Copyright 2025 Certen Protocol
//
// Sync Protocol - transport. Conn is the abstraction the protocol speaks
// over; StreamConn frames canonically-encoded messages with a 4-byte
// length prefix (spec §6: "length-prefixed, canonically encoded") atop
// any io.ReadWriteCloser. Grounded on the teacher's Conn interface
// pattern (read/write one message at a time, Close idempotent) but
// retargeted from JSON-over-websocket to this codec's canonical CBOR
// framing.

package sync

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/certen/vms/pkg/codec"
)

// maxMessageSize bounds a single framed message, guarding against a
// corrupt or adversarial length prefix driving an unbounded allocation.
const maxMessageSize = 64 << 20

// Conn is the transport a sync Peer speaks over: one message at a time,
// in order, each direction independently readable/writable.
type Conn interface {
	ReadMessage() (interface{}, error)
	WriteMessage(msg interface{}) error
	Close() error
}

// StreamConn frames messages over an io.ReadWriteCloser (a TCP
// connection, a pipe, anything byte-oriented).
type StreamConn struct {
	rw   io.ReadWriteCloser
	wmu  sync.Mutex
	rmu  sync.Mutex
}

// NewStreamConn wraps rw as a Conn.
func NewStreamConn(rw io.ReadWriteCloser) *StreamConn {
	return &StreamConn{rw: rw}
}

// WriteMessage canonically encodes msg and writes it length-prefixed.
func (c *StreamConn) WriteMessage(msg interface{}) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("sync: encode message: %w", err)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := c.rw.Write(hdr[:]); err != nil {
		return fmt.Errorf("sync: write length prefix: %w", err)
	}
	if _, err := c.rw.Write(data); err != nil {
		return fmt.Errorf("sync: write message body: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed frame and dispatch-decodes it.
func (c *StreamConn) ReadMessage() (interface{}, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	var hdr [4]byte
	if _, err := io.ReadFull(c.rw, hdr[:]); err != nil {
		return nil, fmt.Errorf("sync: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxMessageSize {
		return nil, fmt.Errorf("sync: message length %d exceeds max %d", n, maxMessageSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.rw, body); err != nil {
		return nil, fmt.Errorf("sync: read message body: %w", err)
	}
	return decodeMessage(body)
}

// Close closes the underlying stream.
func (c *StreamConn) Close() error {
	return c.rw.Close()
}
