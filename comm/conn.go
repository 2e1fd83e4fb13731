package comm

import (
	"crypto/cipher"
	"encoding/binary"
	"net"
	"sync"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// Conn is one authenticated, framed link between two nodes. Each
// direction uses its own AEAD key (derived with a direction-specific HKDF
// info string) and its own monotonically increasing nonce counter, so the
// two peers never need to exchange nonces explicitly — both sides
// increment in lockstep, one send per recv.
type Conn struct {
	raw net.Conn

	mu      sync.Mutex
	send    cipher.AEAD
	recv    cipher.AEAD
	sendSeq uint64
	recvSeq uint64

	sid      uuid.UUID
	isClient bool
}

// SessionID returns the locally generated identifier for this link, used
// to correlate log lines and pending-bootstrap tracking (msgfilter).
func (c *Conn) SessionID() uuid.UUID { return c.sid }

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Close tears down the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }

func nonceFor(seq uint64, size int) []byte {
	nonce := make([]byte, size)
	binary.BigEndian.PutUint64(nonce[size-8:], seq)
	return nonce
}

// Send compresses, encrypts and frames payload, then writes it.
func (c *Conn) Send(payload []byte) error {
	compressed := snappy.Encode(nil, payload)

	c.mu.Lock()
	nonce := nonceFor(c.sendSeq, c.send.NonceSize())
	c.sendSeq++
	aead := c.send
	c.mu.Unlock()

	ciphertext := aead.Seal(nil, nonce, compressed, nil)
	if len(ciphertext) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	return writeFrame(c.raw, ciphertext)
}

// Recv reads, decrypts and decompresses the next frame.
func (c *Conn) Recv() ([]byte, error) {
	ciphertext, err := readFrame(c.raw, MaxFrameSize)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	nonce := nonceFor(c.recvSeq, c.recv.NonceSize())
	c.recvSeq++
	aead := c.recv
	c.mu.Unlock()

	compressed, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}
	return snappy.Decode(nil, compressed)
}
