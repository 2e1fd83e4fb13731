// Package comm is the reference "comm collaborator" from §6: a TCP
// transport that authenticates each link with an ephemeral ECDH
// handshake and frames application messages under ChaCha20-Poly1305,
// snappy-compressed. The section core never depends on this package
// directly — it is wired in by cmd/gsectiond the same way the consensus
// collaborator is — but it is the concrete implementation exercised by
// the node's bootstrap/join/gossip traffic. New package: the teacher's
// own p2p/ tree was a 40-line stub with no transport logic to adapt, so
// this is grounded on the broader pack's idiomatic use of
// btcsuite/btcd/btcec/v2 (ECDH), golang.org/x/crypto/hkdf+chacha20poly1305
// (key derivation/AEAD), golang/snappy (framing) and google/uuid (session
// identifiers).
package comm

import "errors"

var (
	ErrHandshakeFailed  = errors.New("comm: handshake failed")
	ErrFrameTooLarge    = errors.New("comm: frame exceeds maximum size")
	ErrConnectionClosed = errors.New("comm: connection closed")
)

// MaxFrameSize bounds a single application message, compressed+encrypted,
// to guard against a malicious peer claiming an unbounded length prefix.
const MaxFrameSize = 4 << 20 // 4 MiB
