package comm

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"net"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	initiatorInfo = "gsection-comm initiator-to-responder"
	responderInfo = "gsection-comm responder-to-initiator"
)

// Dial performs the ECDH handshake as the initiator over an
// already-established transport connection raw.
func Dial(raw net.Conn, rng io.Reader) (*Conn, error) {
	return handshake(raw, rng, true)
}

// Accept performs the ECDH handshake as the responder over an
// already-accepted connection.
func Accept(raw net.Conn, rng io.Reader) (*Conn, error) {
	return handshake(raw, rng, false)
}

func handshake(raw net.Conn, rng io.Reader, initiator bool) (*Conn, error) {
	priv, err := generateEphemeralKey(rng)
	if err != nil {
		return nil, err
	}
	pub := priv.PubKey()

	if err := writeFrame(raw, pub.SerializeCompressed()); err != nil {
		return nil, ErrHandshakeFailed
	}
	peerPubBytes, err := readFrame(raw, 33)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	peerPub, err := btcec.ParsePubKey(peerPubBytes)
	if err != nil {
		return nil, ErrHandshakeFailed
	}

	secret := ecdh(priv, peerPub)

	sendInfo, recvInfo := initiatorInfo, responderInfo
	if !initiator {
		sendInfo, recvInfo = responderInfo, initiatorInfo
	}
	sendKey, err := deriveKey(secret, sendInfo)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	recvKey, err := deriveKey(secret, recvInfo)
	if err != nil {
		return nil, ErrHandshakeFailed
	}

	sendAEAD, err := chacha20poly1305.New(sendKey)
	if err != nil {
		return nil, ErrHandshakeFailed
	}
	recvAEAD, err := chacha20poly1305.New(recvKey)
	if err != nil {
		return nil, ErrHandshakeFailed
	}

	return &Conn{
		raw:      raw,
		send:     sendAEAD,
		recv:     recvAEAD,
		sendSeq:  0,
		recvSeq:  0,
		sid:      uuid.New(),
		isClient: initiator,
	}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader, max uint32) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > max {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
