package comm

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// generateEphemeralKey draws a secp256k1 scalar from rng (injectable per
// §9 — never crypto/rand directly) and returns the private key (its
// public half is available via PubKey).
func generateEphemeralKey(rng io.Reader) (*btcec.PrivateKey, error) {
	buf := make([]byte, 32)
	for {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, err
		}
		priv, pub := btcec.PrivKeyFromBytes(buf)
		if priv != nil && pub != nil {
			return priv, nil
		}
	}
}

// ecdh derives the raw shared x-coordinate for priv and peerPub, the
// Diffie-Hellman secret fed into hkdf by deriveSessionKeys.
func ecdh(priv *btcec.PrivateKey, peerPub *btcec.PublicKey) []byte {
	x, _ := btcec.S256().ScalarMult(peerPub.X(), peerPub.Y(), priv.Serialize())
	return x.Bytes()
}
