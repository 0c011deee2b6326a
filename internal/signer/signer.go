// Package signer provides the narrow signing capability the solver needs:
// an ed25519 keypair loaded from a 64-char hex seed, the derived on-chain
// address, and transaction-bytes signing. Key custody beyond the process
// environment is out of scope; the key is never logged or echoed.
package signer

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ed25519 scheme flag, prefixed to both the address preimage and the
// serialized signature.
const schemeED25519 = 0x00

// Transaction-intent prefix: scope 0 (transaction data), version 0, app 0.
var txIntentPrefix = []byte{0, 0, 0}

// Signer holds one ed25519 keypair and its derived address.
type Signer struct {
	priv    ed25519.PrivateKey
	address string
}

// FromHex builds a signer from a 64-character hex seed.
func FromHex(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("private key must be 64 hex chars, got %d", len(hexKey))
	}
	seed, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		priv:    priv,
		address: deriveAddress(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// Address returns the 0x-prefixed address derived from the public key.
func (s *Signer) Address() string { return s.address }

// Sign produces the serialized signature for txBytes: the ed25519 signature
// over the blake2b-256 digest of the intent-prefixed bytes, framed as
// base64(flag ‖ sig ‖ pubkey).
func (s *Signer) Sign(txBytes []byte) string {
	msg := make([]byte, 0, len(txIntentPrefix)+len(txBytes))
	msg = append(msg, txIntentPrefix...)
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)

	sig := ed25519.Sign(s.priv, digest[:])
	pub := s.priv.Public().(ed25519.PublicKey)

	framed := make([]byte, 0, 1+len(sig)+len(pub))
	framed = append(framed, schemeED25519)
	framed = append(framed, sig...)
	framed = append(framed, pub...)
	return base64.StdEncoding.EncodeToString(framed)
}

// deriveAddress hashes flag ‖ pubkey with blake2b-256.
func deriveAddress(pub ed25519.PublicKey) string {
	preimage := make([]byte, 0, 1+len(pub))
	preimage = append(preimage, schemeED25519)
	preimage = append(preimage, pub...)
	digest := blake2b.Sum256(preimage)
	return "0x" + hex.EncodeToString(digest[:])
}
