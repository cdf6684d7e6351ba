// Package signer holds ed25519 key material and produces transaction signatures.
package signer

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/gagliardetto/solana-go"

	txerrors "github.com/pushchain/svm-txkit/errors"
)

// SecretKeySize is the length of serialized secret material: 32-byte seed ++ 32-byte public key.
const SecretKeySize = ed25519.PrivateKeySize

// Signer produces signatures over serialized transaction messages.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

// Keypair is an immutable ed25519 keypair.
type Keypair struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

var _ Signer = (*Keypair)(nil)

// Generate creates a keypair from fresh randomness.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, txerrors.NewKeyMaterialError("generate", "failed to generate keypair", err)
	}
	return newKeypair(priv), nil
}

// FromSeed derives a keypair deterministically from a 32-byte seed.
func FromSeed(seed [32]byte) *Keypair {
	return newKeypair(ed25519.NewKeyFromSeed(seed[:]))
}

// FromBytes restores a keypair from 64 bytes of secret material. The trailing
// 32 bytes must be the public key of the leading seed.
func FromBytes(b []byte) (*Keypair, error) {
	if len(b) != SecretKeySize {
		return nil, txerrors.Sentinel(txerrors.ErrInvalidKeyMaterial, "from_bytes",
			fmt.Errorf("expected %d bytes, got %d", SecretKeySize, len(b)))
	}
	derived := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return nil, txerrors.Sentinel(txerrors.ErrInvalidKeyMaterial, "from_bytes",
			fmt.Errorf("public key does not match seed"))
	}
	return newKeypair(derived), nil
}

// FromPrivateKey wraps a solana-go private key after validating it.
func FromPrivateKey(key solana.PrivateKey) (*Keypair, error) {
	return FromBytes(key)
}

func newKeypair(priv ed25519.PrivateKey) *Keypair {
	key := make(solana.PrivateKey, SecretKeySize)
	copy(key, priv)
	return &Keypair{
		key: key,
		pub: solana.PublicKeyFromBytes(priv[ed25519.SeedSize:]),
	}
}

// PublicKey returns the ledger address of the keypair.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.pub
}

// Sign signs message with the secret key.
func (k *Keypair) Sign(message []byte) (solana.Signature, error) {
	sig, err := k.key.Sign(message)
	if err != nil {
		return solana.Signature{}, txerrors.NewSigningError("sign", "failed to sign message", err)
	}
	return sig, nil
}

// Bytes returns a copy of the 64-byte secret material.
func (k *Keypair) Bytes() []byte {
	out := make([]byte, SecretKeySize)
	copy(out, k.key)
	return out
}

// PrivateKey returns a copy of the key in solana-go form.
func (k *Keypair) PrivateKey() solana.PrivateKey {
	return solana.PrivateKey(k.Bytes())
}

// String returns the base58 address. Secret material is never printed.
func (k *Keypair) String() string {
	return k.pub.String()
}

// Verify reports whether sig is a valid signature of message by pub.
func Verify(pub solana.PublicKey, message []byte, sig solana.Signature) bool {
	return sig.Verify(pub, message)
}
