package elgamal

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

// derivationDST separates key derivation from every other hash-to-scalar use.
const derivationDST = "confbal-v1-encryption-key"

// derivationDomain prefixes the message the primary account key signs.
const derivationDomain = "confbal/v1: derive decryption key for asset "

// KeyPair is an ElGamal encryption keypair.
type KeyPair struct {
	DecryptionKey *big.Int
	EncryptionKey group.Element
}

// GenerateKeyPair samples a uniformly random keypair.
func GenerateKeyPair(g group.Group) (*KeyPair, error) {
	sk, err := g.RandomScalar()
	if err != nil {
		return nil, err
	}
	return NewKeyPair(g, sk)
}

// NewKeyPair builds the keypair for a given decryption key.
func NewKeyPair(g group.Group, sk *big.Int) (*KeyPair, error) {
	reduced := new(big.Int).Mod(sk, g.N())
	if reduced.Sign() == 0 {
		return nil, errors.New("decryption key must be non-zero")
	}
	return &KeyPair{
		DecryptionKey: reduced,
		EncryptionKey: g.Element().BaseScale(reduced),
	}, nil
}

// DerivationMessage is the message an account's primary signing key signs to
// derive its decryption key for asset.
func DerivationMessage(asset string) []byte {
	return []byte(derivationDomain + asset)
}

// DeriveKeyPair derives a keypair from a signature over DerivationMessage.
// The same signature always yields the same keypair, which is what lets an
// account recover its decryption key from its primary key alone.
func DeriveKeyPair(g group.Group, signature []byte) (*KeyPair, error) {
	if len(signature) == 0 {
		return nil, errors.New("empty derivation signature")
	}
	return NewKeyPair(g, g.HashToScalar(signature, derivationDST))
}

// Validate checks that the encryption key matches the decryption key.
func (kp *KeyPair) Validate(g group.Group) error {
	if kp == nil || kp.DecryptionKey == nil || kp.EncryptionKey == nil {
		return errors.New("incomplete keypair")
	}
	if !g.Element().BaseScale(kp.DecryptionKey).IsEqual(kp.EncryptionKey) {
		return errors.New("encryption key does not match decryption key")
	}
	return nil
}
