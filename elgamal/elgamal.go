// Package elgamal implements additively homomorphic ElGamal encryption of
// bounded integers "in the exponent" over a prime-order group.
//
// A value v is encrypted under public key PK with randomness r as
//
//	C = v*G + r*PK
//	D = r*G
//
// and the holder of sk (PK = sk*G) recovers v*G = C - sk*D. Turning v*G back
// into v is a bounded discrete logarithm, which is the job of package dlog.
package elgamal

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

// ErrValueOutOfRange is returned when a plaintext does not fit the chunk width.
var ErrValueOutOfRange = errors.New("value out of range")

// MaxBits is the widest plaintext a single ciphertext may carry.
const MaxBits = 64

// Ciphertext is an ElGamal encryption of one bounded integer.
type Ciphertext struct {
	C group.Element `json:"c"`
	D group.Element `json:"d"`
}

// Encrypt encrypts value under pk. If r is nil a fresh non-zero randomness is
// sampled. The randomness actually used is returned so proofs can refer to it.
func Encrypt(g group.Group, value uint64, bits uint, pk group.Element, r *big.Int) (*Ciphertext, *big.Int, error) {
	if bits == 0 || bits > MaxBits {
		return nil, nil, errors.Wrapf(ErrValueOutOfRange, "unsupported width %d", bits)
	}
	if bits < 64 && value>>bits != 0 {
		return nil, nil, errors.Wrapf(ErrValueOutOfRange, "%d does not fit in %d bits", value, bits)
	}

	if r == nil {
		var err error
		r, err = g.RandomScalar()
		if err != nil {
			return nil, nil, err
		}
	}

	liftedMessage := g.Element().BaseScale(new(big.Int).SetUint64(value))
	mask := g.Element().Scale(pk, r)

	var ciphertext Ciphertext
	ciphertext.C = g.Element().Add(liftedMessage, mask)
	ciphertext.D = g.Element().BaseScale(r)
	return &ciphertext, r, nil
}

// TrivialEncrypt returns the randomness-free encryption (v*G, 0) of a public
// value. Anyone can recompute it, and it decrypts under every key.
func TrivialEncrypt(g group.Group, value uint64) *Ciphertext {
	return &Ciphertext{
		C: g.Element().BaseScale(new(big.Int).SetUint64(value)),
		D: g.Identity(),
	}
}

// Zero returns the encryption of zero with zero randomness.
func Zero(g group.Group) *Ciphertext {
	return &Ciphertext{C: g.Identity(), D: g.Identity()}
}

// Decrypt returns C - sk*D, the group element v*G whose discrete logarithm
// is the plaintext.
func Decrypt(g group.Group, ct *Ciphertext, sk *big.Int) group.Element {
	mask := g.Element().Scale(ct.D, sk)
	return g.Element().Subtract(ct.C, mask)
}

// Add returns the component-wise sum of two ciphertexts, an encryption of the
// sum of their plaintexts when both are under the same key.
func Add(g group.Group, a, b *Ciphertext) *Ciphertext {
	return &Ciphertext{
		C: g.Element().Add(a.C, b.C),
		D: g.Element().Add(a.D, b.D),
	}
}

// Neg returns an encryption of the negated plaintext.
func Neg(g group.Group, a *Ciphertext) *Ciphertext {
	return &Ciphertext{
		C: g.Element().Negate(a.C),
		D: g.Element().Negate(a.D),
	}
}

// Sub returns Add(a, Neg(b)).
func Sub(g group.Group, a, b *Ciphertext) *Ciphertext {
	return &Ciphertext{
		C: g.Element().Subtract(a.C, b.C),
		D: g.Element().Subtract(a.D, b.D),
	}
}

// Scale multiplies the plaintext (and randomness) by s.
func Scale(g group.Group, a *Ciphertext, s *big.Int) *Ciphertext {
	return &Ciphertext{
		C: g.Element().Scale(a.C, s),
		D: g.Element().Scale(a.D, s),
	}
}

// IsEqual reports whether both components match.
func (ct *Ciphertext) IsEqual(other *Ciphertext) bool {
	return ct.C.IsEqual(other.C) && ct.D.IsEqual(other.D)
}

// IsZero reports whether ct is the randomness-free encryption of zero.
func (ct *Ciphertext) IsZero() bool {
	return ct.C.IsIdentity() && ct.D.IsIdentity()
}

// Copy returns a deep copy of ct.
func (ct *Ciphertext) Copy(g group.Group) *Ciphertext {
	return &Ciphertext{
		C: g.Element().Set(ct.C),
		D: g.Element().Set(ct.D),
	}
}
