package group

import (
	"encoding"
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"
)

// ErrInvalidEncoding is returned when bytes do not decode to a canonical
// group element or scalar.
var ErrInvalidEncoding = errors.New("invalid encoding")

// Element represents an element of a prime-order group.
type Element interface {
	// Add sets the receiver to X + Y, and returns it.
	Add(X, Y Element) Element
	// Subtract sets the receiver to X - Y and returns it.
	Subtract(X, Y Element) Element
	// Negate sets the receiver to -X, and returns it.
	Negate(X Element) Element
	// Scale performs the group operation s times with X,
	// sets the receiver to the result, and returns it.
	Scale(X Element, s *big.Int) Element
	// BaseScale performs the group operation s times with the
	// group's generator, sets the receiver to the result, and returns it.
	BaseScale(s *big.Int) Element
	// Set the receiver to X, and returns it.
	Set(X Element) Element
	// SetBytes recovers a group element from its canonical byte
	// representation and sets the receiver to it.
	SetBytes(b []byte) (Element, error)
	// MapToGroup hashes a message (s) and produces a group element
	// with uniform distribution whose discrete logarithm is not known.
	MapToGroup(s string) (Element, error)
	// IsEqual returns true if the receiver is equal to X.
	IsEqual(X Element) bool
	// IsIdentity returns true if the receiver is the group's
	// identity element.
	IsIdentity() bool
	// GroupOrder returns the number of elements in the group.
	GroupOrder() *big.Int
	// Bytes returns the canonical encoding of the element.
	Bytes() []byte
	// String returns a hex representation of the element.
	String() string

	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	json.Marshaler
	json.Unmarshaler
}

// Group represents a prime-order group over a prime-order field.
type Group interface {
	// Name returns the name of the group.
	Name() string

	// Element creates a new group element set to the identity.
	Element() Element
	// Generator creates a group element set to the group's generator.
	Generator() Element
	// Identity creates a group element set to the group's identity element.
	Identity() Element

	// Random returns uniformly sampled element from the group by sampling a
	// random scalar r and returning rG.
	Random() Element
	// RandomScalar returns a uniformly sampled non-zero scalar.
	RandomScalar() (*big.Int, error)
	// HashToScalar maps msg to a scalar under the domain separation tag dst.
	HashToScalar(msg []byte, dst string) *big.Int

	// ElementLen is the length of a canonical element encoding.
	ElementLen() int
	// ScalarLen is the length of a canonical scalar encoding.
	ScalarLen() int

	// P returns the prime-order of the field.
	P() *big.Int
	// N returns the prime-order of the group.
	N() *big.Int
}

// ByName returns the group registered under name.
func ByName(name string) (Group, error) {
	switch name {
	case "", ristretto255Name:
		return Ristretto255(), nil
	default:
		return nil, errors.Errorf("unknown group %q", name)
	}
}
