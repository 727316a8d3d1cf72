package group

import (
	"crypto/rand"
	"encoding/json"
	"math/big"

	"github.com/cloudflare/circl/group"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const (
	ristretto255Name = "ristretto255"
	r255ElementLen   = 32
	r255ScalarLen    = 32
)

// mapToGroupDST separates MapToGroup outputs from other uses of the
// ristretto255 hash-to-group map.
var mapToGroupDST = []byte("confbal-v1-map-to-group")

type r255Group struct {
	fieldOrder *big.Int
	curveOrder *big.Int
	name       string
}

type r255Point struct {
	curve *r255Group
	val   group.Element
}

func (g *r255Group) Name() string {
	return g.name
}

func (g *r255Group) P() *big.Int {
	return g.fieldOrder
}

func (g *r255Group) N() *big.Int {
	return g.curveOrder
}

func (g *r255Group) ElementLen() int {
	return r255ElementLen
}

func (g *r255Group) ScalarLen() int {
	return r255ScalarLen
}

func (g *r255Group) Generator() Element {
	return &r255Point{
		curve: g,
		val:   group.Ristretto255.Generator(),
	}
}

func (g *r255Group) Identity() Element {
	return &r255Point{
		curve: g,
		val:   group.Ristretto255.Identity(),
	}
}

func (g *r255Group) Random() Element {
	return &r255Point{
		curve: g,
		val:   group.Ristretto255.RandomElement(rand.Reader),
	}
}

func (g *r255Group) Element() Element {
	return g.Identity()
}

func (g *r255Group) RandomScalar() (*big.Int, error) {
	// Sample from [1, N).
	s, err := rand.Int(rand.Reader, new(big.Int).Sub(g.curveOrder, big.NewInt(1)))
	if err != nil {
		return nil, errors.Wrap(err, "sample scalar")
	}
	return s.Add(s, big.NewInt(1)), nil
}

func (g *r255Group) HashToScalar(msg []byte, dst string) *big.Int {
	// 64 bytes of SHAKE256 output keep the reduction bias negligible.
	in := make([]byte, 0, 2+len(dst)+len(msg))
	in = append(in, byte(len(dst)>>8), byte(len(dst)))
	in = append(in, dst...)
	in = append(in, msg...)
	out := make([]byte, 64)
	sha3.ShakeSum256(out, in)
	return new(big.Int).Mod(new(big.Int).SetBytes(out), g.curveOrder)
}

func (g *r255Group) scalar(s *big.Int) group.Scalar {
	reduced := new(big.Int).Mod(s, g.curveOrder)
	return group.Ristretto255.NewScalar().SetBigInt(reduced)
}

func (e *r255Point) check(a Element) *r255Point {
	ey, ok := a.(*r255Point)
	if !ok {
		panic("incompatible group element type")
	}
	return ey
}

func (e *r255Point) Add(a Element, b Element) Element {
	ca := e.check(a)
	cb := e.check(b)
	e.val = group.Ristretto255.NewElement().Add(ca.val, cb.val)
	return e
}

func (e *r255Point) Subtract(a Element, b Element) Element {
	ca := e.check(a)
	cb := e.check(b)
	neg := group.Ristretto255.NewElement().Neg(cb.val)
	e.val = group.Ristretto255.NewElement().Add(ca.val, neg)
	return e
}

func (e *r255Point) Negate(a Element) Element {
	ca := e.check(a)
	e.val = group.Ristretto255.NewElement().Neg(ca.val)
	return e
}

func (e *r255Point) IsEqual(b Element) bool {
	cb := e.check(b)
	return e.val.IsEqual(cb.val)
}

func (e *r255Point) Set(x Element) Element {
	ca := e.check(x)
	e.val = group.Ristretto255.NewElement().Set(ca.val)
	return e
}

func (e *r255Point) SetBytes(b []byte) (Element, error) {
	if len(b) != r255ElementLen {
		return nil, errors.Wrapf(ErrInvalidEncoding, "ristretto255 element must be %d bytes, got %d", r255ElementLen, len(b))
	}
	val := group.Ristretto255.NewElement()
	if err := val.UnmarshalBinary(b); err != nil {
		return nil, errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	e.val = val
	return e, nil
}

func (e *r255Point) Scale(x Element, s *big.Int) Element {
	ex := e.check(x)
	e.val = group.Ristretto255.NewElement().Mul(ex.val, e.curve.scalar(s))
	return e
}

func (e *r255Point) BaseScale(s *big.Int) Element {
	e.val = group.Ristretto255.NewElement().MulGen(e.curve.scalar(s))
	return e
}

func (e *r255Point) GroupOrder() *big.Int {
	return e.curve.curveOrder
}

func (e *r255Point) MapToGroup(s string) (Element, error) {
	e.val = group.Ristretto255.HashToElement([]byte(s), mapToGroupDST)
	return e, nil
}

func (e *r255Point) IsIdentity() bool {
	return e.val.IsIdentity()
}

func (e *r255Point) Bytes() []byte {
	b, err := e.val.MarshalBinary()
	if err != nil {
		// circl never fails to encode a valid ristretto255 element.
		panic(err)
	}
	return b
}

func (e *r255Point) String() string {
	return hexutil.Encode(e.Bytes())
}

func (e *r255Point) MarshalBinary() ([]byte, error) {
	return e.val.MarshalBinary()
}

func (e *r255Point) UnmarshalBinary(data []byte) error {
	_, err := e.SetBytes(data)
	return err
}

func (e *r255Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Bytes(e.Bytes()))
}

func (e *r255Point) UnmarshalJSON(data []byte) error {
	var raw hexutil.Bytes
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	_, err := e.SetBytes(raw)
	return err
}

// Ristretto255 returns the prime-order group built on Curve25519 by the
// ristretto encoding.
func Ristretto255() Group {
	p, _ := new(big.Int).SetString("7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffed", 16)
	n, _ := new(big.Int).SetString("1000000000000000000000000000000014def9dea2f79cd65812631a5cf5d3ed", 16)

	G := new(r255Group)
	G.fieldOrder = p
	G.curveOrder = n
	G.name = ristretto255Name
	return G
}
