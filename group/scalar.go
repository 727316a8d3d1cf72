package group

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// ScalarBytes encodes s as a fixed-length big-endian integer reduced
// modulo the group order.
func ScalarBytes(g Group, s *big.Int) []byte {
	reduced := new(big.Int).Mod(s, g.N())
	return reduced.FillBytes(make([]byte, g.ScalarLen()))
}

// ScalarFromBytes decodes a scalar produced by ScalarBytes. Non-canonical
// encodings (values not below the group order) are rejected.
func ScalarFromBytes(g Group, b []byte) (*big.Int, error) {
	if len(b) != g.ScalarLen() {
		return nil, errors.Wrapf(ErrInvalidEncoding, "scalar must be %d bytes, got %d", g.ScalarLen(), len(b))
	}
	s := new(big.Int).SetBytes(b)
	if s.Cmp(g.N()) >= 0 {
		return nil, errors.Wrap(ErrInvalidEncoding, "scalar not reduced")
	}
	return s, nil
}

// ElementFromBytes decodes a canonical element encoding of g.
func ElementFromBytes(g Group, b []byte) (Element, error) {
	return g.Element().SetBytes(b)
}

// Scalar is a JSON wrapper that renders scalars as 0x-prefixed hex.
type Scalar struct {
	*big.Int
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal((*hexutil.Big)(s.Int))
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	var v hexutil.Big
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(ErrInvalidEncoding, err.Error())
	}
	s.Int = v.ToInt()
	return nil
}

// MultiScale returns sum(scalars[i] * points[i]).
func MultiScale(g Group, points []Element, scalars []*big.Int) Element {
	acc := g.Identity()
	for i := range points {
		acc.Add(acc, g.Element().Scale(points[i], scalars[i]))
	}
	return acc
}
