/*
 * Copyright (C) 2019 ING BANK N.V.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

/*
Package bulletproofs implements aggregated range proofs from the paper:
Bulletproofs: Short Proofs for Confidential Transactions and More
Benedikt Bunz, Jonathan Bootle, Dan Boneh, Andrew Poelstra, Pieter Wuille and Greg Maxwell
IEEE S&P 2018

Values are committed as V = v.G + gamma.H where G is the group generator and H
is derived from SeedH, so the same commitments can be linked to ElGamal
ciphertexts by a sigma proof.
*/
package bulletproofs

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

const (
	SeedH = "BulletproofsDoesNotNeedTrustedSetupH"
	SeedU = "BulletproofsDoesNotNeedTrustedSetupU"

	// MaxBits is the widest range a single value can be proven in.
	MaxBits = 64
)

var (
	// ErrValueOutOfRange is returned when asked to prove a value that does not
	// fit the requested bit length.
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrMalformedProof is returned for proofs whose shape does not match the
	// statement.
	ErrMalformedProof = errors.New("malformed range proof")
)

/*
Params stores the generators of the proof system. Gg and Hh hold Capacity
generators each, enough for any aggregate of up to Capacity bits.
*/
type Params struct {
	GP group.Group
	// G is the group generator, the value base of commitments.
	G group.Element
	// H is the blinding base, computed using MapToGroup so that
	// nobody knows its discrete logarithm with respect to G.
	H group.Element
	// U is the base of the inner product term.
	U group.Element
	// Gg and Hh are the vector commitment generators.
	Gg []group.Element
	Hh []group.Element
}

/*
Setup derives the generators for aggregates of up to capacity bits. The
capacity is rounded up to a power of two.
*/
func Setup(GP group.Group, capacity int) (*Params, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("capacity %d must be positive", capacity)
	}
	capacity = nextPowerOfTwo(capacity)

	params := &Params{GP: GP, G: GP.Generator()}

	var err error
	if params.H, err = GP.Element().MapToGroup(SeedH); err != nil {
		return nil, err
	}
	if params.U, err = GP.Element().MapToGroup(SeedU); err != nil {
		return nil, err
	}

	params.Gg = make([]group.Element, capacity)
	params.Hh = make([]group.Element, capacity)
	for i := 0; i < capacity; i++ {
		if params.Gg[i], err = GP.Element().MapToGroup(SeedH + "g" + fmt.Sprint(i)); err != nil {
			return nil, err
		}
		if params.Hh[i], err = GP.Element().MapToGroup(SeedH + "h" + fmt.Sprint(i)); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// Capacity is the largest aggregate bit length the generators support.
func (params *Params) Capacity() int {
	return len(params.Gg)
}

// Commit returns v.G + gamma.H.
func (params *Params) Commit(v uint64, gamma *big.Int) group.Element {
	C := params.GP.Element().BaseScale(new(big.Int).SetUint64(v))
	return C.Add(C, params.GP.Element().Scale(params.H, gamma))
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
