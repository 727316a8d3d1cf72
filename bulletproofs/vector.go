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

package bulletproofs

import (
	"math/big"

	"github.com/ing-bank/zkrp/util/bn"
	"github.com/takakv/confbal/group"
)

/*
innerProduct computes <a, b> mod n.
*/
func innerProduct(a, b []*big.Int, n *big.Int) *big.Int {
	result := big.NewInt(0)
	for i := range a {
		result.Add(result, bn.Multiply(a[i], b[i]))
	}
	return bn.Mod(result, n)
}

/*
vectorAdd computes a[i] + b[i] mod n for each i.
*/
func vectorAdd(a, b []*big.Int, n *big.Int) []*big.Int {
	result := make([]*big.Int, len(a))
	for i := range a {
		result[i] = bn.Mod(new(big.Int).Add(a[i], b[i]), n)
	}
	return result
}

/*
vectorAddScalar computes a[i] + c mod n for each i.
*/
func vectorAddScalar(a []*big.Int, c, n *big.Int) []*big.Int {
	result := make([]*big.Int, len(a))
	for i := range a {
		result[i] = bn.Mod(new(big.Int).Add(a[i], c), n)
	}
	return result
}

/*
vectorScalarMul computes a[i] * c mod n for each i.
*/
func vectorScalarMul(a []*big.Int, c, n *big.Int) []*big.Int {
	result := make([]*big.Int, len(a))
	for i := range a {
		result[i] = bn.Mod(bn.Multiply(a[i], c), n)
	}
	return result
}

/*
hadamard computes the entry-wise product a[i] * b[i] mod n.
*/
func hadamard(a, b []*big.Int, n *big.Int) []*big.Int {
	result := make([]*big.Int, len(a))
	for i := range a {
		result[i] = bn.Mod(bn.Multiply(a[i], b[i]), n)
	}
	return result
}

/*
powersOf returns (1, x, x^2, ..., x^(l-1)) mod n.
*/
func powersOf(x *big.Int, l int, n *big.Int) []*big.Int {
	result := make([]*big.Int, l)
	current := big.NewInt(1)
	for i := 0; i < l; i++ {
		result[i] = current
		current = bn.Mod(bn.Multiply(current, x), n)
	}
	return result
}

/*
zTwoVector returns the aggregation vector with entry j.bits+i set to
z^(2+j) . 2^i, one block of bits entries per aggregated value.
*/
func zTwoVector(z *big.Int, bits, m int, n *big.Int) []*big.Int {
	result := make([]*big.Int, bits*m)
	twoPow := powersOf(big.NewInt(2), bits, n)
	zp := bn.Mod(bn.Multiply(z, z), n)
	for j := 0; j < m; j++ {
		for i := 0; i < bits; i++ {
			result[j*bits+i] = bn.Mod(bn.Multiply(zp, twoPow[i]), n)
		}
		zp = bn.Mod(bn.Multiply(zp, z), n)
	}
	return result
}

/*
padZeros extends a with zeros to length l.
*/
func padZeros(a []*big.Int, l int) []*big.Int {
	result := make([]*big.Int, l)
	copy(result, a)
	for i := len(a); i < l; i++ {
		result[i] = big.NewInt(0)
	}
	return result
}

/*
randomVector samples l random scalars.
*/
func randomVector(GP group.Group, l int) ([]*big.Int, error) {
	result := make([]*big.Int, l)
	for i := range result {
		s, err := GP.RandomScalar()
		if err != nil {
			return nil, err
		}
		result[i] = s
	}
	return result, nil
}

/*
primeGenerators computes [h_0, h_1^(y^-1), ..., h_(n-1)^(y^-(n-1))]. After
this switch A is a vector commitment to (aL, aR . y^n) and S one to
(sL, sR . y^n).
*/
func primeGenerators(Hh []group.Element, y *big.Int, GP group.Group) []group.Element {
	hp := make([]group.Element, len(Hh))
	yInv := bn.ModInverse(y, GP.N())
	yExp := big.NewInt(1)
	for i := range Hh {
		hp[i] = GP.Element().Scale(Hh[i], yExp)
		yExp = bn.Mod(bn.Multiply(yExp, yInv), GP.N())
	}
	return hp
}

/*
commitVectors computes H^alpha . g^aL . h^aR.
*/
func commitVectors(params *Params, alpha *big.Int, aL, aR []*big.Int) group.Element {
	GP := params.GP
	R := GP.Element().Scale(params.H, alpha)
	R.Add(R, group.MultiScale(GP, params.Gg[:len(aL)], aL))
	R.Add(R, group.MultiScale(GP, params.Hh[:len(aR)], aR))
	return R
}
