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

package util

import (
	"math/big"

	"github.com/takakv/confbal/group"
)

/*
Decompose receives as input a non-negative bigint x and outputs l digits in base
2^width such that x = sum(xi.2^(width.i)), least significant digit first.
Digits beyond l are discarded, so callers must bound x beforehand.
*/
func Decompose(x *big.Int, width uint, l int) []uint64 {
	result := make([]uint64, l)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))
	rest := new(big.Int).Set(x)
	digit := new(big.Int)

	for i := 0; i < l; i++ {
		result[i] = digit.And(rest, mask).Uint64()
		rest.Rsh(rest, width)
	}

	return result
}

// Compose is the inverse of Decompose. Digits may exceed 2^width.
func Compose(digits []uint64, width uint) *big.Int {
	result := new(big.Int)
	for i := len(digits) - 1; i >= 0; i-- {
		result.Lsh(result, width)
		result.Add(result, new(big.Int).SetUint64(digits[i]))
	}
	return result
}

// PedersenCommit creates a commitment to secret x using randomness r in group GP.
func PedersenCommit(x, r *big.Int, h group.Element, GP group.Group) group.Element {
	C := GP.Element().BaseScale(x)
	Hr := GP.Element().Scale(h, r)
	C = GP.Element().Add(C, Hr)
	return C
}

// PowersOfTwo returns 2^(width.i) mod n for i in [0, l).
func PowersOfTwo(width uint, l int, n *big.Int) []*big.Int {
	result := make([]*big.Int, l)
	for i := 0; i < l; i++ {
		result[i] = new(big.Int).Lsh(big.NewInt(1), width*uint(i))
		result[i].Mod(result[i], n)
	}
	return result
}
