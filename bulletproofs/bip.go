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
	"math/bits"

	"github.com/ing-bank/zkrp/util/bn"
	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/transcript"
)

/*
InnerProductProof contains the elements used to verify the Inner Product Proof:
one (L, R) pair per halving round and the final folded scalars.
*/
type InnerProductProof struct {
	Ls []group.Element
	Rs []group.Element
	A  *big.Int
	B  *big.Int
}

/*
proveInnerProduct proves knowledge of a, b with P = g^a.h^b.Q^<a,b>. The
length of a must be a power of two; challenges come from tr.
*/
func proveInnerProduct(tr *transcript.Transcript, GP group.Group, g, h []group.Element, Q group.Element,
	a, b []*big.Int) (*InnerProductProof, error) {
	n := len(a)
	if n == 0 || n&(n-1) != 0 || len(b) != n || len(g) != n || len(h) != n {
		return nil, errors.Errorf("inner product of length %d is not a power of two", n)
	}
	mod := GP.N()

	a = append([]*big.Int(nil), a...)
	b = append([]*big.Int(nil), b...)
	g = append([]group.Element(nil), g...)
	h = append([]group.Element(nil), h...)

	proof := &InnerProductProof{}
	for n > 1 {
		nprime := n / 2 // (20)

		cL := innerProduct(a[:nprime], b[nprime:], mod) // (21)
		cR := innerProduct(a[nprime:], b[:nprime], mod) // (22)

		// L = g[n':]^(a[:n']).h[:n']^(b[n':]).Q^cL                        // (23)
		L := group.MultiScale(GP, g[nprime:], a[:nprime])
		L.Add(L, group.MultiScale(GP, h[:nprime], b[nprime:]))
		L.Add(L, GP.Element().Scale(Q, cL))

		// R = g[:n']^(a[n':]).h[n':]^(b[:n']).Q^cR                        // (24)
		R := group.MultiScale(GP, g[:nprime], a[nprime:])
		R.Add(R, group.MultiScale(GP, h[nprime:], b[:nprime]))
		R.Add(R, GP.Element().Scale(Q, cR))

		proof.Ls = append(proof.Ls, L)
		proof.Rs = append(proof.Rs, R)

		tr.AppendElement("L", L) // (26)
		tr.AppendElement("R", R)
		x := tr.Challenge("u", GP)
		xinv := bn.ModInverse(x, mod)

		for i := 0; i < nprime; i++ {
			// a' = a[:n'].x + a[n':].x^(-1)                               // (33)
			a[i] = bn.Mod(new(big.Int).Add(bn.Multiply(a[i], x), bn.Multiply(a[nprime+i], xinv)), mod)
			// b' = b[:n'].x^(-1) + b[n':].x                               // (34)
			b[i] = bn.Mod(new(big.Int).Add(bn.Multiply(b[i], xinv), bn.Multiply(b[nprime+i], x)), mod)
			// g' = g[:n']^(x^-1) * g[n':]^(x)                             // (29)
			g[i] = GP.Element().Add(GP.Element().Scale(g[i], xinv), GP.Element().Scale(g[nprime+i], x))
			// h' = h[:n']^(x) * h[n':]^(x^-1)                             // (30)
			h[i] = GP.Element().Add(GP.Element().Scale(h[i], x), GP.Element().Scale(h[nprime+i], xinv))
		}
		a, b, g, h = a[:nprime], b[:nprime], g[:nprime], h[:nprime]
		n = nprime
	}

	proof.A = a[0]
	proof.B = b[0]
	return proof, nil
}

/*
verifyInnerProduct checks the proof against commitment P = g^a.h^b.Q^<a,b>.
*/
func verifyInnerProduct(tr *transcript.Transcript, GP group.Group, g, h []group.Element, Q, P group.Element,
	proof *InnerProductProof) bool {
	n := len(g)
	rounds := bits.Len(uint(n)) - 1
	if n == 0 || n&(n-1) != 0 || len(h) != n {
		return false
	}
	if len(proof.Ls) != rounds || len(proof.Rs) != rounds || proof.A == nil || proof.B == nil {
		return false
	}
	mod := GP.N()

	g = append([]group.Element(nil), g...)
	h = append([]group.Element(nil), h...)
	Pprime := GP.Element().Set(P)

	for r := 0; r < rounds; r++ {
		nprime := n / 2

		tr.AppendElement("L", proof.Ls[r])
		tr.AppendElement("R", proof.Rs[r])
		x := tr.Challenge("u", GP)
		xinv := bn.ModInverse(x, mod)

		for i := 0; i < nprime; i++ {
			g[i] = GP.Element().Add(GP.Element().Scale(g[i], xinv), GP.Element().Scale(g[nprime+i], x))
			h[i] = GP.Element().Add(GP.Element().Scale(h[i], x), GP.Element().Scale(h[nprime+i], xinv))
		}
		g, h = g[:nprime], h[:nprime]
		n = nprime

		// P' = L^(x^2).P.R^(x^-2)                                         // (31)
		x2 := bn.Mod(bn.Multiply(x, x), mod)
		x2inv := bn.ModInverse(x2, mod)
		Pprime.Add(Pprime, GP.Element().Scale(proof.Ls[r], x2))
		Pprime.Add(Pprime, GP.Element().Scale(proof.Rs[r], x2inv))
	}

	// Check P = g^a.h^b.Q^(a.b)                                           // (16)
	ab := bn.Mod(bn.Multiply(proof.A, proof.B), mod)
	rhs := GP.Element().Scale(g[0], proof.A)
	rhs.Add(rhs, GP.Element().Scale(h[0], proof.B))
	rhs.Add(rhs, GP.Element().Scale(Q, ab))

	return rhs.IsEqual(Pprime) // (17)
}
