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
	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/transcript"
	"github.com/takakv/confbal/util"
)

const transcriptLabel = "confbal-bulletproofs-v1"

/*
MultiBulletProof is the aggregated proof that every committed value lies in
[0, 2^bits).
*/
type MultiBulletProof struct {
	A                 group.Element
	S                 group.Element
	T1                group.Element
	T2                group.Element
	Taux              *big.Int
	Mu                *big.Int
	Tprime            *big.Int
	InnerProductProof *InnerProductProof
}

/*
statementTranscript binds the bit length and every commitment before any
prover message.
*/
func statementTranscript(bits int, Vs []group.Element) *transcript.Transcript {
	tr := transcript.New(transcriptLabel)
	tr.AppendUint64("n", uint64(bits))
	tr.AppendElements("V", Vs)
	return tr
}

func checkShape(params *Params, m, bits int) (int, error) {
	if m == 0 {
		return 0, errors.Wrap(ErrMalformedProof, "no values")
	}
	if bits <= 0 || bits > MaxBits {
		return 0, errors.Wrapf(ErrMalformedProof, "bit length %d", bits)
	}
	size := nextPowerOfTwo(bits * m)
	if size > params.Capacity() {
		return 0, errors.Wrapf(ErrMalformedProof, "%d bits exceed generator capacity %d", bits*m, params.Capacity())
	}
	return size, nil
}

/*
MultiProve computes the aggregated range proof for values, committed with
the given blinding factors. It returns the proof and the commitments
V_j = v_j.G + gammas_j.H.
The documentation and comments are based on the ePrint version of the Bulletproofs paper:
https://eprint.iacr.org/2017/1066.pdf
*/
func MultiProve(params *Params, values []uint64, gammas []*big.Int, bits int) (*MultiBulletProof, []group.Element, error) {
	GP := params.GP
	mod := GP.N()
	m := len(values)

	size, err := checkShape(params, m, bits)
	if err != nil {
		return nil, nil, err
	}
	if len(gammas) != m {
		return nil, nil, errors.Errorf("%d blinding factors for %d values", len(gammas), m)
	}
	nm := bits * m

	// ////////////////////////////////////////////////////////////////////////////
	// First phase: page 19                                                      //
	// ////////////////////////////////////////////////////////////////////////////

	Vs := make([]group.Element, m)
	aL := make([]*big.Int, nm)
	aR := make([]*big.Int, nm)
	for j, v := range values {
		if bits < 64 && v>>uint(bits) != 0 {
			return nil, nil, errors.Wrapf(ErrValueOutOfRange, "%d does not fit in %d bits", v, bits)
		}
		Vs[j] = params.Commit(v, gammas[j])

		for i := 0; i < bits; i++ {
			bit := int64((v >> uint(i)) & 1)
			// aL holds the bits, aR = aL - 1^n // (41) & (42)
			aL[j*bits+i] = big.NewInt(bit)
			aR[j*bits+i] = bn.Mod(big.NewInt(bit-1), mod)
		}
	}

	tr := statementTranscript(bits, Vs)

	alpha, err := GP.RandomScalar() // (43)
	if err != nil {
		return nil, nil, err
	}
	A := commitVectors(params, alpha, aL, aR) // (44)

	sL, err := randomVector(GP, nm) // (45)
	if err != nil {
		return nil, nil, err
	}
	sR, err := randomVector(GP, nm)
	if err != nil {
		return nil, nil, err
	}
	rho, err := GP.RandomScalar() // (46)
	if err != nil {
		return nil, nil, err
	}
	S := commitVectors(params, rho, sL, sR) // (47)

	// Fiat-Shamir heuristic to compute challenges y and z.
	tr.AppendElement("A", A) // (48)
	tr.AppendElement("S", S)
	y := tr.Challenge("y", GP) // (49)
	z := tr.Challenge("z", GP) // (50)

	// ////////////////////////////////////////////////////////////////////////////
	// Second phase: page 20                                                     //
	// ////////////////////////////////////////////////////////////////////////////

	// yPow = (y^0, y^1, ..., y^(nm-1))
	// l0 = aL - z
	// l1 = sL
	// r0 = (yPow ∘ (aR + z)) + zt, zt[j.n+i] = z^(2+j) . 2^i
	// r1 = sR ∘ yPow
	// t1 = < l1, r0 > + < l0, r1 >
	// t2 = < l1, r1 >
	yPow := powersOf(y, nm, mod)
	zt := zTwoVector(z, bits, m, mod)

	l0 := vectorAddScalar(aL, new(big.Int).Neg(z), mod)
	l1 := sL
	aRz := vectorAddScalar(aR, z, mod)
	r0 := vectorAdd(hadamard(yPow, aRz, mod), zt, mod)
	r1 := hadamard(yPow, sR, mod)

	t1 := bn.Mod(new(big.Int).Add(innerProduct(l1, r0, mod), innerProduct(l0, r1, mod)), mod)
	t2 := innerProduct(l1, r1, mod)

	tau1, err := GP.RandomScalar() // (52)
	if err != nil {
		return nil, nil, err
	}
	tau2, err := GP.RandomScalar()
	if err != nil {
		return nil, nil, err
	}
	T1 := util.PedersenCommit(t1, tau1, params.H, GP) // (53)
	T2 := util.PedersenCommit(t2, tau2, params.H, GP)

	// Fiat-Shamir heuristic to compute 'random' challenge x
	tr.AppendElement("T1", T1) // (54)
	tr.AppendElement("T2", T2)
	x := tr.Challenge("x", GP) // (55) & (56)

	// ////////////////////////////////////////////////////////////////////////////
	// Third phase: page 20                                                      //
	// ////////////////////////////////////////////////////////////////////////////

	bl := vectorAdd(l0, vectorScalarMul(l1, x, mod), mod) // (58)
	br := vectorAdd(r0, vectorScalarMul(r1, x, mod), mod) // (59)
	th := innerProduct(bl, br, mod)                       // (60)

	// tau_x = tau2 . x^2 + tau1 . x + sum_j z^(2+j) . gamma_j // (61)
	tauX := bn.Multiply(tau2, bn.Multiply(x, x))
	tauX.Add(tauX, bn.Multiply(tau1, x))
	zp := bn.Mod(bn.Multiply(z, z), mod)
	for j := 0; j < m; j++ {
		tauX.Add(tauX, bn.Multiply(zp, gammas[j]))
		zp = bn.Mod(bn.Multiply(zp, z), mod)
	}
	tauX = bn.Mod(tauX, mod)

	// mu = alpha + rho . x // (62)
	mu := bn.Mod(new(big.Int).Add(alpha, bn.Multiply(rho, x)), mod)

	// ////////////////////////////////////////////////////////////////////////////
	// Logarithmic phase: Section 4.2                                            //
	// ////////////////////////////////////////////////////////////////////////////

	tr.AppendScalar("taux", GP, tauX)
	tr.AppendScalar("mu", GP, mu)
	tr.AppendScalar("t", GP, th)
	w := tr.Challenge("w", GP)
	Q := GP.Element().Scale(params.U, w)

	// h' = h^(y^(-n)), over the padded length.
	hp := primeGenerators(params.Hh[:size], y, GP)

	ipp, err := proveInnerProduct(tr, GP, params.Gg[:size], hp, Q, padZeros(bl, size), padZeros(br, size))
	if err != nil {
		return nil, nil, err
	}

	proof := &MultiBulletProof{
		A:                 A,
		S:                 S,
		T1:                T1,
		T2:                T2,
		Taux:              tauX,
		Mu:                mu,
		Tprime:            th,
		InnerProductProof: ipp,
	}
	return proof, Vs, nil
}

/*
Verify returns true if and only if the proof shows that every commitment in
Vs opens to a value in [0, 2^bits).
*/
func (proof *MultiBulletProof) Verify(params *Params, Vs []group.Element, bits int) (bool, error) {
	GP := params.GP
	mod := GP.N()
	m := len(Vs)

	size, err := checkShape(params, m, bits)
	if err != nil {
		return false, err
	}
	if proof.A == nil || proof.S == nil || proof.T1 == nil || proof.T2 == nil ||
		proof.InnerProductProof == nil || proof.Taux == nil || proof.Mu == nil || proof.Tprime == nil {
		return false, errors.Wrap(ErrMalformedProof, "missing components")
	}
	nm := bits * m

	// Recover x, y, z and w using Fiat-Shamir heuristic
	tr := statementTranscript(bits, Vs)
	tr.AppendElement("A", proof.A)
	tr.AppendElement("S", proof.S)
	y := tr.Challenge("y", GP)
	z := tr.Challenge("z", GP)
	tr.AppendElement("T1", proof.T1)
	tr.AppendElement("T2", proof.T2)
	x := tr.Challenge("x", GP)
	tr.AppendScalar("taux", GP, proof.Taux)
	tr.AppendScalar("mu", GP, proof.Mu)
	tr.AppendScalar("t", GP, proof.Tprime)
	w := tr.Challenge("w", GP)
	Q := GP.Element().Scale(params.U, w)

	zSquared := bn.Mod(bn.Multiply(z, z), mod)
	xSquared := bn.Mod(bn.Multiply(x, x), mod)

	// ////////////////////////////////////////////////////////////////////////////
	// Check that tprime  = t(x) = t0 + t1x + t2x^2  ----------  Condition (65) //
	// ////////////////////////////////////////////////////////////////////////////

	lhs := util.PedersenCommit(proof.Tprime, proof.Taux, params.H, GP)

	rhs := GP.Identity()
	zp := zSquared
	for j := 0; j < m; j++ {
		rhs.Add(rhs, GP.Element().Scale(Vs[j], zp))
		zp = bn.Mod(bn.Multiply(zp, z), mod)
	}
	rhs.Add(rhs, GP.Element().BaseScale(delta(y, z, bits, m, mod)))
	rhs.Add(rhs, GP.Element().Scale(proof.T1, x))
	rhs.Add(rhs, GP.Element().Scale(proof.T2, xSquared))

	if !rhs.IsEqual(lhs) {
		return false, nil
	}

	// ////////////////////////////////////////////////////////////////////////////
	// Conditions (66) and (67), folded into the inner product statement        //
	// P = A . S^x . g^(-z) . (h')^(z . y^nm + zt) . h^(-mu) . Q^t              //
	// ////////////////////////////////////////////////////////////////////////////

	hp := primeGenerators(params.Hh[:size], y, GP)

	P := GP.Element().Add(proof.A, GP.Element().Scale(proof.S, x))
	P.Subtract(P, GP.Element().Scale(params.H, proof.Mu))

	mz := new(big.Int).Sub(mod, z)
	gExp := make([]*big.Int, nm)
	for i := range gExp {
		gExp[i] = mz
	}
	P.Add(P, group.MultiScale(GP, params.Gg[:nm], gExp))

	yPow := powersOf(y, nm, mod)
	hExp := vectorAdd(vectorScalarMul(yPow, z, mod), zTwoVector(z, bits, m, mod), mod)
	P.Add(P, group.MultiScale(GP, hp[:nm], hExp))
	P.Add(P, GP.Element().Scale(Q, proof.Tprime))

	// Verify Inner Product Proof ################################################
	return verifyInnerProduct(tr, GP, params.Gg[:size], hp, Q, P, proof.InnerProductProof), nil
}

// delta(y,z) = (z - z^2) . < 1^nm, y^nm > - sum_{j=0}^{m-1} z^(j+3) . < 1^n, 2^n >
func delta(y, z *big.Int, bits, m int, mod *big.Int) *big.Int {
	zSquared := bn.Mod(bn.Multiply(z, z), mod)

	// (z-z^2)
	t1 := bn.Mod(new(big.Int).Sub(z, zSquared), mod)

	// < 1^nm, y^nm >
	t2 := big.NewInt(0)
	for _, yi := range powersOf(y, bits*m, mod) {
		t2.Add(t2, yi)
	}

	// < 1^n, 2^n > = 2^n - 1
	sp12 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(bits)), big.NewInt(1))

	// sum_{j=0}^{m-1} z^(j+3) . < 1^n, 2^n >
	t3 := big.NewInt(0)
	zp := bn.Mod(bn.Multiply(zSquared, z), mod)
	for j := 0; j < m; j++ {
		t3.Add(t3, bn.Multiply(zp, sp12))
		zp = bn.Mod(bn.Multiply(zp, z), mod)
	}

	result := bn.Multiply(bn.Mod(t2, mod), t1)
	result.Sub(result, t3)
	return bn.Mod(result, mod)
}
