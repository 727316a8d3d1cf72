package bulletproofs

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

const maxRounds = 32

// MarshalBinary encodes the proof as A || S || T1 || T2 || taux || mu || t
// || rounds || (L || R)* || a || b.
func (proof *MultiBulletProof) MarshalBinary(GP group.Group) ([]byte, error) {
	ipp := proof.InnerProductProof
	if ipp == nil || len(ipp.Ls) != len(ipp.Rs) || len(ipp.Ls) > maxRounds {
		return nil, errors.Wrap(ErrMalformedProof, "inner product rounds")
	}

	var out []byte
	for _, e := range []group.Element{proof.A, proof.S, proof.T1, proof.T2} {
		out = append(out, e.Bytes()...)
	}
	for _, s := range []*big.Int{proof.Taux, proof.Mu, proof.Tprime} {
		out = append(out, group.ScalarBytes(GP, s)...)
	}
	out = append(out, byte(len(ipp.Ls)))
	for i := range ipp.Ls {
		out = append(out, ipp.Ls[i].Bytes()...)
		out = append(out, ipp.Rs[i].Bytes()...)
	}
	out = append(out, group.ScalarBytes(GP, ipp.A)...)
	out = append(out, group.ScalarBytes(GP, ipp.B)...)
	return out, nil
}

type proofReader struct {
	GP  group.Group
	b   []byte
	err error
}

func (r *proofReader) element() group.Element {
	if r.err != nil {
		return nil
	}
	l := r.GP.ElementLen()
	if len(r.b) < l {
		r.err = errors.Wrap(ErrMalformedProof, "truncated")
		return nil
	}
	e, err := group.ElementFromBytes(r.GP, r.b[:l])
	r.b = r.b[l:]
	r.err = err
	return e
}

func (r *proofReader) scalar() *big.Int {
	if r.err != nil {
		return nil
	}
	l := r.GP.ScalarLen()
	if len(r.b) < l {
		r.err = errors.Wrap(ErrMalformedProof, "truncated")
		return nil
	}
	s, err := group.ScalarFromBytes(r.GP, r.b[:l])
	r.b = r.b[l:]
	r.err = err
	return s
}

// UnmarshalBinary decodes the output of MarshalBinary.
func UnmarshalBinary(GP group.Group, b []byte) (*MultiBulletProof, error) {
	r := &proofReader{GP: GP, b: b}
	proof := &MultiBulletProof{
		A:  r.element(),
		S:  r.element(),
		T1: r.element(),
		T2: r.element(),
	}
	proof.Taux = r.scalar()
	proof.Mu = r.scalar()
	proof.Tprime = r.scalar()
	if r.err != nil {
		return nil, r.err
	}

	if len(r.b) == 0 {
		return nil, errors.Wrap(ErrMalformedProof, "truncated")
	}
	rounds := int(r.b[0])
	r.b = r.b[1:]
	if rounds > maxRounds {
		return nil, errors.Wrapf(ErrMalformedProof, "%d inner product rounds", rounds)
	}

	ipp := &InnerProductProof{
		Ls: make([]group.Element, rounds),
		Rs: make([]group.Element, rounds),
	}
	for i := 0; i < rounds; i++ {
		ipp.Ls[i] = r.element()
		ipp.Rs[i] = r.element()
	}
	ipp.A = r.scalar()
	ipp.B = r.scalar()
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		return nil, errors.Wrapf(ErrMalformedProof, "%d trailing bytes", len(r.b))
	}

	proof.InnerProductProof = ipp
	return proof, nil
}
