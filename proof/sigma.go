package proof

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/transcript"
)

// Sigma is a non-interactive proof of knowledge of a witness for a linear
// relation: one commitment per equation, one response per witness.
type Sigma struct {
	Commitments []group.Element `json:"commitments"`
	Responses   []group.Scalar  `json:"responses"`
}

type term struct {
	witness int
	base    group.Element
}

// equation is lhs = sum(x[t.witness] * t.base).
type equation struct {
	lhs   group.Element
	terms []term
}

type linearRelation struct {
	g         group.Group
	label     string
	witnesses int
	eqs       []equation
}

func newRelation(g group.Group, label string, witnesses int) *linearRelation {
	return &linearRelation{g: g, label: label, witnesses: witnesses}
}

func (r *linearRelation) add(lhs group.Element, terms ...term) {
	r.eqs = append(r.eqs, equation{lhs: lhs, terms: terms})
}

func (r *linearRelation) eval(eq equation, x []*big.Int) group.Element {
	acc := r.g.Identity()
	for _, t := range eq.terms {
		acc.Add(acc, r.g.Element().Scale(t.base, x[t.witness]))
	}
	return acc
}

// statement binds the whole relation and the caller's context.
func (r *linearRelation) statement(ctx []byte) *transcript.Transcript {
	tr := transcript.New(r.label)
	tr.AppendMessage("context", ctx)
	tr.AppendUint64("witnesses", uint64(r.witnesses))
	tr.AppendUint64("equations", uint64(len(r.eqs)))
	for _, eq := range r.eqs {
		tr.AppendElement("lhs", eq.lhs)
		tr.AppendUint64("terms", uint64(len(eq.terms)))
		for _, t := range eq.terms {
			tr.AppendUint64("witness", uint64(t.witness))
			tr.AppendElement("base", t.base)
		}
	}
	return tr
}

func (r *linearRelation) prove(x []*big.Int, ctx []byte) (*Sigma, error) {
	if len(x) != r.witnesses {
		return nil, errors.Errorf("%d witnesses for a relation over %d", len(x), r.witnesses)
	}
	for i, eq := range r.eqs {
		if !r.eval(eq, x).IsEqual(eq.lhs) {
			return nil, errors.Wrapf(ErrStateMismatch, "equation %d does not hold", i)
		}
	}

	nonces := make([]*big.Int, r.witnesses)
	for i := range nonces {
		k, err := r.g.RandomScalar()
		if err != nil {
			return nil, err
		}
		nonces[i] = k
	}

	commitments := make([]group.Element, len(r.eqs))
	for i, eq := range r.eqs {
		commitments[i] = r.eval(eq, nonces)
	}

	tr := r.statement(ctx)
	tr.AppendElements("commitments", commitments)
	e := tr.Challenge("e", r.g)

	responses := make([]group.Scalar, r.witnesses)
	for i := range responses {
		z := new(big.Int).Mul(e, x[i])
		z.Add(z, nonces[i])
		responses[i] = group.Scalar{Int: z.Mod(z, r.g.N())}
	}
	return &Sigma{Commitments: commitments, Responses: responses}, nil
}

func (r *linearRelation) verify(proof *Sigma, ctx []byte) error {
	if proof == nil || len(proof.Commitments) != len(r.eqs) || len(proof.Responses) != r.witnesses {
		return errors.Wrap(ErrInvalidProof, "sigma proof shape")
	}
	z := make([]*big.Int, r.witnesses)
	for i, s := range proof.Responses {
		if s.Int == nil || s.Sign() < 0 || s.Cmp(r.g.N()) >= 0 {
			return errors.Wrapf(ErrInvalidProof, "response %d not a reduced scalar", i)
		}
		z[i] = s.Int
	}
	for i, c := range proof.Commitments {
		if c == nil {
			return errors.Wrapf(ErrInvalidProof, "missing commitment %d", i)
		}
	}

	tr := r.statement(ctx)
	tr.AppendElements("commitments", proof.Commitments)
	e := tr.Challenge("e", r.g)

	for i, eq := range r.eqs {
		rhs := r.g.Element().Scale(eq.lhs, e)
		rhs.Add(rhs, proof.Commitments[i])
		if !r.eval(eq, z).IsEqual(rhs) {
			return errors.Wrapf(ErrInvalidProof, "%s: equation %d", r.label, i)
		}
	}
	return nil
}
