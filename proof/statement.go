package proof

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/rangeproof"
)

// layout assigns witness indices. With n chunks the order is
// s | v'_0..v'_{n-1} | r'_* | gamma_* followed by either the new decryption
// key (rotation) or a_* | rho_* | delta_* (transfer).
type layout struct {
	n        int
	rotate   bool
	transfer bool
}

func (l layout) sk() int { return 0 }
func (l layout) value(i int) int { return 1 + i }
func (l layout) rand(i int) int { return 1 + l.n + i }
func (l layout) gamma(i int) int { return 1 + 2*l.n + i }
func (l layout) newKey() int { return 1 + 3*l.n }
func (l layout) amount(j int) int { return 1 + 3*l.n + j }
func (l layout) rho(j int) int { return 1 + 4*l.n + j }
func (l layout) amountGamma(j int) int { return 1 + 5*l.n + j }

func (l layout) size() int {
	switch {
	case l.transfer:
		return 1 + 6*l.n
	case l.rotate:
		return 2 + 3*l.n
	default:
		return 1 + 3*l.n
	}
}

// transferStatement is the part of a transfer statement about the amount.
type transferStatement struct {
	recipient   group.Element
	auditors    []group.Element
	amount      *chunk.Amount
	audited     []*chunk.Amount
	commitments []group.Element
}

// statement is the public input of every authorizer.
type statement struct {
	label      string
	key        group.Element
	balance    *chunk.Amount
	delta      *big.Int
	newKey     group.Element
	newBalance *chunk.Amount
	// commitments are the range commitments to the new balance chunks.
	commitments []group.Element
	rotate      bool
	transfer    *transferStatement
}

func (st *statement) layout(n int) layout {
	return layout{n: n, rotate: st.rotate, transfer: st.transfer != nil}
}

func checkAmount(name string, a *chunk.Amount, n int) error {
	if a == nil || a.Len() != n {
		return errors.Wrapf(ErrInvalidProof, "%s must have %d chunks", name, n)
	}
	for i, ct := range a.Chunks {
		if ct == nil || ct.C == nil || ct.D == nil {
			return errors.Wrapf(ErrInvalidProof, "%s chunk %d incomplete", name, i)
		}
	}
	return nil
}

func checkElements(name string, es []group.Element, n int) error {
	if len(es) != n {
		return errors.Wrapf(ErrInvalidProof, "%d %s, want %d", len(es), name, n)
	}
	for i, e := range es {
		if e == nil {
			return errors.Wrapf(ErrInvalidProof, "missing %s %d", name, i)
		}
	}
	return nil
}

// relation turns the statement into the linear relation both sides prove
// and verify. Shape errors are reported as ErrInvalidProof.
func (st *statement) relation(params *Params) (*linearRelation, error) {
	g := params.Group
	n := params.Chunks.Count
	if st.key == nil || st.newKey == nil {
		return nil, errors.Wrap(ErrInvalidProof, "missing encryption key")
	}
	if err := checkAmount("balance", st.balance, n); err != nil {
		return nil, err
	}
	if err := checkAmount("new balance", st.newBalance, n); err != nil {
		return nil, err
	}
	if err := checkElements("range commitments", st.commitments, n); err != nil {
		return nil, err
	}

	l := st.layout(n)
	rel := newRelation(g, st.label, l.size())
	G := g.Generator()
	weights := params.Chunks.Weights(g.N())
	weightedG := make([]group.Element, n)
	for i, w := range weights {
		weightedG[i] = g.Element().BaseScale(w)
	}

	rel.add(st.key, term{l.sk(), G})

	sum := st.balance.Weighted(g, weights)
	lhs := g.Element().Set(sum.C)
	if st.delta != nil {
		lhs.Subtract(lhs, g.Element().BaseScale(st.delta))
	}
	terms := []term{{l.sk(), sum.D}}
	for i := 0; i < n; i++ {
		terms = append(terms, term{l.value(i), weightedG[i]})
	}
	if st.transfer != nil {
		for j := 0; j < n; j++ {
			terms = append(terms, term{l.amount(j), weightedG[j]})
		}
	}
	rel.add(lhs, terms...)

	for i, ct := range st.newBalance.Chunks {
		rel.add(ct.D, term{l.rand(i), G})
		rel.add(ct.C, term{l.value(i), G}, term{l.rand(i), st.newKey})
		rel.add(st.commitments[i], term{l.value(i), G}, term{l.gamma(i), params.H})
	}

	if st.rotate {
		rel.add(st.newKey, term{l.newKey(), G})
	}

	if tr := st.transfer; tr != nil {
		if tr.recipient == nil {
			return nil, errors.Wrap(ErrInvalidProof, "missing recipient key")
		}
		if err := checkAmount("amount", tr.amount, n); err != nil {
			return nil, err
		}
		if err := checkElements("amount commitments", tr.commitments, n); err != nil {
			return nil, err
		}
		if err := checkElements("auditor keys", tr.auditors, len(tr.auditors)); err != nil {
			return nil, err
		}
		if len(tr.audited) != len(tr.auditors) {
			return nil, errors.Wrapf(ErrInvalidProof, "%d auditor amounts for %d auditors", len(tr.audited), len(tr.auditors))
		}
		for t, a := range tr.audited {
			if err := checkAmount("auditor amount", a, n); err != nil {
				return nil, err
			}
			for j, ct := range a.Chunks {
				if !ct.D.IsEqual(tr.amount.Chunks[j].D) {
					return nil, errors.Wrapf(ErrInvalidProof, "auditor %d chunk %d does not share randomness", t, j)
				}
			}
		}

		for j, ct := range tr.amount.Chunks {
			rel.add(ct.D, term{l.rho(j), G})
			rel.add(ct.C, term{l.amount(j), G}, term{l.rho(j), tr.recipient})
			for t, a := range tr.audited {
				rel.add(a.Chunks[j].C, term{l.amount(j), G}, term{l.rho(j), tr.auditors[t]})
			}
			rel.add(tr.commitments[j], term{l.amount(j), G}, term{l.amountGamma(j), params.H})
		}
	}
	return rel, nil
}

// checkState makes sure the caller's key opens balance to value before any
// proof work starts.
func checkState(params *Params, kp *elgamal.KeyPair, balance *chunk.Amount, value *big.Int) error {
	g := params.Group
	if err := kp.Validate(g); err != nil {
		return errors.Wrap(ErrStateMismatch, err.Error())
	}
	if balance == nil || balance.Len() != params.Chunks.Count {
		return errors.Wrapf(ErrStateMismatch, "balance must have %d chunks", params.Chunks.Count)
	}
	if !params.Chunks.Fits(value) {
		return errors.Wrapf(ErrStateMismatch, "balance %v out of range", value)
	}
	sum := balance.Weighted(g, params.Chunks.Weights(g.N()))
	if !elgamal.Decrypt(g, sum, kp.DecryptionKey).IsEqual(g.Element().BaseScale(value)) {
		return errors.Wrapf(ErrStateMismatch, "balance does not decrypt to %s", value)
	}
	return nil
}

func randomScalars(g group.Group, n int) ([]*big.Int, error) {
	out := make([]*big.Int, n)
	for i := range out {
		s, err := g.RandomScalar()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func proveRange(params *Params, values []uint64) ([]*big.Int, RangeProof, error) {
	gammas, err := randomScalars(params.Group, len(values))
	if err != nil {
		return nil, RangeProof{}, err
	}
	blob, err := params.Range.ProveRange(values, gammas, params.Chunks.Bits)
	if err != nil {
		if !errors.Is(err, rangeproof.ErrRangeProofUnavailable) {
			err = errors.Wrap(rangeproof.ErrRangeProofUnavailable, err.Error())
		}
		return nil, RangeProof{}, err
	}
	if len(blob) == 0 {
		return nil, RangeProof{}, errors.Wrap(rangeproof.ErrRangeProofUnavailable, "empty proof")
	}
	commitments := make([]group.Element, len(values))
	for i, v := range values {
		commitments[i] = rangeproof.Commit(params.Group, params.H, v, gammas[i])
	}
	return gammas, RangeProof{Commitments: commitments, Proof: blob}, nil
}

func verifyRange(params *Params, rp RangeProof) error {
	ok, err := params.Range.VerifyRange(rp.Proof, rp.Commitments, params.Chunks.Bits)
	if err != nil {
		return errors.Wrap(ErrInvalidProof, err.Error())
	}
	if !ok {
		return errors.Wrap(ErrInvalidProof, "range proof rejected")
	}
	return nil
}

func scalars(values []uint64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = new(big.Int).SetUint64(v)
	}
	return out
}
