// Package rangeproof is the boundary between the balance proofs and the
// range proof system. Values are committed as V = v*G + gamma*H with the
// caller's blinding factors, which is what lets a sigma proof tie each
// commitment to a ciphertext.
package rangeproof

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/bulletproofs"
	"github.com/takakv/confbal/group"
)

// ErrRangeProofUnavailable is returned when a range proof cannot be produced.
var ErrRangeProofUnavailable = errors.New("range proof unavailable")

// Prover produces one aggregated proof that every value lies in [0, 2^bits).
type Prover interface {
	ProveRange(values []uint64, blindings []*big.Int, bits uint) ([]byte, error)
}

// Verifier checks a proof produced by the matching Prover.
type Verifier interface {
	VerifyRange(blob []byte, commitments []group.Element, bits uint) (bool, error)
}

// System is a prover and verifier over the same generators.
type System interface {
	Prover
	Verifier
	// Base is the blinding generator H of the commitments.
	Base() group.Element
	Name() string
}

// PedersenBase is the blinding generator shared with the Bulletproofs
// parameters.
func PedersenBase(g group.Group) (group.Element, error) {
	return g.Element().MapToGroup(bulletproofs.SeedH)
}

// Commit returns v*G + gamma*H.
func Commit(g group.Group, h group.Element, v uint64, gamma *big.Int) group.Element {
	c := g.Element().BaseScale(new(big.Int).SetUint64(v))
	return c.Add(c, g.Element().Scale(h, gamma))
}

// Bulletproofs is the production System.
type Bulletproofs struct {
	params *bulletproofs.Params
}

// NewBulletproofs derives generators for aggregates of up to capacity bits.
func NewBulletproofs(g group.Group, capacity int) (*Bulletproofs, error) {
	params, err := bulletproofs.Setup(g, capacity)
	if err != nil {
		return nil, err
	}
	return &Bulletproofs{params: params}, nil
}

func (b *Bulletproofs) Name() string { return "bulletproofs" }

func (b *Bulletproofs) Base() group.Element { return b.params.H }

func (b *Bulletproofs) ProveRange(values []uint64, blindings []*big.Int, bits uint) ([]byte, error) {
	proof, _, err := bulletproofs.MultiProve(b.params, values, blindings, int(bits))
	if err != nil {
		return nil, errors.Wrap(ErrRangeProofUnavailable, err.Error())
	}
	blob, err := proof.MarshalBinary(b.params.GP)
	if err != nil {
		return nil, errors.Wrap(ErrRangeProofUnavailable, err.Error())
	}
	return blob, nil
}

func (b *Bulletproofs) VerifyRange(blob []byte, commitments []group.Element, bits uint) (bool, error) {
	proof, err := bulletproofs.UnmarshalBinary(b.params.GP, blob)
	if err != nil {
		return false, err
	}
	return proof.Verify(b.params, commitments, int(bits))
}

// Mock reveals the openings instead of proving anything. It is only fit for
// tests and local development.
type Mock struct {
	g group.Group
	h group.Element
}

// NewMock returns a Mock over the standard blinding generator.
func NewMock(g group.Group) (*Mock, error) {
	h, err := PedersenBase(g)
	if err != nil {
		return nil, err
	}
	return &Mock{g: g, h: h}, nil
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Base() group.Element { return m.h }

// ProveRange encodes each (value, blinding) opening.
func (m *Mock) ProveRange(values []uint64, blindings []*big.Int, bits uint) ([]byte, error) {
	if len(values) != len(blindings) || bits == 0 || bits > 64 {
		return nil, errors.Wrap(ErrRangeProofUnavailable, "bad statement")
	}
	var out []byte
	for i, v := range values {
		if bits < 64 && v>>bits != 0 {
			return nil, errors.Wrapf(ErrRangeProofUnavailable, "%d does not fit in %d bits", v, bits)
		}
		out = binary.BigEndian.AppendUint64(out, v)
		out = append(out, group.ScalarBytes(m.g, blindings[i])...)
	}
	return out, nil
}

// VerifyRange recomputes every commitment from its opening.
func (m *Mock) VerifyRange(blob []byte, commitments []group.Element, bits uint) (bool, error) {
	stride := 8 + m.g.ScalarLen()
	if len(blob) != stride*len(commitments) {
		return false, errors.Wrap(bulletproofs.ErrMalformedProof, "opening count")
	}
	for i, c := range commitments {
		chunk := blob[i*stride : (i+1)*stride]
		v := binary.BigEndian.Uint64(chunk[:8])
		gamma, err := group.ScalarFromBytes(m.g, chunk[8:])
		if err != nil {
			return false, err
		}
		if bits < 64 && v>>bits != 0 {
			return false, nil
		}
		if !Commit(m.g, m.h, v, gamma).IsEqual(c) {
			return false, nil
		}
	}
	return true, nil
}
