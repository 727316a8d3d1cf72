package proof

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/group"
)

type sigmaJSON struct {
	Commitments []json.RawMessage `json:"commitments"`
	Responses   []group.Scalar    `json:"responses"`
}

type rangeProofJSON struct {
	Commitments []json.RawMessage `json:"commitments"`
	Proof       hexutil.Bytes     `json:"proof"`
}

type bundleJSON struct {
	Sigma  *sigmaJSON       `json:"sigma"`
	Ranges []rangeProofJSON `json:"ranges"`
}

type withdrawalJSON struct {
	NewBalance json.RawMessage `json:"new_balance"`
	Proof      *bundleJSON     `json:"proof"`
}

type transferJSON struct {
	NewBalance json.RawMessage   `json:"new_balance"`
	Amount     json.RawMessage   `json:"amount"`
	Audited    []json.RawMessage `json:"audited"`
	Proof      *bundleJSON       `json:"proof"`
}

func elementsUnmarshalJSON(raw []json.RawMessage, g group.Group) ([]group.Element, error) {
	out := make([]group.Element, len(raw))
	for i, r := range raw {
		out[i] = g.Element()
		if err := out[i].UnmarshalJSON(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (tmp *bundleJSON) decode(g group.Group) (*Bundle, error) {
	if tmp == nil || tmp.Sigma == nil {
		return nil, errors.Wrap(group.ErrInvalidEncoding, "missing proof")
	}
	commitments, err := elementsUnmarshalJSON(tmp.Sigma.Commitments, g)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		Sigma:  &Sigma{Commitments: commitments, Responses: tmp.Sigma.Responses},
		Ranges: make([]RangeProof, len(tmp.Ranges)),
	}
	for i, rp := range tmp.Ranges {
		cs, err := elementsUnmarshalJSON(rp.Commitments, g)
		if err != nil {
			return nil, err
		}
		b.Ranges[i] = RangeProof{Commitments: cs, Proof: rp.Proof}
	}
	return b, nil
}

// WithdrawalUnmarshalJSON decodes a JSON Withdrawal into elements of g.
func WithdrawalUnmarshalJSON(b []byte, g group.Group) (*Withdrawal, error) {
	tmp := withdrawalJSON{}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return nil, errors.Wrap(group.ErrInvalidEncoding, err.Error())
	}
	newBalance, err := chunk.AmountUnmarshalJSON(tmp.NewBalance, g)
	if err != nil {
		return nil, err
	}
	bundle, err := tmp.Proof.decode(g)
	if err != nil {
		return nil, err
	}
	return &Withdrawal{NewBalance: newBalance, Proof: bundle}, nil
}

// TransferUnmarshalJSON decodes a JSON Transfer into elements of g.
func TransferUnmarshalJSON(b []byte, g group.Group) (*Transfer, error) {
	tmp := transferJSON{}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return nil, errors.Wrap(group.ErrInvalidEncoding, err.Error())
	}

	var t Transfer
	var err error
	if t.NewBalance, err = chunk.AmountUnmarshalJSON(tmp.NewBalance, g); err != nil {
		return nil, err
	}
	if t.Amount, err = chunk.AmountUnmarshalJSON(tmp.Amount, g); err != nil {
		return nil, err
	}
	t.Audited = make([]*chunk.Amount, len(tmp.Audited))
	for i, raw := range tmp.Audited {
		if t.Audited[i], err = chunk.AmountUnmarshalJSON(raw, g); err != nil {
			return nil, err
		}
	}
	if t.Proof, err = tmp.Proof.decode(g); err != nil {
		return nil, err
	}
	return &t, nil
}
