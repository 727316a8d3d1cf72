// Package proof implements the authorizers for confidential balance
// transitions: withdrawal, transfer, normalization and key rotation.
//
// Every authorizer proves one linear relation over the old balance, the new
// ciphertexts and a set of range commitments:
//
//	P = s*G
//	sum(w_i*C_i) - delta*G = s*sum(w_i*D_i) + sum(w_i*v'_i*G) [+ sum(w_j*a_j*G)]
//	D'_i = r'_i*G,  C'_i = v'_i*G + r'_i*PK'
//	V_i = v'_i*G + gamma_i*H
//
// with w_i = 2^(k*i). The range proofs over V_i bound every new chunk, which
// makes the balance equation hold over the integers and not just modulo the
// group order.
package proof

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/rangeproof"
)

var (
	// ErrStateMismatch is returned when the presented balance does not
	// decrypt consistently under the caller's key. No proof work is done.
	ErrStateMismatch = errors.New("balance state mismatch")
	// ErrInsufficientBalance is returned when the amount exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidProof is returned by verifiers.
	ErrInvalidProof = errors.New("invalid proof")
)

const (
	labelWithdrawal    = "confbal-withdrawal-v1"
	labelTransfer      = "confbal-transfer-v1"
	labelNormalization = "confbal-normalization-v1"
	labelKeyRotation   = "confbal-key-rotation-v1"
	labelRegistration  = "confbal-registration-v1"
)

// Params holds what provers and verifiers must agree on.
type Params struct {
	Group  group.Group
	Chunks chunk.Params
	// H is the blinding base of the range commitments.
	H     group.Element
	Range rangeproof.System
}

// NewParams checks the chunk layout and takes H from the range system.
func NewParams(g group.Group, chunks chunk.Params, rs rangeproof.System) (*Params, error) {
	if err := chunks.Validate(); err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, errors.New("no range proof system")
	}
	return &Params{Group: g, Chunks: chunks, H: rs.Base(), Range: rs}, nil
}

// RangeProof is a range proof together with the commitments it is over.
type RangeProof struct {
	Commitments []group.Element `json:"commitments"`
	Proof       hexutil.Bytes   `json:"proof"`
}

// Bundle is everything a verifier needs besides the public statement.
type Bundle struct {
	Sigma  *Sigma       `json:"sigma"`
	Ranges []RangeProof `json:"ranges"`
}
