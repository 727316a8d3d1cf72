// Package confidential builds the payloads that move confidential balances
// between states. It reads ledger state, decrypts the owner's view with a
// discrete-log engine and attaches the proofs the ledger verifies. Nothing
// here mutates ledger state; payloads are handed to a Submitter.
package confidential

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/proof"
)

var (
	ErrNotRegistered     = errors.New("account not registered")
	ErrAlreadyRegistered = errors.New("account already registered")
	ErrNotNormalized     = errors.New("balance not normalized")
	ErrFrozen            = errors.New("account frozen")
	// ErrStaleState is returned when a payload was built from a snapshot the
	// ledger has since moved past. Re-read and rebuild.
	ErrStaleState = errors.New("stale account state")
	ErrRejected   = errors.New("payload rejected")
)

// Op names a state transition.
type Op string

const (
	OpRegister  Op = "register"
	OpDeposit   Op = "deposit"
	OpRollover  Op = "rollover"
	OpWithdraw  Op = "withdraw"
	OpTransfer  Op = "transfer"
	OpNormalize Op = "normalize"
	OpRotateKey Op = "rotate_key"
)

// Snapshot is the ledger state of one (account, asset) pair.
type Snapshot struct {
	Pending    *chunk.Amount
	Actual     *chunk.Amount
	Key        group.Element
	Normalized bool
	Frozen     bool
	// Version increases with every change to the account.
	Version uint64
}

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	// Account returns ErrNotRegistered for unknown pairs.
	Account(ctx context.Context, account, asset string) (*Snapshot, error)
	EncryptionKey(ctx context.Context, account, asset string) (group.Element, error)
	IsNormalized(ctx context.Context, account, asset string) (bool, error)
	IsFrozen(ctx context.Context, account, asset string) (bool, error)
	// Auditor returns the global auditor key of asset, or nil.
	Auditor(ctx context.Context, asset string) (group.Element, error)
}

// Signer authorizes payloads on behalf of an account.
type Signer interface {
	Address() string
	Sign(msg []byte) ([]byte, error)
}

// CommitResult is the ledger's answer to a submission.
type CommitResult struct {
	Success bool   `json:"success"`
	Version uint64 `json:"version"`
}

// Submitter applies payloads to the ledger.
type Submitter interface {
	Submit(ctx context.Context, p *Payload, signer Signer) (*CommitResult, error)
}

// Payload is one state transition. Which fields are set depends on Op.
type Payload struct {
	Op      Op     `json:"op"`
	Account string `json:"account"`
	Asset   string `json:"asset"`
	// Version is the snapshot version the proofs were built against.
	Version uint64 `json:"version"`

	Key          group.Element `json:"key,omitempty"`
	Registration *proof.Sigma  `json:"registration,omitempty"`

	Amount *big.Int `json:"amount,omitempty"`
	Freeze bool     `json:"freeze,omitempty"`

	Withdrawal *proof.Withdrawal `json:"withdrawal,omitempty"`

	Recipient string          `json:"recipient,omitempty"`
	Auditors  []group.Element `json:"auditors,omitempty"`
	Transfer  *proof.Transfer `json:"transfer,omitempty"`

	NewKey   group.Element `json:"new_key,omitempty"`
	Unfreeze bool          `json:"unfreeze,omitempty"`
}

// ProofContext binds proofs to the account, asset and snapshot version
// they were built for.
func ProofContext(account, asset string, version uint64) []byte {
	var out []byte
	for _, s := range []string{account, asset} {
		out = binary.BigEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return binary.BigEndian.AppendUint64(out, version)
}

// Execute submits payloads in order and stops at the first failure. The
// results of the applied payloads are returned either way.
func Execute(ctx context.Context, sub Submitter, signer Signer, payloads ...*Payload) ([]*CommitResult, error) {
	results := make([]*CommitResult, 0, len(payloads))
	for i, p := range payloads {
		res, err := sub.Submit(ctx, p, signer)
		if err != nil {
			return results, errors.Wrapf(err, "payload %d (%s)", i, p.Op)
		}
		if res == nil || !res.Success {
			return results, errors.Wrapf(ErrRejected, "payload %d (%s)", i, p.Op)
		}
		results = append(results, res)
	}
	return results, nil
}
