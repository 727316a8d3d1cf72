package ledger

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/confidential"
	"github.com/takakv/confbal/proof"
)

// Submit verifies p and applies it. A rejected payload leaves the ledger
// untouched.
func (led *Ledger) Submit(_ context.Context, p *confidential.Payload, signer confidential.Signer) (*confidential.CommitResult, error) {
	if p == nil {
		return nil, errors.New("nil payload")
	}
	if signer == nil {
		return nil, errors.Wrap(ErrUnauthorized, "nil signer")
	}
	led.mu.Lock()
	defer led.mu.Unlock()

	version, err := led.apply(p, signer.Address())
	if err != nil {
		led.log.Warn().
			Err(err).
			Str("op", string(p.Op)).
			Str("account", p.Account).
			Str("asset", p.Asset).
			Msg("payload rejected")
		return nil, err
	}
	led.log.Info().
		Str("op", string(p.Op)).
		Str("account", p.Account).
		Str("asset", p.Asset).
		Uint64("version", version).
		Msg("payload applied")
	return &confidential.CommitResult{Success: true, Version: version}, nil
}

func (led *Ledger) apply(p *confidential.Payload, signer string) (uint64, error) {
	if p.Op == confidential.OpDeposit {
		return led.deposit(p, signer)
	}
	if signer != p.Account {
		return 0, errors.Wrapf(ErrUnauthorized, "%s signing for %s", signer, p.Account)
	}
	if p.Op == confidential.OpRegister {
		return led.register(p)
	}

	a, err := led.lookup(p.Account, p.Asset)
	if err != nil {
		return 0, err
	}
	if p.Version != a.version {
		return 0, errors.Wrapf(confidential.ErrStaleState, "built at version %d, account at %d", p.Version, a.version)
	}
	ctx := confidential.ProofContext(p.Account, p.Asset, p.Version)

	switch p.Op {
	case confidential.OpRollover:
		return led.rollover(a, p)
	case confidential.OpNormalize:
		if err := proof.VerifyNormalization(led.params, a.key, a.actual, p.Withdrawal, ctx); err != nil {
			return 0, err
		}
		a.actual = p.Withdrawal.NewBalance
		a.normalized = true
	case confidential.OpWithdraw:
		if !a.normalized {
			return 0, errors.Wrap(confidential.ErrNotNormalized, "withdraw")
		}
		if !led.params.Chunks.Fits(p.Amount) {
			return 0, errors.Wrapf(ErrInvalidAmount, "withdrawal of %v", p.Amount)
		}
		if err := proof.VerifyWithdrawal(led.params, a.key, a.actual, p.Amount, p.Withdrawal, ctx); err != nil {
			return 0, err
		}
		a.actual = p.Withdrawal.NewBalance
		led.addPublic(accountKey{p.Account, p.Asset}, p.Amount)
	case confidential.OpTransfer:
		return led.transfer(a, p, ctx)
	case confidential.OpRotateKey:
		if !a.pending.IsZero() {
			return 0, errors.New("pending balance must be rolled over before rotation")
		}
		if err := proof.VerifyKeyRotation(led.params, a.key, p.NewKey, a.actual, p.Withdrawal, ctx); err != nil {
			return 0, err
		}
		a.key = p.NewKey
		a.actual = p.Withdrawal.NewBalance
		a.normalized = true
		if p.Unfreeze {
			a.frozen = false
		}
	default:
		return 0, errors.Errorf("unknown op %q", p.Op)
	}
	a.version++
	return a.version, nil
}

func (led *Ledger) register(p *confidential.Payload) (uint64, error) {
	k := accountKey{p.Account, p.Asset}
	if _, ok := led.accounts[k]; ok {
		return 0, errors.Wrapf(confidential.ErrAlreadyRegistered, "%s/%s", p.Account, p.Asset)
	}
	if err := proof.VerifyRegistration(led.params, p.Key, p.Registration, confidential.ProofContext(p.Account, p.Asset, 0)); err != nil {
		return 0, err
	}
	g := led.params.Group
	led.accounts[k] = &account{
		pending:    chunk.Zero(g, led.params.Chunks),
		actual:     chunk.Zero(g, led.params.Chunks),
		key:        p.Key,
		normalized: true,
	}
	return 0, nil
}

// credit adds amount to the pending balance of a. It does not check the
// version: incoming credits never conflict with the owner's proofs.
func (led *Ledger) credit(a *account, amount *chunk.Amount) error {
	if a.frozen {
		return confidential.ErrFrozen
	}
	if a.credits >= led.maxPending {
		return ErrPendingFull
	}
	pending, err := chunk.Add(led.params.Group, a.pending, amount)
	if err != nil {
		return err
	}
	a.pending = pending
	a.credits++
	a.version++
	return nil
}

func (led *Ledger) deposit(p *confidential.Payload, signer string) (uint64, error) {
	a, err := led.lookup(p.Account, p.Asset)
	if err != nil {
		return 0, err
	}
	if !led.params.Chunks.Fits(p.Amount) {
		return 0, errors.Wrapf(ErrInvalidAmount, "deposit of %v", p.Amount)
	}
	from := accountKey{signer, p.Asset}
	if held := led.publicOf(from); held.Cmp(p.Amount) < 0 {
		return 0, errors.Wrapf(ErrInsufficientFunds, "%s holds %s", signer, held)
	}
	amount, err := chunk.Trivial(led.params.Group, led.params.Chunks, p.Amount)
	if err != nil {
		return 0, err
	}
	if err := led.credit(a, amount); err != nil {
		return 0, errors.Wrapf(err, "deposit to %s", p.Account)
	}
	led.addPublic(from, new(big.Int).Neg(p.Amount))
	return a.version, nil
}

func (led *Ledger) rollover(a *account, p *confidential.Payload) (uint64, error) {
	if !a.normalized {
		return 0, errors.Wrap(confidential.ErrNotNormalized, "rollover")
	}
	actual, err := chunk.Add(led.params.Group, a.actual, a.pending)
	if err != nil {
		return 0, err
	}
	a.actual = actual
	a.pending = chunk.Zero(led.params.Group, led.params.Chunks)
	a.credits = 0
	a.normalized = false
	if p.Freeze {
		a.frozen = true
	}
	a.version++
	return a.version, nil
}

func (led *Ledger) transfer(a *account, p *confidential.Payload, ctx []byte) (uint64, error) {
	if !a.normalized {
		return 0, errors.Wrap(confidential.ErrNotNormalized, "transfer")
	}
	to, err := led.lookup(p.Recipient, p.Asset)
	if err != nil {
		return 0, err
	}
	if to == a {
		return 0, errors.New("transfer to self")
	}
	if to.frozen {
		return 0, errors.Wrapf(confidential.ErrFrozen, "recipient %s", p.Recipient)
	}
	if global, ok := led.auditors[p.Asset]; ok {
		if len(p.Auditors) == 0 || p.Auditors[0] == nil || !p.Auditors[0].IsEqual(global) {
			return 0, errors.Wrap(proof.ErrInvalidProof, "global auditor missing")
		}
	}
	if err := proof.VerifyTransfer(led.params, a.key, to.key, p.Auditors, a.actual, p.Transfer, ctx); err != nil {
		return 0, err
	}
	if err := led.credit(to, p.Transfer.Amount); err != nil {
		return 0, errors.Wrapf(err, "recipient %s", p.Recipient)
	}
	a.actual = p.Transfer.NewBalance
	a.version++
	return a.version, nil
}

var (
	_ confidential.LedgerReader = (*Ledger)(nil)
	_ confidential.Submitter    = (*Ledger)(nil)
)
