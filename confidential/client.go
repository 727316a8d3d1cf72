package confidential

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/proof"
)

// Client builds payloads for the owner of a keypair.
type Client struct {
	params *proof.Params
	rec    chunk.Recoverer
	ledger LedgerReader
	log    zerolog.Logger
}

type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a Client that decrypts with rec and reads from ledger.
func NewClient(params *proof.Params, rec chunk.Recoverer, ledger LedgerReader, opts ...Option) *Client {
	c := &Client{params: params, rec: rec, ledger: ledger, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Balance is the owner's view of an account.
type Balance struct {
	Pending *big.Int `json:"pending"`
	Actual  *big.Int `json:"actual"`
}

// DeriveKeyPair derives the keypair of signer for asset.
func DeriveKeyPair(g group.Group, signer Signer, asset string) (*elgamal.KeyPair, error) {
	sig, err := signer.Sign(elgamal.DerivationMessage(asset))
	if err != nil {
		return nil, errors.Wrap(err, "sign derivation message")
	}
	return elgamal.DeriveKeyPair(g, sig)
}

func (c *Client) snapshot(ctx context.Context, account, asset string, kp *elgamal.KeyPair) (*Snapshot, error) {
	snap, err := c.ledger.Account(ctx, account, asset)
	if err != nil {
		return nil, err
	}
	if kp != nil && !snap.Key.IsEqual(kp.EncryptionKey) {
		return nil, errors.Wrap(proof.ErrStateMismatch, "keypair does not match the registered key")
	}
	return snap, nil
}

func (c *Client) value(a *chunk.Amount, kp *elgamal.KeyPair) (*big.Int, error) {
	return chunk.Combine(c.params.Group, c.params.Chunks, a, kp.DecryptionKey, c.rec)
}

// Register builds the payload that registers kp for (account, asset).
func (c *Client) Register(ctx context.Context, account, asset string, kp *elgamal.KeyPair) (*Payload, error) {
	_, err := c.ledger.Account(ctx, account, asset)
	switch {
	case err == nil:
		return nil, errors.Wrapf(ErrAlreadyRegistered, "%s/%s", account, asset)
	case !errors.Is(err, ErrNotRegistered):
		return nil, err
	}

	sigma, err := proof.ProveRegistration(c.params, kp, ProofContext(account, asset, 0))
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("account", account).Str("asset", asset).Msg("built register payload")
	return &Payload{
		Op:           OpRegister,
		Account:      account,
		Asset:        asset,
		Key:          kp.EncryptionKey,
		Registration: sigma,
	}, nil
}

// Deposit moves a public amount into the pending balance of to. The amount
// is public, so no proof is needed.
func (c *Client) Deposit(ctx context.Context, to, asset string, amount *big.Int) (*Payload, error) {
	if !c.params.Chunks.Fits(amount) {
		return nil, errors.Wrapf(chunk.ErrAmountTooLarge, "deposit of %v", amount)
	}
	snap, err := c.ledger.Account(ctx, to, asset)
	if err != nil {
		return nil, err
	}
	if snap.Frozen {
		return nil, errors.Wrapf(ErrFrozen, "%s/%s", to, asset)
	}
	c.log.Debug().Str("account", to).Stringer("amount", amount).Msg("built deposit payload")
	return &Payload{Op: OpDeposit, Account: to, Asset: asset, Amount: amount}, nil
}

func (c *Client) normalize(account, asset string, kp *elgamal.KeyPair, actual *chunk.Amount, version uint64) (*Payload, error) {
	w, err := proof.ProveNormalization(c.params, kp, actual, c.rec, ProofContext(account, asset, version))
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("account", account).Uint64("version", version).Msg("built normalize payload")
	return &Payload{Op: OpNormalize, Account: account, Asset: asset, Version: version, Withdrawal: w}, nil
}

// Normalize re-encrypts the actual balance in canonical chunks.
func (c *Client) Normalize(ctx context.Context, account, asset string, kp *elgamal.KeyPair) (*Payload, error) {
	snap, err := c.snapshot(ctx, account, asset, kp)
	if err != nil {
		return nil, err
	}
	return c.normalize(account, asset, kp, snap.Actual, snap.Version)
}

func rolloverPayload(account, asset string, version uint64, freeze bool) *Payload {
	return &Payload{Op: OpRollover, Account: account, Asset: asset, Version: version, Freeze: freeze}
}

// Rollover moves pending into actual. The actual balance must be
// normalized unless freeze is set, in which case a normalization is
// prepended when needed.
func (c *Client) Rollover(ctx context.Context, account, asset string, kp *elgamal.KeyPair, freeze bool) ([]*Payload, error) {
	if !freeze {
		normalized, err := c.ledger.IsNormalized(ctx, account, asset)
		if err != nil {
			return nil, err
		}
		if !normalized {
			return nil, errors.Wrapf(ErrNotNormalized, "%s/%s", account, asset)
		}
	}
	return c.SafeRollover(ctx, account, asset, kp, freeze)
}

// SafeRollover normalizes first when the actual balance is not normalized.
func (c *Client) SafeRollover(ctx context.Context, account, asset string, kp *elgamal.KeyPair, freeze bool) ([]*Payload, error) {
	snap, err := c.snapshot(ctx, account, asset, kp)
	if err != nil {
		return nil, err
	}
	var out []*Payload
	version := snap.Version
	if !snap.Normalized {
		p, err := c.normalize(account, asset, kp, snap.Actual, version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		version++
	}
	return append(out, rolloverPayload(account, asset, version, freeze)), nil
}

// Withdraw moves amount from the actual balance to the public balance.
func (c *Client) Withdraw(ctx context.Context, account, asset string, kp *elgamal.KeyPair, amount *big.Int) (*Payload, error) {
	snap, err := c.snapshot(ctx, account, asset, kp)
	if err != nil {
		return nil, err
	}
	if !snap.Normalized {
		return nil, errors.Wrapf(ErrNotNormalized, "%s/%s", account, asset)
	}
	value, err := c.value(snap.Actual, kp)
	if err != nil {
		return nil, err
	}
	w, err := proof.ProveWithdrawal(c.params, kp, snap.Actual, value, amount, ProofContext(account, asset, snap.Version))
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("account", account).Stringer("amount", amount).Msg("built withdraw payload")
	return &Payload{
		Op:         OpWithdraw,
		Account:    account,
		Asset:      asset,
		Version:    snap.Version,
		Amount:     amount,
		Withdrawal: w,
	}, nil
}

// Transfer sends amount to the pending balance of recipient. The global
// auditor of asset, if any, is put in front of auditors.
func (c *Client) Transfer(ctx context.Context, account, asset string, kp *elgamal.KeyPair, amount *big.Int, recipient string, auditors []group.Element) (*Payload, error) {
	snap, err := c.snapshot(ctx, account, asset, kp)
	if err != nil {
		return nil, err
	}
	if !snap.Normalized {
		return nil, errors.Wrapf(ErrNotNormalized, "%s/%s", account, asset)
	}
	to, err := c.ledger.Account(ctx, recipient, asset)
	if err != nil {
		return nil, errors.Wrapf(err, "recipient %s", recipient)
	}
	if to.Frozen {
		return nil, errors.Wrapf(ErrFrozen, "recipient %s", recipient)
	}

	global, err := c.ledger.Auditor(ctx, asset)
	if err != nil {
		return nil, err
	}
	if global != nil {
		auditors = append([]group.Element{global}, auditors...)
	}

	value, err := c.value(snap.Actual, kp)
	if err != nil {
		return nil, err
	}
	t, err := proof.ProveTransfer(c.params, kp, snap.Actual, value, amount, to.Key, auditors, ProofContext(account, asset, snap.Version))
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("account", account).
		Str("recipient", recipient).
		Int("auditors", len(auditors)).
		Msg("built transfer payload")
	return &Payload{
		Op:        OpTransfer,
		Account:   account,
		Asset:     asset,
		Version:   snap.Version,
		Recipient: recipient,
		Auditors:  auditors,
		Transfer:  t,
	}, nil
}

// RotateKey re-encrypts the balance under newKP. Unless the account is
// already frozen with nothing pending, a rollover that freezes the account
// is prepended, preceded by a normalization when needed. The rotation proof
// is built over the balance those payloads will leave behind.
func (c *Client) RotateKey(ctx context.Context, account, asset string, kp, newKP *elgamal.KeyPair, unfreeze bool) ([]*Payload, error) {
	g := c.params.Group
	snap, err := c.snapshot(ctx, account, asset, kp)
	if err != nil {
		return nil, err
	}
	if err := newKP.Validate(g); err != nil {
		return nil, errors.Wrap(err, "new keypair")
	}

	var out []*Payload
	actual := snap.Actual
	version := snap.Version
	if !snap.Frozen || !snap.Pending.IsZero() {
		if !snap.Normalized {
			p, err := c.normalize(account, asset, kp, actual, version)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
			actual = p.Withdrawal.NewBalance
			version++
		}
		out = append(out, rolloverPayload(account, asset, version, true))
		if actual, err = chunk.Add(g, actual, snap.Pending); err != nil {
			return nil, err
		}
		version++
	}

	w, err := proof.ProveKeyRotation(c.params, kp, newKP, actual, c.rec, ProofContext(account, asset, version))
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("account", account).Int("prepended", len(out)).Msg("built rotate payload")
	return append(out, &Payload{
		Op:         OpRotateKey,
		Account:    account,
		Asset:      asset,
		Version:    version,
		NewKey:     newKP.EncryptionKey,
		Unfreeze:   unfreeze,
		Withdrawal: w,
	}), nil
}

// Balance decrypts both balances of the account.
func (c *Client) Balance(ctx context.Context, account, asset string, kp *elgamal.KeyPair) (*Balance, error) {
	snap, err := c.snapshot(ctx, account, asset, kp)
	if err != nil {
		return nil, err
	}
	var b Balance
	if b.Pending, err = c.value(snap.Pending, kp); err != nil {
		return nil, errors.Wrap(err, "pending")
	}
	if b.Actual, err = c.value(snap.Actual, kp); err != nil {
		return nil, errors.Wrap(err, "actual")
	}
	return &b, nil
}
