// Package ledger is an in-memory reference ledger for confidential
// balances. It verifies every proof it is handed and applies payloads
// atomically, one at a time.
package ledger

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/confidential"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/proof"
)

var (
	ErrUnauthorized      = errors.New("signer does not own the account")
	ErrInsufficientFunds = errors.New("insufficient public balance")
	ErrInvalidAmount     = errors.New("invalid amount")
	// ErrSupplyExceeded is returned when minting would let a single balance
	// outgrow the chunk layout.
	ErrSupplyExceeded = errors.New("asset supply exceeds the chunk layout")
	// ErrPendingFull is returned once an account has received
	// MaxPendingCredits credits since its last rollover.
	ErrPendingFull = errors.New("too many pending credits")
)

// DefaultMaxPendingCredits bounds how far pending chunks can grow past the
// chunk width before the owner must roll over. A rollover of a full pending
// balance leaves chunks of at most Chunks.SumBits(n+1) bits, which the
// decryption engine has to reach.
const DefaultMaxPendingCredits = 1 << 10

type accountKey struct {
	account, asset string
}

type account struct {
	pending    *chunk.Amount
	actual     *chunk.Amount
	key        group.Element
	normalized bool
	frozen     bool
	version    uint64
	credits    int
}

// Ledger implements confidential.LedgerReader and confidential.Submitter.
type Ledger struct {
	mu         sync.RWMutex
	params     *proof.Params
	accounts   map[accountKey]*account
	public     map[accountKey]*big.Int
	supply     map[string]*big.Int
	auditors   map[string]group.Element
	maxPending int
	log        zerolog.Logger
}

type Option func(*Ledger)

func WithLogger(l zerolog.Logger) Option {
	return func(led *Ledger) { led.log = l }
}

func WithMaxPendingCredits(n int) Option {
	return func(led *Ledger) { led.maxPending = n }
}

func New(params *proof.Params, opts ...Option) *Ledger {
	led := &Ledger{
		params:     params,
		accounts:   make(map[accountKey]*account),
		public:     make(map[accountKey]*big.Int),
		supply:     make(map[string]*big.Int),
		auditors:   make(map[string]group.Element),
		maxPending: DefaultMaxPendingCredits,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(led)
	}
	return led
}

// SetAuditor installs the global auditor of asset. A nil key removes it.
func (led *Ledger) SetAuditor(asset string, pk group.Element) {
	led.mu.Lock()
	defer led.mu.Unlock()
	if pk == nil {
		delete(led.auditors, asset)
		return
	}
	led.auditors[asset] = pk
}

// Mint credits the public balance of address. The total minted per asset
// never exceeds Chunks.Max, so no confidential balance can hold more than
// the layout encodes.
func (led *Ledger) Mint(address, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "mint of %v", amount)
	}
	led.mu.Lock()
	defer led.mu.Unlock()
	supply := new(big.Int).Add(led.supplyOf(asset), amount)
	if !led.params.Chunks.Fits(supply) {
		return errors.Wrapf(ErrSupplyExceeded, "%s supply would reach %s", asset, supply)
	}
	led.supply[asset] = supply
	led.addPublic(accountKey{address, asset}, amount)
	return nil
}

func (led *Ledger) supplyOf(asset string) *big.Int {
	if v, ok := led.supply[asset]; ok {
		return v
	}
	return new(big.Int)
}

// PublicBalance returns the public balance of address.
func (led *Ledger) PublicBalance(address, asset string) *big.Int {
	led.mu.RLock()
	defer led.mu.RUnlock()
	return new(big.Int).Set(led.publicOf(accountKey{address, asset}))
}

func (led *Ledger) publicOf(k accountKey) *big.Int {
	if v, ok := led.public[k]; ok {
		return v
	}
	return new(big.Int)
}

// addPublic adds delta, which may be negative, to the public balance of k.
// Callers check that the result stays non-negative.
func (led *Ledger) addPublic(k accountKey, delta *big.Int) {
	led.public[k] = new(big.Int).Add(led.publicOf(k), delta)
}

func (led *Ledger) lookup(acc, asset string) (*account, error) {
	a, ok := led.accounts[accountKey{acc, asset}]
	if !ok {
		return nil, errors.Wrapf(confidential.ErrNotRegistered, "%s/%s", acc, asset)
	}
	return a, nil
}

func (led *Ledger) Account(_ context.Context, acc, asset string) (*confidential.Snapshot, error) {
	led.mu.RLock()
	defer led.mu.RUnlock()
	a, err := led.lookup(acc, asset)
	if err != nil {
		return nil, err
	}
	g := led.params.Group
	return &confidential.Snapshot{
		Pending:    a.pending.Copy(g),
		Actual:     a.actual.Copy(g),
		Key:        g.Element().Set(a.key),
		Normalized: a.normalized,
		Frozen:     a.frozen,
		Version:    a.version,
	}, nil
}

func (led *Ledger) EncryptionKey(ctx context.Context, acc, asset string) (group.Element, error) {
	snap, err := led.Account(ctx, acc, asset)
	if err != nil {
		return nil, err
	}
	return snap.Key, nil
}

func (led *Ledger) IsNormalized(_ context.Context, acc, asset string) (bool, error) {
	led.mu.RLock()
	defer led.mu.RUnlock()
	a, err := led.lookup(acc, asset)
	if err != nil {
		return false, err
	}
	return a.normalized, nil
}

func (led *Ledger) IsFrozen(_ context.Context, acc, asset string) (bool, error) {
	led.mu.RLock()
	defer led.mu.RUnlock()
	a, err := led.lookup(acc, asset)
	if err != nil {
		return false, err
	}
	return a.frozen, nil
}

func (led *Ledger) Auditor(_ context.Context, asset string) (group.Element, error) {
	led.mu.RLock()
	defer led.mu.RUnlock()
	pk, ok := led.auditors[asset]
	if !ok {
		return nil, nil
	}
	return led.params.Group.Element().Set(pk), nil
}
