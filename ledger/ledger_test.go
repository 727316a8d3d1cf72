package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/confidential"
	"github.com/takakv/confbal/dlog"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/proof"
	"github.com/takakv/confbal/rangeproof"
)

const asset = "USD"

var testGroup = group.Ristretto255()

type user struct {
	wallet *Wallet
	kp     *elgamal.KeyPair
}

type env struct {
	ctx    context.Context
	params *proof.Params
	engine *dlog.Engine
	ledger *Ledger
	client *confidential.Client
}

// testCredits keeps the engine small: a rollover of 3 credits onto a full
// actual balance stays within 18 bits.
const testCredits = 3

func newEnv(t *testing.T, opts ...Option) *env {
	return newLayoutEnv(t, chunk.Params{Bits: 16, Count: 4}, opts...)
}

func newLayoutEnv(t *testing.T, layout chunk.Params, opts ...Option) *env {
	rs, err := rangeproof.NewMock(testGroup)
	require.NoError(t, err)
	params, err := proof.NewParams(testGroup, layout, rs)
	require.NoError(t, err)
	engine, err := dlog.NewBabyStepEngine(testGroup, 16, 8, params.Chunks.SumBits(testCredits+1))
	require.NoError(t, err)

	led := New(params, append([]Option{WithMaxPendingCredits(testCredits)}, opts...)...)
	return &env{
		ctx:    context.Background(),
		params: params,
		engine: engine,
		ledger: led,
		client: confidential.NewClient(params, engine, led),
	}
}

func (e *env) user(t *testing.T) *user {
	w, err := GenerateWallet()
	require.NoError(t, err)
	kp, err := confidential.DeriveKeyPair(testGroup, w, asset)
	require.NoError(t, err)

	p, err := e.client.Register(e.ctx, w.Address(), asset, kp)
	require.NoError(t, err)
	e.execute(t, w, p)
	return &user{wallet: w, kp: kp}
}

func (e *env) execute(t *testing.T, signer confidential.Signer, ps ...*confidential.Payload) {
	_, err := confidential.Execute(e.ctx, e.ledger, signer, ps...)
	require.NoError(t, err)
}

func amt(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func (e *env) deposit(t *testing.T, u *user, amount uint64) {
	e.depositBig(t, u, amt(amount))
}

func (e *env) depositBig(t *testing.T, u *user, amount *big.Int) {
	require.NoError(t, e.ledger.Mint(u.wallet.Address(), asset, amount))
	p, err := e.client.Deposit(e.ctx, u.wallet.Address(), asset, amount)
	require.NoError(t, err)
	e.execute(t, u.wallet, p)
}

func (e *env) balance(t *testing.T, u *user) *confidential.Balance {
	b, err := e.client.Balance(e.ctx, u.wallet.Address(), asset, u.kp)
	require.NoError(t, err)
	return b
}

func (e *env) requireBalance(t *testing.T, u *user, pending, actual uint64) {
	t.Helper()
	b := e.balance(t, u)
	require.Zero(t, b.Pending.Cmp(amt(pending)), "pending %s", b.Pending)
	require.Zero(t, b.Actual.Cmp(amt(actual)), "actual %s", b.Actual)
}

func (e *env) public(u *user) uint64 {
	return e.ledger.PublicBalance(u.wallet.Address(), asset).Uint64()
}

func (e *env) version(t *testing.T, u *user) uint64 {
	snap, err := e.ledger.Account(e.ctx, u.wallet.Address(), asset)
	require.NoError(t, err)
	return snap.Version
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t)

	_, err := e.client.Register(e.ctx, alice.wallet.Address(), asset, alice.kp)
	require.True(t, errors.Is(err, confidential.ErrAlreadyRegistered))

	// Key derivation is repeatable from the wallet alone.
	again, err := confidential.DeriveKeyPair(testGroup, alice.wallet, asset)
	require.NoError(t, err)
	require.Zero(t, again.DecryptionKey.Cmp(alice.kp.DecryptionKey))

	key, err := e.ledger.EncryptionKey(e.ctx, alice.wallet.Address(), asset)
	require.NoError(t, err)
	require.True(t, key.IsEqual(alice.kp.EncryptionKey))

	_, err = e.ledger.Account(e.ctx, "nobody", asset)
	require.True(t, errors.Is(err, confidential.ErrNotRegistered))

	// A registration proof for one account does not register another.
	w, err := GenerateWallet()
	require.NoError(t, err)
	p, err := e.client.Register(e.ctx, w.Address(), asset, alice.kp)
	require.NoError(t, err)
	p.Account = "0xdead"
	_, err = e.ledger.Submit(e.ctx, p, stubSigner("0xdead"))
	require.True(t, errors.Is(err, proof.ErrInvalidProof))
}

type stubSigner string

func (s stubSigner) Address() string { return string(s) }
func (s stubSigner) Sign(msg []byte) ([]byte, error) { return msg, nil }

func TestConfidentialFlow(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t), e.user(t)
	auditor, extra := e.user(t), e.user(t)
	e.ledger.SetAuditor(asset, auditor.kp.EncryptionKey)

	e.deposit(t, alice, 500000)
	e.requireBalance(t, alice, 500000, 0)
	require.Zero(t, e.public(alice))

	ps, err := e.client.Rollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	e.execute(t, alice.wallet, ps...)
	e.requireBalance(t, alice, 0, 500000)

	_, err = e.client.Withdraw(e.ctx, alice.wallet.Address(), asset, alice.kp, amt(200000))
	require.True(t, errors.Is(err, confidential.ErrNotNormalized))

	p, err := e.client.Normalize(e.ctx, alice.wallet.Address(), asset, alice.kp)
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)

	p, err = e.client.Withdraw(e.ctx, alice.wallet.Address(), asset, alice.kp, amt(200000))
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)
	e.requireBalance(t, alice, 0, 300000)
	require.Equal(t, uint64(200000), e.public(alice))

	_, err = e.client.Withdraw(e.ctx, alice.wallet.Address(), asset, alice.kp, amt(300001))
	require.True(t, errors.Is(err, proof.ErrInsufficientBalance))

	p, err = e.client.Transfer(e.ctx, alice.wallet.Address(), asset, alice.kp, amt(100000), bob.wallet.Address(),
		[]group.Element{extra.kp.EncryptionKey})
	require.NoError(t, err)
	require.Len(t, p.Auditors, 2)
	require.True(t, p.Auditors[0].IsEqual(auditor.kp.EncryptionKey))
	e.execute(t, alice.wallet, p)

	e.requireBalance(t, alice, 0, 200000)
	e.requireBalance(t, bob, 100000, 0)
	for i, a := range []*user{auditor, extra} {
		v, err := chunk.Combine(testGroup, e.params.Chunks, p.Transfer.Audited[i], a.kp.DecryptionKey, e.engine)
		require.NoError(t, err)
		require.Equal(t, uint64(100000), v.Uint64())
	}

	normalized, err := e.ledger.IsNormalized(e.ctx, alice.wallet.Address(), asset)
	require.NoError(t, err)
	require.True(t, normalized)
}

func TestStaleState(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t)
	e.deposit(t, alice, 1000)
	ps, err := e.client.Rollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)

	p, err := e.client.Normalize(e.ctx, alice.wallet.Address(), asset, alice.kp)
	require.NoError(t, err)

	// A deposit lands between building and submitting.
	e.deposit(t, alice, 5)
	before := e.version(t, alice)

	_, err = confidential.Execute(e.ctx, e.ledger, alice.wallet, p)
	require.True(t, errors.Is(err, confidential.ErrStaleState))
	require.Equal(t, before, e.version(t, alice))

	// Rebuilt from a fresh snapshot it goes through.
	p, err = e.client.Normalize(e.ctx, alice.wallet.Address(), asset, alice.kp)
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)
	e.requireBalance(t, alice, 5, 1000)
}

func TestRejectedPayloadsLeaveStateUntouched(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t), e.user(t)
	e.deposit(t, alice, 4000)
	ps, err := e.client.SafeRollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)
	p, err := e.client.Normalize(e.ctx, alice.wallet.Address(), asset, alice.kp)
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)
	before := e.version(t, alice)

	w, err := e.client.Withdraw(e.ctx, alice.wallet.Address(), asset, alice.kp, amt(1000))
	require.NoError(t, err)

	_, err = e.ledger.Submit(e.ctx, w, bob.wallet)
	require.True(t, errors.Is(err, ErrUnauthorized))

	w.Amount = amt(2000)
	_, err = e.ledger.Submit(e.ctx, w, alice.wallet)
	require.True(t, errors.Is(err, proof.ErrInvalidProof))

	require.Equal(t, before, e.version(t, alice))
	e.requireBalance(t, alice, 0, 4000)
	require.Zero(t, e.public(alice))
}

func TestSafeRollover(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t)

	e.deposit(t, alice, 0xffff)
	ps, err := e.client.Rollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)
	e.deposit(t, alice, 0xffff)

	_, err = e.client.Rollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.True(t, errors.Is(err, confidential.ErrNotNormalized))

	ps, err = e.client.SafeRollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	require.Equal(t, confidential.OpNormalize, ps[0].Op)
	require.Equal(t, confidential.OpRollover, ps[1].Op)
	e.execute(t, alice.wallet, ps...)
	e.requireBalance(t, alice, 0, 0x1fffe)
}

func TestRotateKey(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t), e.user(t)
	e.deposit(t, alice, 7000)
	ps, err := e.client.Rollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)
	e.deposit(t, alice, 300)

	next, err := elgamal.GenerateKeyPair(testGroup)
	require.NoError(t, err)
	ps, err = e.client.RotateKey(e.ctx, alice.wallet.Address(), asset, alice.kp, next, false)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	require.Equal(t, confidential.OpNormalize, ps[0].Op)
	require.True(t, ps[1].Freeze)
	require.Equal(t, confidential.OpRotateKey, ps[2].Op)
	e.execute(t, alice.wallet, ps...)

	_, err = e.client.Balance(e.ctx, alice.wallet.Address(), asset, alice.kp)
	require.True(t, errors.Is(err, proof.ErrStateMismatch))
	alice.kp = next
	e.requireBalance(t, alice, 0, 7300)

	frozen, err := e.ledger.IsFrozen(e.ctx, alice.wallet.Address(), asset)
	require.NoError(t, err)
	require.True(t, frozen)

	_, err = e.client.Deposit(e.ctx, alice.wallet.Address(), asset, amt(1))
	require.True(t, errors.Is(err, confidential.ErrFrozen))
	require.NoError(t, e.ledger.Mint(bob.wallet.Address(), asset, amt(1)))
	_, err = e.ledger.Submit(e.ctx, &confidential.Payload{
		Op:      confidential.OpDeposit,
		Account: alice.wallet.Address(),
		Asset:   asset,
		Amount:  amt(1),
	}, bob.wallet)
	require.True(t, errors.Is(err, confidential.ErrFrozen))

	// Already frozen with nothing pending: only the rotation is needed.
	last, err := elgamal.GenerateKeyPair(testGroup)
	require.NoError(t, err)
	ps, err = e.client.RotateKey(e.ctx, alice.wallet.Address(), asset, alice.kp, last, true)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	e.execute(t, alice.wallet, ps...)
	alice.kp = last
	e.requireBalance(t, alice, 0, 7300)

	frozen, err = e.ledger.IsFrozen(e.ctx, alice.wallet.Address(), asset)
	require.NoError(t, err)
	require.False(t, frozen)
	e.deposit(t, alice, 1)
}

func TestGlobalAuditorEnforced(t *testing.T) {
	e := newEnv(t)
	alice, bob, auditor := e.user(t), e.user(t), e.user(t)
	e.deposit(t, alice, 900)
	ps, err := e.client.SafeRollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)
	p, err := e.client.Normalize(e.ctx, alice.wallet.Address(), asset, alice.kp)
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)

	p, err = e.client.Transfer(e.ctx, alice.wallet.Address(), asset, alice.kp, amt(100), bob.wallet.Address(), nil)
	require.NoError(t, err)
	require.Empty(t, p.Auditors)

	e.ledger.SetAuditor(asset, auditor.kp.EncryptionKey)
	_, err = e.ledger.Submit(e.ctx, p, alice.wallet)
	require.True(t, errors.Is(err, proof.ErrInvalidProof))
	e.requireBalance(t, bob, 0, 0)
}

func TestPendingCreditLimit(t *testing.T) {
	e := newEnv(t, WithMaxPendingCredits(2))
	alice := e.user(t)
	e.deposit(t, alice, 1)
	e.deposit(t, alice, 1)

	require.NoError(t, e.ledger.Mint(alice.wallet.Address(), asset, amt(1)))
	p, err := e.client.Deposit(e.ctx, alice.wallet.Address(), asset, amt(1))
	require.NoError(t, err)
	_, err = e.ledger.Submit(e.ctx, p, alice.wallet)
	require.True(t, errors.Is(err, ErrPendingFull))
	require.Equal(t, uint64(1), e.public(alice))

	ps, err := e.client.Rollover(e.ctx, alice.wallet.Address(), asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)
	e.execute(t, alice.wallet, p)
	e.requireBalance(t, alice, 1, 2)
}

func TestDepositNeedsFunds(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t)
	p, err := e.client.Deposit(e.ctx, alice.wallet.Address(), asset, amt(10))
	require.NoError(t, err)
	_, err = e.ledger.Submit(e.ctx, p, alice.wallet)
	require.True(t, errors.Is(err, ErrInsufficientFunds))
}

func TestFullPendingStaysDecryptable(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t)
	addr := alice.wallet.Address()

	// Every chunk but the top one at 0xffff.
	full := amt(1<<48 - 1)
	e.depositBig(t, alice, full)
	ps, err := e.client.Rollover(e.ctx, addr, asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)
	for i := 0; i < testCredits; i++ {
		e.depositBig(t, alice, full)
	}

	require.NoError(t, e.ledger.Mint(addr, asset, amt(1)))
	p, err := e.client.Deposit(e.ctx, addr, asset, amt(1))
	require.NoError(t, err)
	_, err = e.ledger.Submit(e.ctx, p, alice.wallet)
	require.True(t, errors.Is(err, ErrPendingFull))

	b := e.balance(t, alice)
	require.Zero(t, b.Pending.Cmp(new(big.Int).Mul(full, big.NewInt(testCredits))))

	// The normalization and the rollover both land.
	ps, err = e.client.SafeRollover(e.ctx, addr, asset, alice.kp, false)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	e.execute(t, alice.wallet, ps...)

	snap, err := e.ledger.Account(e.ctx, addr, asset)
	require.NoError(t, err)
	chunks, err := chunk.DecryptChunks(testGroup, snap.Actual, alice.kp.DecryptionKey, e.engine)
	require.NoError(t, err)
	require.Equal(t, []uint64{4 * 0xffff, 4 * 0xffff, 4 * 0xffff, 0}, chunks)

	total := new(big.Int).Mul(full, big.NewInt(testCredits+1))
	b = e.balance(t, alice)
	require.Zero(t, b.Actual.Cmp(total))
	require.Zero(t, b.Pending.Sign())

	p, err = e.client.Normalize(e.ctx, addr, asset, alice.kp)
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)

	p, err = e.client.Withdraw(e.ctx, addr, asset, alice.kp, total)
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)
	require.Zero(t, e.ledger.PublicBalance(addr, asset).Cmp(new(big.Int).Add(total, amt(1))))
	e.requireBalance(t, alice, 0, 0)
}

func TestSubmitNilSigner(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t)
	require.NoError(t, e.ledger.Mint(alice.wallet.Address(), asset, amt(10)))
	p, err := e.client.Deposit(e.ctx, alice.wallet.Address(), asset, amt(10))
	require.NoError(t, err)

	_, err = e.ledger.Submit(e.ctx, p, nil)
	require.True(t, errors.Is(err, ErrUnauthorized))
	require.Equal(t, uint64(10), e.public(alice))
}

func TestPublicBalanceBeyondUint64(t *testing.T) {
	e := newLayoutEnv(t, chunk.Params{Bits: 16, Count: 6})
	alice := e.user(t)
	addr := alice.wallet.Address()
	wide := new(big.Int).Lsh(big.NewInt(1), 64)

	require.NoError(t, e.ledger.Mint(addr, asset, amt(1<<64-1)))
	require.NoError(t, e.ledger.Mint(addr, asset, amt(2)))
	require.Zero(t, e.ledger.PublicBalance(addr, asset).Cmp(new(big.Int).Add(wide, amt(1))))

	p, err := e.client.Deposit(e.ctx, addr, asset, amt(2))
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)
	require.Equal(t, uint64(1<<64-1), e.public(alice))

	ps, err := e.client.Rollover(e.ctx, addr, asset, alice.kp, false)
	require.NoError(t, err)
	e.execute(t, alice.wallet, ps...)
	p, err = e.client.Normalize(e.ctx, addr, asset, alice.kp)
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)

	// The withdrawal carries the public balance past 2^64 without wrapping.
	p, err = e.client.Withdraw(e.ctx, addr, asset, alice.kp, amt(2))
	require.NoError(t, err)
	e.execute(t, alice.wallet, p)
	require.Zero(t, e.ledger.PublicBalance(addr, asset).Cmp(new(big.Int).Add(wide, amt(1))))

	err = e.ledger.Mint(addr, asset, big.NewInt(-1))
	require.True(t, errors.Is(err, ErrInvalidAmount))
	err = e.ledger.Mint(addr, asset, nil)
	require.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestSupplyBoundedByLayout(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t), e.user(t)
	limit := e.params.Chunks.Max()

	require.NoError(t, e.ledger.Mint(alice.wallet.Address(), asset, limit))
	err := e.ledger.Mint(bob.wallet.Address(), asset, amt(1))
	require.True(t, errors.Is(err, ErrSupplyExceeded))
	require.Zero(t, e.public(bob))

	// A forged deposit or withdrawal amount is refused before any proof.
	p := &confidential.Payload{Op: confidential.OpDeposit, Account: alice.wallet.Address(), Asset: asset, Amount: big.NewInt(-5)}
	_, err = e.ledger.Submit(e.ctx, p, alice.wallet)
	require.True(t, errors.Is(err, ErrInvalidAmount))
	p = &confidential.Payload{Op: confidential.OpWithdraw, Account: alice.wallet.Address(), Asset: asset, Amount: big.NewInt(-5)}
	_, err = e.ledger.Submit(e.ctx, p, alice.wallet)
	require.True(t, errors.Is(err, ErrInvalidAmount))
	require.Equal(t, limit.Uint64(), e.public(alice))
}
