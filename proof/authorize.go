package proof

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
)

// Withdrawal is the output of ProveWithdrawal, ProveNormalization and
// ProveKeyRotation: a fresh normalized encryption of the remaining balance.
type Withdrawal struct {
	NewBalance *chunk.Amount `json:"new_balance"`
	Proof      *Bundle       `json:"proof"`
}

// Transfer is the output of ProveTransfer. Amount is under the recipient's
// key and Audited[t] under auditor t's key, all sharing D components.
type Transfer struct {
	NewBalance *chunk.Amount   `json:"new_balance"`
	Amount     *chunk.Amount   `json:"amount"`
	Audited    []*chunk.Amount `json:"audited"`
	Proof      *Bundle         `json:"proof"`
}

// ProveWithdrawal authorizes removing amount from a balance that decrypts to
// value under kp. ctx binds the proof to its account and asset.
func ProveWithdrawal(params *Params, kp *elgamal.KeyPair, balance *chunk.Amount, value, amount *big.Int, ctx []byte) (*Withdrawal, error) {
	if err := checkState(params, kp, balance, value); err != nil {
		return nil, err
	}
	if err := checkSpend(params, value, amount); err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(value, amount)
	next, err := encryptOpening(params, remaining, kp.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return proveBalance(params, labelWithdrawal, kp, nil, balance, amount, next, ctx)
}

// VerifyWithdrawal checks a withdrawal of the public amount from balance.
func VerifyWithdrawal(params *Params, pk group.Element, balance *chunk.Amount, amount *big.Int, w *Withdrawal, ctx []byte) error {
	if !params.Chunks.Fits(amount) {
		return errors.Wrapf(ErrInvalidProof, "withdrawal amount %v out of range", amount)
	}
	return verifyBalance(params, labelWithdrawal, pk, nil, balance, amount, w, ctx)
}

// ProveNormalization re-encrypts balance in canonical chunks under the same
// key. The balance is decrypted with rec, so its chunks may exceed the chunk
// width.
func ProveNormalization(params *Params, kp *elgamal.KeyPair, balance *chunk.Amount, rec chunk.Recoverer, ctx []byte) (*Withdrawal, error) {
	next, err := normalizeOpening(params, kp, kp.EncryptionKey, balance, rec)
	if err != nil {
		return nil, err
	}
	return proveBalance(params, labelNormalization, kp, nil, balance, nil, next, ctx)
}

func VerifyNormalization(params *Params, pk group.Element, balance *chunk.Amount, w *Withdrawal, ctx []byte) error {
	return verifyBalance(params, labelNormalization, pk, nil, balance, nil, w, ctx)
}

// ProveKeyRotation re-encrypts balance under newKP in canonical chunks. The
// proof also shows knowledge of the new decryption key.
func ProveKeyRotation(params *Params, kp, newKP *elgamal.KeyPair, balance *chunk.Amount, rec chunk.Recoverer, ctx []byte) (*Withdrawal, error) {
	if err := newKP.Validate(params.Group); err != nil {
		return nil, errors.Wrap(err, "new keypair")
	}
	next, err := normalizeOpening(params, kp, newKP.EncryptionKey, balance, rec)
	if err != nil {
		return nil, err
	}
	return proveBalance(params, labelKeyRotation, kp, newKP, balance, nil, next, ctx)
}

func VerifyKeyRotation(params *Params, pk, newPK group.Element, balance *chunk.Amount, w *Withdrawal, ctx []byte) error {
	if newPK == nil {
		return errors.Wrap(ErrInvalidProof, "missing new key")
	}
	return verifyBalance(params, labelKeyRotation, pk, newPK, balance, nil, w, ctx)
}

// opening is a fresh chunked encryption together with what it encrypts.
type opening struct {
	amount *chunk.Amount
	values []uint64
	rs     []*big.Int
	total  *big.Int
}

func encryptOpening(params *Params, v *big.Int, pk group.Element) (*opening, error) {
	a, values, rs, err := chunk.Encrypt(params.Group, params.Chunks, v, pk)
	if err != nil {
		return nil, err
	}
	return &opening{amount: a, values: values, rs: rs, total: v}, nil
}

func normalizeOpening(params *Params, kp *elgamal.KeyPair, pk group.Element, balance *chunk.Amount, rec chunk.Recoverer) (*opening, error) {
	if err := kp.Validate(params.Group); err != nil {
		return nil, errors.Wrap(ErrStateMismatch, err.Error())
	}
	if balance == nil || balance.Len() != params.Chunks.Count {
		return nil, errors.Wrapf(ErrStateMismatch, "balance must have %d chunks", params.Chunks.Count)
	}
	a, values, rs, total, err := chunk.Normalize(params.Group, params.Chunks, balance, kp.DecryptionKey, pk, rec)
	if err != nil {
		return nil, err
	}
	return &opening{amount: a, values: values, rs: rs, total: total}, nil
}

// checkSpend rejects amounts outside [0, value].
func checkSpend(params *Params, value, amount *big.Int) error {
	if !params.Chunks.Fits(amount) {
		return errors.Wrapf(chunk.ErrAmountTooLarge, "amount %v", amount)
	}
	if amount.Cmp(value) > 0 {
		return errors.Wrapf(ErrInsufficientBalance, "%s requested, %s available", amount, value)
	}
	return nil
}

// proveBalance proves that next encrypts the value of balance minus delta.
// A nil delta is zero.
func proveBalance(params *Params, label string, kp, newKP *elgamal.KeyPair, balance *chunk.Amount, delta *big.Int, next *opening, ctx []byte) (*Withdrawal, error) {
	value := new(big.Int).Set(next.total)
	if delta != nil {
		value.Add(value, delta)
	}
	if err := checkState(params, kp, balance, value); err != nil {
		return nil, err
	}

	target := kp
	if newKP != nil {
		target = newKP
	}
	gammas, rp, err := proveRange(params, next.values)
	if err != nil {
		return nil, err
	}

	st := &statement{
		label:       label,
		key:         kp.EncryptionKey,
		balance:     balance,
		delta:       delta,
		newKey:      target.EncryptionKey,
		newBalance:  next.amount,
		commitments: rp.Commitments,
		rotate:      newKP != nil,
	}
	rel, err := st.relation(params)
	if err != nil {
		return nil, err
	}

	l := st.layout(params.Chunks.Count)
	x := make([]*big.Int, l.size())
	x[l.sk()] = kp.DecryptionKey
	for i, v := range scalars(next.values) {
		x[l.value(i)] = v
		x[l.rand(i)] = next.rs[i]
		x[l.gamma(i)] = gammas[i]
	}
	if newKP != nil {
		x[l.newKey()] = newKP.DecryptionKey
	}

	sigma, err := rel.prove(x, ctx)
	if err != nil {
		return nil, err
	}
	return &Withdrawal{
		NewBalance: next.amount,
		Proof:      &Bundle{Sigma: sigma, Ranges: []RangeProof{rp}},
	}, nil
}

func verifyBalance(params *Params, label string, pk, newPK group.Element, balance *chunk.Amount, delta *big.Int, w *Withdrawal, ctx []byte) error {
	if w == nil || w.Proof == nil || len(w.Proof.Ranges) != 1 {
		return errors.Wrap(ErrInvalidProof, "incomplete proof bundle")
	}
	newKey := pk
	if newPK != nil {
		newKey = newPK
	}
	st := &statement{
		label:       label,
		key:         pk,
		balance:     balance,
		delta:       delta,
		newKey:      newKey,
		newBalance:  w.NewBalance,
		commitments: w.Proof.Ranges[0].Commitments,
		rotate:      newPK != nil,
	}
	rel, err := st.relation(params)
	if err != nil {
		return err
	}
	if err := rel.verify(w.Proof.Sigma, ctx); err != nil {
		return err
	}
	return verifyRange(params, w.Proof.Ranges[0])
}

// ProveTransfer authorizes moving amount from a balance that decrypts to
// value under kp to recipient, with one extra encryption per auditor.
func ProveTransfer(params *Params, kp *elgamal.KeyPair, balance *chunk.Amount, value, amount *big.Int, recipient group.Element, auditors []group.Element, ctx []byte) (*Transfer, error) {
	g := params.Group
	if err := checkState(params, kp, balance, value); err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, errors.New("missing recipient key")
	}
	if err := checkSpend(params, value, amount); err != nil {
		return nil, err
	}

	newBalance, values, rs, err := chunk.Encrypt(g, params.Chunks, new(big.Int).Sub(value, amount), kp.EncryptionKey)
	if err != nil {
		return nil, err
	}
	sent, amounts, rhos, err := chunk.Encrypt(g, params.Chunks, amount, recipient)
	if err != nil {
		return nil, err
	}
	audited := make([]*chunk.Amount, len(auditors))
	for t, pk := range auditors {
		if pk == nil {
			return nil, errors.Errorf("missing auditor key %d", t)
		}
		if audited[t], _, err = chunk.EncryptChunks(g, params.Chunks, amounts, pk, rhos); err != nil {
			return nil, err
		}
	}

	gammas, balanceRange, err := proveRange(params, values)
	if err != nil {
		return nil, err
	}
	amountGammas, amountRange, err := proveRange(params, amounts)
	if err != nil {
		return nil, err
	}

	st := &statement{
		label:       labelTransfer,
		key:         kp.EncryptionKey,
		balance:     balance,
		newKey:      kp.EncryptionKey,
		newBalance:  newBalance,
		commitments: balanceRange.Commitments,
		transfer: &transferStatement{
			recipient:   recipient,
			auditors:    auditors,
			amount:      sent,
			audited:     audited,
			commitments: amountRange.Commitments,
		},
	}
	rel, err := st.relation(params)
	if err != nil {
		return nil, err
	}

	l := st.layout(params.Chunks.Count)
	x := make([]*big.Int, l.size())
	x[l.sk()] = kp.DecryptionKey
	for i, v := range scalars(values) {
		x[l.value(i)] = v
		x[l.rand(i)] = rs[i]
		x[l.gamma(i)] = gammas[i]
	}
	for j, a := range scalars(amounts) {
		x[l.amount(j)] = a
		x[l.rho(j)] = rhos[j]
		x[l.amountGamma(j)] = amountGammas[j]
	}

	sigma, err := rel.prove(x, ctx)
	if err != nil {
		return nil, err
	}
	return &Transfer{
		NewBalance: newBalance,
		Amount:     sent,
		Audited:    audited,
		Proof:      &Bundle{Sigma: sigma, Ranges: []RangeProof{balanceRange, amountRange}},
	}, nil
}

// VerifyTransfer checks a transfer out of balance, held under pk.
func VerifyTransfer(params *Params, pk, recipient group.Element, auditors []group.Element, balance *chunk.Amount, t *Transfer, ctx []byte) error {
	if t == nil || t.Proof == nil || len(t.Proof.Ranges) != 2 {
		return errors.Wrap(ErrInvalidProof, "incomplete proof bundle")
	}
	st := &statement{
		label:       labelTransfer,
		key:         pk,
		balance:     balance,
		newKey:      pk,
		newBalance:  t.NewBalance,
		commitments: t.Proof.Ranges[0].Commitments,
		transfer: &transferStatement{
			recipient:   recipient,
			auditors:    auditors,
			amount:      t.Amount,
			audited:     t.Audited,
			commitments: t.Proof.Ranges[1].Commitments,
		},
	}
	rel, err := st.relation(params)
	if err != nil {
		return err
	}
	if err := rel.verify(t.Proof.Sigma, ctx); err != nil {
		return err
	}
	for _, rp := range t.Proof.Ranges {
		if err := verifyRange(params, rp); err != nil {
			return err
		}
	}
	return nil
}
