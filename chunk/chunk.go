// Package chunk splits amounts into fixed-width little-endian chunks and
// manages chunked ElGamal encryptions of them.
//
// An amount a is written as a = sum(a_i * 2^(k*i)) with 0 <= a_i < 2^k. Each
// chunk is encrypted separately, so decryption only needs discrete
// logarithms of k-bit values. Homomorphic additions can push chunks past
// 2^k; Normalize restores the canonical form.
package chunk

import (
	"encoding/json"
	"math/big"
	"math/bits"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/util"
)

// ErrAmountTooLarge is returned for amounts that do not fit the chunk layout.
var ErrAmountTooLarge = errors.New("amount too large")

const (
	// MaxBits bounds the chunk width. Chunks are recovered by bounded
	// discrete log search, and a pending chunk holds many credits on top of
	// the width, so wider chunks would be out of the solvers' reach.
	MaxBits = 32
	// MaxTotalBits bounds k*N. A transfer proves that the weighted new chunks
	// plus the weighted amount chunks equal the old balance modulo the group
	// order, which is only sound while both sums stay far below it.
	MaxTotalBits = 248
)

// Params is a chunk layout: Count chunks of Bits bits each.
type Params struct {
	Bits  uint `yaml:"bits" json:"bits"`
	Count int  `yaml:"count" json:"count"`
}

// Validate checks that the layout is usable.
func (p Params) Validate() error {
	if p.Bits == 0 || p.Bits > MaxBits {
		return errors.Errorf("chunk width %d outside [1, %d]", p.Bits, MaxBits)
	}
	if p.Count <= 0 {
		return errors.Errorf("chunk count %d must be positive", p.Count)
	}
	if p.TotalBits() > MaxTotalBits {
		return errors.Errorf("%d chunks of %d bits exceed %d bits", p.Count, p.Bits, MaxTotalBits)
	}
	return nil
}

// TotalBits is Bits * Count.
func (p Params) TotalBits() uint {
	return p.Bits * uint(p.Count)
}

// SumBits is the width of a chunk that is the sum of n canonical chunks.
func (p Params) SumBits(n int) uint {
	if n <= 1 {
		return p.Bits
	}
	return p.Bits + uint(bits.Len(uint(n-1)))
}

// Max returns the largest representable amount, 2^(k*N) - 1.
func (p Params) Max() *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), p.TotalBits())
	return m.Sub(m, big.NewInt(1))
}

// Fits reports whether amount is in [0, 2^(k*N)).
func (p Params) Fits(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0 && amount.BitLen() <= int(p.TotalBits())
}

// Weights returns 2^(k*i) mod n for each chunk index.
func (p Params) Weights(n *big.Int) []*big.Int {
	return util.PowersOfTwo(p.Bits, p.Count, n)
}

// Split decomposes amount into chunks.
func (p Params) Split(amount *big.Int) ([]uint64, error) {
	if amount == nil {
		return nil, errors.Wrap(ErrAmountTooLarge, "missing amount")
	}
	if !p.Fits(amount) {
		return nil, errors.Wrapf(ErrAmountTooLarge, "%s outside [0, 2^%d)", amount, p.TotalBits())
	}
	return util.Decompose(amount, p.Bits, p.Count), nil
}

// Join recomposes chunks, which may exceed the chunk width.
func (p Params) Join(chunks []uint64) *big.Int {
	return util.Compose(chunks, p.Bits)
}

// Amount is a chunked encryption: one ciphertext per chunk, least
// significant first.
type Amount struct {
	Chunks []*elgamal.Ciphertext `json:"chunks"`
}

// Zero returns the randomness-free encryption of zero.
func Zero(g group.Group, p Params) *Amount {
	a := &Amount{Chunks: make([]*elgamal.Ciphertext, p.Count)}
	for i := range a.Chunks {
		a.Chunks[i] = elgamal.Zero(g)
	}
	return a
}

// Trivial returns the randomness-free encryption of a public amount.
func Trivial(g group.Group, p Params, amount *big.Int) (*Amount, error) {
	chunks, err := p.Split(amount)
	if err != nil {
		return nil, err
	}
	a := &Amount{Chunks: make([]*elgamal.Ciphertext, p.Count)}
	for i, c := range chunks {
		a.Chunks[i] = elgamal.TrivialEncrypt(g, c)
	}
	return a, nil
}

// Encrypt encrypts amount under pk with fresh randomness per chunk and
// returns the chunk values and randomness used.
func Encrypt(g group.Group, p Params, amount *big.Int, pk group.Element) (*Amount, []uint64, []*big.Int, error) {
	chunks, err := p.Split(amount)
	if err != nil {
		return nil, nil, nil, err
	}
	a, rs, err := EncryptChunks(g, p, chunks, pk, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, chunks, rs, nil
}

// EncryptChunks encrypts already split chunks. If rs is nil fresh
// randomness is sampled; otherwise rs[i] is used for chunk i, which lets
// several recipients share the D components.
func EncryptChunks(g group.Group, p Params, chunks []uint64, pk group.Element, rs []*big.Int) (*Amount, []*big.Int, error) {
	if len(chunks) != p.Count {
		return nil, nil, errors.Errorf("%d chunks, layout has %d", len(chunks), p.Count)
	}
	if rs != nil && len(rs) != p.Count {
		return nil, nil, errors.Errorf("%d randomness values for %d chunks", len(rs), p.Count)
	}

	a := &Amount{Chunks: make([]*elgamal.Ciphertext, p.Count)}
	used := make([]*big.Int, p.Count)
	for i, c := range chunks {
		var r *big.Int
		if rs != nil {
			r = rs[i]
		}
		ct, ri, err := elgamal.Encrypt(g, c, p.Bits, pk, r)
		if err != nil {
			return nil, nil, err
		}
		a.Chunks[i] = ct
		used[i] = ri
	}
	return a, used, nil
}

// Len is the number of chunks.
func (a *Amount) Len() int {
	return len(a.Chunks)
}

// Add returns the chunk-wise sum of a and b.
func Add(g group.Group, a, b *Amount) (*Amount, error) {
	if a.Len() != b.Len() {
		return nil, errors.Errorf("adding amounts of %d and %d chunks", a.Len(), b.Len())
	}
	sum := &Amount{Chunks: make([]*elgamal.Ciphertext, a.Len())}
	for i := range a.Chunks {
		sum.Chunks[i] = elgamal.Add(g, a.Chunks[i], b.Chunks[i])
	}
	return sum, nil
}

// Weighted returns sum(w_i * C_i) and sum(w_i * D_i), the ciphertext of the
// whole amount.
func (a *Amount) Weighted(g group.Group, weights []*big.Int) *elgamal.Ciphertext {
	cs := make([]group.Element, a.Len())
	ds := make([]group.Element, a.Len())
	for i, ct := range a.Chunks {
		cs[i] = ct.C
		ds[i] = ct.D
	}
	return &elgamal.Ciphertext{
		C: group.MultiScale(g, cs, weights),
		D: group.MultiScale(g, ds, weights),
	}
}

// IsZero reports whether every chunk is the randomness-free zero.
func (a *Amount) IsZero() bool {
	for _, ct := range a.Chunks {
		if !ct.IsZero() {
			return false
		}
	}
	return true
}

// IsEqual reports whether both amounts have identical ciphertexts.
func (a *Amount) IsEqual(b *Amount) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Chunks {
		if !a.Chunks[i].IsEqual(b.Chunks[i]) {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of a.
func (a *Amount) Copy(g group.Group) *Amount {
	c := &Amount{Chunks: make([]*elgamal.Ciphertext, a.Len())}
	for i, ct := range a.Chunks {
		c.Chunks[i] = ct.Copy(g)
	}
	return c
}

// Bytes concatenates the chunk encodings.
func (a *Amount) Bytes() []byte {
	var out []byte
	for _, ct := range a.Chunks {
		out = append(out, ct.Bytes()...)
	}
	return out
}

// FromBytes decodes the output of Amount.Bytes for layout p.
func FromBytes(g group.Group, p Params, b []byte) (*Amount, error) {
	l := 2 * g.ElementLen()
	if len(b) != l*p.Count {
		return nil, errors.Wrapf(group.ErrInvalidEncoding, "amount must be %d bytes, got %d", l*p.Count, len(b))
	}
	a := &Amount{Chunks: make([]*elgamal.Ciphertext, p.Count)}
	for i := range a.Chunks {
		ct, err := elgamal.CiphertextFromBytes(g, b[i*l:(i+1)*l])
		if err != nil {
			return nil, err
		}
		a.Chunks[i] = ct
	}
	return a, nil
}

type amountJSON struct {
	Chunks []json.RawMessage `json:"chunks"`
}

// AmountUnmarshalJSON decodes a JSON amount into elements of g.
func AmountUnmarshalJSON(b []byte, g group.Group) (*Amount, error) {
	tmp := amountJSON{}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return nil, errors.Wrap(group.ErrInvalidEncoding, err.Error())
	}
	a := &Amount{Chunks: make([]*elgamal.Ciphertext, len(tmp.Chunks))}
	for i, raw := range tmp.Chunks {
		ct, err := elgamal.CiphertextUnmarshalJSON(raw, g)
		if err != nil {
			return nil, err
		}
		a.Chunks[i] = ct
	}
	return a, nil
}
