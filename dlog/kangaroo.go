package dlog

import (
	"encoding/binary"
	"math/big"
	"math/bits"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
	"golang.org/x/crypto/sha3"
)

const jumpSeedDomain = "confbal-v1-kangaroo-jumps"

// Kangaroo is a Pollard kangaroo solver with precomputed tame distinguished
// points, after Bernstein and Lange. Tame walks are run once, offline, and
// only the distinguished points they end on are kept. Solving runs a single
// wild walk from the target until it hits one of them.
type Kangaroo struct {
	g    group.Group
	meta TableMeta

	table    map[string]uint64
	jumps    []group.Element
	jumpLogs []uint64
	dpMask   uint64

	stepsPerAttempt uint64
	offsetBound     uint64
}

func newKangaroo(g group.Group, meta TableMeta) *Kangaroo {
	k := &Kangaroo{
		g:      g,
		meta:   meta,
		dpMask: 1<<meta.W - 1,
	}

	// Mean jump sqrt(B / (W*N)) balances wild walk length against the
	// density of tame points along it.
	logN := uint(bits.Len64(meta.N) - 1)
	var meanBits uint
	if meta.Bits > meta.W+logN {
		meanBits = (meta.Bits - meta.W - logN) / 2
	}
	mean := uint64(1) << meanBits

	seed := make([]byte, 0, len(jumpSeedDomain)+24)
	seed = append(seed, jumpSeedDomain...)
	seed = binary.BigEndian.AppendUint64(seed, uint64(meta.Bits))
	seed = binary.BigEndian.AppendUint64(seed, uint64(meta.W))
	seed = binary.BigEndian.AppendUint64(seed, meta.N)
	stream := make([]byte, 8*meta.R)
	sha3.ShakeSum256(stream, seed)

	k.jumps = make([]group.Element, meta.R)
	k.jumpLogs = make([]uint64, meta.R)
	for i := range k.jumps {
		l := 1 + binary.BigEndian.Uint64(stream[8*i:])%(2*mean)
		k.jumpLogs[i] = l
		k.jumps[i] = g.Element().BaseScale(new(big.Int).SetUint64(l))
	}

	w := uint64(1) << meta.W
	bound := uint64(1) << meta.Bits
	k.stepsPerAttempt = 4 * (bound/(meta.N*w) + w)
	k.offsetBound = 2 * mean * w
	return k
}

// walkWord selects the encoding bits that drive the walk. The first bytes of
// a ristretto encoding are biased (the low bit of byte 0 is always clear), so
// the word is taken from the middle of the encoding.
func walkWord(enc []byte) uint64 {
	return binary.LittleEndian.Uint64(enc[8:16])
}

func (k *Kangaroo) distinguished(word uint64) bool {
	return word&k.dpMask == 0
}

func (k *Kangaroo) jumpIndex(word uint64) int {
	return int((word >> k.meta.W) % uint64(k.meta.R))
}

// BuildKangarooTable runs the offline tame walks and collects up to meta.N
// distinguished points. Kind and Group are filled in from g.
func BuildKangarooTable(g group.Group, meta TableMeta) (*Table, error) {
	meta.Kind = KindKangaroo
	meta.Group = g.Name()
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if g.ElementLen() < 16 {
		return nil, errors.Wrapf(ErrInvalidTable, "%s elements too short for kangaroo walks", g.Name())
	}

	k := newKangaroo(g, meta)
	w := uint64(1) << meta.W
	maxWalk := 16 * w
	span := uint64(1)<<meta.Bits + k.offsetBound + k.stepsPerAttempt*2*k.meanJump()

	entries := make(map[string]uint64, meta.N)
	for launched := uint64(0); uint64(len(entries)) < meta.N && launched < 8*meta.N; launched++ {
		d := rand.Uint64N(span)
		p := g.Element().BaseScale(new(big.Int).SetUint64(d))
		for step := uint64(0); step < maxWalk; step++ {
			enc := p.Bytes()
			word := walkWord(enc)
			if k.distinguished(word) {
				entries[string(enc)] = d
				break
			}
			i := k.jumpIndex(word)
			p.Add(p, k.jumps[i])
			d += k.jumpLogs[i]
		}
	}
	if len(entries) == 0 {
		return nil, errors.Wrap(ErrInvalidTable, "no distinguished points found")
	}
	return &Table{Meta: meta, Entries: entries}, nil
}

func (k *Kangaroo) meanJump() uint64 {
	var sum uint64
	for _, l := range k.jumpLogs {
		sum += l
	}
	return sum/uint64(len(k.jumpLogs)) + 1
}

// NewKangaroo returns a solver over a kangaroo table.
func NewKangaroo(g group.Group, t *Table) (*Kangaroo, error) {
	if t.Meta.Kind != KindKangaroo {
		return nil, errors.Wrapf(ErrInvalidTable, "%s table given to kangaroo solver", t.Meta.Kind)
	}
	if err := t.validate(g); err != nil {
		return nil, err
	}
	k := newKangaroo(g, t.Meta)
	k.table = t.Entries
	return k, nil
}

func (k *Kangaroo) Bits() uint {
	return k.meta.Bits
}

// Solve starts wild walks at target + o*G for random o and stops at the first
// distinguished point that is also in the table. The budget caps the total
// number of steps over all attempts.
func (k *Kangaroo) Solve(target group.Element, budget uint64) (uint64, bool) {
	total := uint64(k.meta.MaxAttempts) * k.stepsPerAttempt
	if budget > 0 && budget < total {
		total = budget
	}
	bound := uint64(1) << k.meta.Bits

	var spent uint64
	for spent < total {
		d := rand.Uint64N(k.offsetBound)
		p := k.g.Element().BaseScale(new(big.Int).SetUint64(d))
		p.Add(p, target)

		for step := uint64(0); step < k.stepsPerAttempt && spent < total; step++ {
			spent++
			enc := p.Bytes()
			word := walkWord(enc)
			if k.distinguished(word) {
				if y, ok := k.table[string(enc)]; ok {
					// target = (y - d)*G; anything outside the bound means the
					// target was never a small multiple of G.
					if y < d || y-d >= bound {
						return 0, false
					}
					return y - d, true
				}
			}
			i := k.jumpIndex(word)
			p.Add(p, k.jumps[i])
			d += k.jumpLogs[i]
		}
	}
	return 0, false
}
