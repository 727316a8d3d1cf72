package dlog

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

// babyStepCount is m = 2^ceil(bits/2), so m baby steps and at most m giant
// steps cover [0, 2^bits).
func babyStepCount(bits uint) uint64 {
	return 1 << ((bits + 1) / 2)
}

// BuildBabyStepTable precomputes {j*G -> j} for j in [0, m).
func BuildBabyStepTable(g group.Group, bits, chunkBits uint) (*Table, error) {
	meta := TableMeta{
		Kind:        KindBSGS,
		Group:       g.Name(),
		ChunkBits:   chunkBits,
		Bits:        bits,
		N:           babyStepCount(bits),
		MaxAttempts: 1,
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	entries := make(map[string]uint64, meta.N)
	p := g.Identity()
	gen := g.Generator()
	for j := uint64(0); j < meta.N; j++ {
		entries[string(p.Bytes())] = j
		p.Add(p, gen)
	}
	return &Table{Meta: meta, Entries: entries}, nil
}

// BabyStepGiantStep is a deterministic solver over a baby step table.
type BabyStepGiantStep struct {
	g     group.Group
	bits  uint
	m     uint64
	giant group.Element
	table map[string]uint64
}

// NewBabyStepGiantStep returns a solver over a table built by
// BuildBabyStepTable or read with ReadTable.
func NewBabyStepGiantStep(g group.Group, t *Table) (*BabyStepGiantStep, error) {
	if t.Meta.Kind != KindBSGS {
		return nil, errors.Wrapf(ErrInvalidTable, "%s table given to baby step solver", t.Meta.Kind)
	}
	if err := t.validate(g); err != nil {
		return nil, err
	}

	giant := g.Element().BaseScale(new(big.Int).SetUint64(t.Meta.N))
	giant.Negate(giant)

	return &BabyStepGiantStep{
		g:     g,
		bits:  t.Meta.Bits,
		m:     t.Meta.N,
		giant: giant,
		table: t.Entries,
	}, nil
}

func (s *BabyStepGiantStep) Bits() uint {
	return s.bits
}

// Solve walks target, target - mG, target - 2mG, ... until it lands in the
// baby step table. The budget caps the number of giant steps.
func (s *BabyStepGiantStep) Solve(target group.Element, budget uint64) (uint64, bool) {
	bound := uint64(1) << s.bits
	giants := (bound + s.m - 1) / s.m
	if budget > 0 && budget < giants {
		giants = budget
	}

	cur := s.g.Element().Set(target)
	for i := uint64(0); i < giants; i++ {
		if j, ok := s.table[string(cur.Bytes())]; ok {
			x := i*s.m + j
			return x, x < bound
		}
		cur.Add(cur, s.giant)
	}
	return 0, false
}
