package dlog

import (
	"math/big"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
)

// Stage is one step of the cascade. A zero Budget uses the solver's default.
type Stage struct {
	Solver Solver
	Budget uint64
}

// Engine tries its stages in order of increasing search bound and returns the
// first hit.
type Engine struct {
	g      group.Group
	stages []Stage
	log    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-stage debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine builds an engine over the given stages.
func NewEngine(g group.Group, stages []Stage, opts ...Option) (*Engine, error) {
	if len(stages) == 0 {
		return nil, errors.New("engine needs at least one stage")
	}
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Solver.Bits() < sorted[j].Solver.Bits()
	})

	e := &Engine{g: g, stages: sorted, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewBabyStepEngine builds in-memory baby step tables for each bound and
// cascades over them.
func NewBabyStepEngine(g group.Group, chunkBits uint, bounds ...uint) (*Engine, error) {
	stages := make([]Stage, 0, len(bounds))
	for _, b := range bounds {
		t, err := BuildBabyStepTable(g, b, chunkBits)
		if err != nil {
			return nil, err
		}
		s, err := NewBabyStepGiantStep(g, t)
		if err != nil {
			return nil, err
		}
		stages = append(stages, Stage{Solver: s})
	}
	return NewEngine(g, stages)
}

// Bits is the largest bound any stage can solve.
func (e *Engine) Bits() uint {
	return e.stages[len(e.stages)-1].Solver.Bits()
}

// Recover returns v with v*G equal to target.
func (e *Engine) Recover(target group.Element) (uint64, error) {
	if target.IsIdentity() {
		return 0, nil
	}

	for i, st := range e.stages {
		start := time.Now()
		v, ok := st.Solver.Solve(target, st.Budget)
		e.log.Debug().
			Int("stage", i).
			Uint("bits", st.Solver.Bits()).
			Bool("found", ok).
			Dur("took", time.Since(start)).
			Msg("dlog stage")
		if ok {
			return v, nil
		}
	}
	return 0, errors.Wrapf(ErrDecryptionFailed, "no stage up to %d bits found the logarithm", e.Bits())
}

// RecoverBytes decodes a canonical element encoding and recovers its
// logarithm.
func (e *Engine) RecoverBytes(b []byte) (uint64, error) {
	target, err := group.ElementFromBytes(e.g, b)
	if err != nil {
		return 0, err
	}
	return e.Recover(target)
}

// Decrypt decrypts ct under sk and recovers the plaintext.
func (e *Engine) Decrypt(ct *elgamal.Ciphertext, sk *big.Int) (uint64, error) {
	return e.Recover(elgamal.Decrypt(e.g, ct, sk))
}
