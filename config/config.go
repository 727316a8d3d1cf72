// Package config loads deployment settings: the group, the chunk layout,
// the range proof backend and the discrete-log cascade.
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/dlog"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/proof"
	"github.com/takakv/confbal/rangeproof"
	"gopkg.in/yaml.v3"
)

const (
	RangeBulletproofs = "bulletproofs"
	RangeMock         = "mock"
)

// Stage is one solver of the cascade. With Table set the solver comes from
// a table artifact on disk; otherwise a baby-step table of Bits bits is
// built in memory.
type Stage struct {
	Table  string `yaml:"table,omitempty"`
	Bits   uint   `yaml:"bits,omitempty"`
	Budget uint64 `yaml:"budget,omitempty"`
}

type Config struct {
	Group      string       `yaml:"group"`
	Chunks     chunk.Params `yaml:"chunks"`
	RangeProof string       `yaml:"range_proof"`
	LogLevel   string       `yaml:"log_level"`
	Stages     []Stage      `yaml:"stages"`
	// MaxPendingCredits is the number of credits an account accepts
	// between rollovers. It sets how wide the cascade has to reach.
	MaxPendingCredits int `yaml:"max_pending_credits"`
}

// Default is a 4x16-bit layout over Ristretto255 decrypted by in-memory
// tables. 1024 pending credits need a 27-bit reach.
func Default() *Config {
	return &Config{
		Group:             "ristretto255",
		Chunks:            chunk.Params{Bits: 16, Count: 4},
		RangeProof:        RangeBulletproofs,
		LogLevel:          "info",
		Stages:            []Stage{{Bits: 16}, {Bits: 28}},
		MaxPendingCredits: 1 << 10,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(b []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := group.ByName(c.Group); err != nil {
		return err
	}
	if err := c.Chunks.Validate(); err != nil {
		return err
	}
	switch c.RangeProof {
	case RangeBulletproofs, RangeMock:
	default:
		return errors.Errorf("unknown range proof backend %q", c.RangeProof)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	if c.MaxPendingCredits <= 0 {
		return errors.Errorf("max_pending_credits must be positive, got %d", c.MaxPendingCredits)
	}
	if len(c.Stages) == 0 {
		return errors.New("at least one solver stage is required")
	}
	for i, s := range c.Stages {
		switch {
		case s.Table == "" && s.Bits == 0:
			return errors.Errorf("stage %d: needs a table or a bound", i)
		case s.Table != "" && s.Bits != 0:
			return errors.Errorf("stage %d: table and bits are exclusive", i)
		}
		if i > 0 && s.Bits != 0 && c.Stages[i-1].Bits >= s.Bits {
			return errors.Errorf("stage %d: bounds must increase", i)
		}
	}
	return nil
}

// Reach is the chunk width the cascade must cover: the actual balance plus
// a full pending balance, added by a rollover before normalization.
func (c *Config) Reach() uint {
	return c.Chunks.SumBits(c.MaxPendingCredits + 1)
}

func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func (c *Config) GroupImpl() (group.Group, error) {
	return group.ByName(c.Group)
}

// RangeSystem returns the configured range proof backend. Bulletproofs
// generators cover one aggregated proof over all chunks.
func (c *Config) RangeSystem(g group.Group) (rangeproof.System, error) {
	if c.RangeProof == RangeMock {
		return rangeproof.NewMock(g)
	}
	return rangeproof.NewBulletproofs(g, int(c.Chunks.TotalBits()))
}

func (c *Config) ProofParams(g group.Group) (*proof.Params, error) {
	rs, err := c.RangeSystem(g)
	if err != nil {
		return nil, err
	}
	return proof.NewParams(g, c.Chunks, rs)
}

// Engine builds the discrete-log cascade. Tables must have been generated
// for this group and chunk width, and the widest stage must cover Reach.
func (c *Config) Engine(g group.Group, log zerolog.Logger) (*dlog.Engine, error) {
	stages := make([]dlog.Stage, 0, len(c.Stages))
	for i, s := range c.Stages {
		solver, err := c.solver(g, s)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %d", i)
		}
		stages = append(stages, dlog.Stage{Solver: solver, Budget: s.Budget})
	}
	e, err := dlog.NewEngine(g, stages, dlog.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if e.Bits() < c.Reach() {
		return nil, errors.Errorf("widest stage covers %d bits, %d pending credits of %d-bit chunks need %d",
			e.Bits(), c.MaxPendingCredits, c.Chunks.Bits, c.Reach())
	}
	return e, nil
}

func (c *Config) solver(g group.Group, s Stage) (dlog.Solver, error) {
	if s.Table == "" {
		t, err := dlog.BuildBabyStepTable(g, s.Bits, c.Chunks.Bits)
		if err != nil {
			return nil, err
		}
		bsgs, err := dlog.NewBabyStepGiantStep(g, t)
		if err != nil {
			return nil, err
		}
		return bsgs, nil
	}

	t, err := LoadTable(s.Table, g)
	if err != nil {
		return nil, err
	}
	if t.Meta.ChunkBits != c.Chunks.Bits {
		return nil, errors.Wrapf(dlog.ErrInvalidTable, "%s built for %d-bit chunks, deployment uses %d",
			s.Table, t.Meta.ChunkBits, c.Chunks.Bits)
	}
	var solver dlog.Solver
	switch t.Meta.Kind {
	case dlog.KindBSGS:
		solver, err = dlog.NewBabyStepGiantStep(g, t)
	case dlog.KindKangaroo:
		solver, err = dlog.NewKangaroo(g, t)
	default:
		err = errors.Wrapf(dlog.ErrInvalidTable, "unknown kind %q", t.Meta.Kind)
	}
	if err != nil {
		return nil, err
	}
	return solver, nil
}

// LoadTable reads a table artifact from path.
func LoadTable(path string, g group.Group) (*dlog.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := dlog.ReadTable(f, g)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return t, nil
}
