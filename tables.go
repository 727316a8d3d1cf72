package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/config"
	"github.com/takakv/confbal/dlog"
	"github.com/takakv/confbal/group"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

type tableSummary struct {
	Kind        string `yaml:"kind"`
	Group       string `yaml:"group"`
	ChunkBits   uint   `yaml:"chunk_bits"`
	Bits        uint   `yaml:"bits"`
	N           uint64 `yaml:"n"`
	W           uint   `yaml:"w,omitempty"`
	R           uint   `yaml:"r,omitempty"`
	MaxAttempts uint   `yaml:"max_attempts,omitempty"`
	Entries     int    `yaml:"entries"`
}

func summarize(t *dlog.Table) tableSummary {
	return tableSummary{
		Kind:        t.Meta.Kind,
		Group:       t.Meta.Group,
		ChunkBits:   t.Meta.ChunkBits,
		Bits:        t.Meta.Bits,
		N:           t.Meta.N,
		W:           t.Meta.W,
		R:           t.Meta.R,
		MaxAttempts: t.Meta.MaxAttempts,
		Entries:     len(t.Entries),
	}
}

func buildTable(g group.Group, c *cli.Context, chunkBits uint) (*dlog.Table, error) {
	switch kind := c.String("kind"); kind {
	case dlog.KindBSGS:
		return dlog.BuildBabyStepTable(g, c.Uint("bits"), chunkBits)
	case dlog.KindKangaroo:
		return dlog.BuildKangarooTable(g, dlog.TableMeta{
			ChunkBits:   chunkBits,
			Bits:        c.Uint("bits"),
			N:           c.Uint64("n"),
			W:           c.Uint("w"),
			R:           c.Uint("r"),
			MaxAttempts: c.Uint("attempts"),
		})
	default:
		return nil, errors.Errorf("unknown table kind %q", kind)
	}
}

func writeTable(path string, t *dlog.Table) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := t.WriteTo(f)
	if err != nil {
		f.Close()
		return n, errors.Wrap(err, path)
	}
	return n, f.Close()
}

func gentableCommand() *cli.Command {
	return &cli.Command{
		Name:  "gentable",
		Usage: "precompute a discrete log table",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Value: dlog.KindBSGS, Usage: "bsgs or kangaroo"},
			&cli.UintFlag{Name: "bits", Value: 32, Usage: "search bound in bits"},
			&cli.UintFlag{Name: "chunk-bits", Usage: "chunk width, defaults to the config"},
			&cli.Uint64Flag{Name: "n", Value: 1 << 14, Usage: "kangaroo: distinguished points"},
			&cli.UintFlag{Name: "w", Value: 8, Usage: "kangaroo: distinguished point bits"},
			&cli.UintFlag{Name: "r", Value: 64, Usage: "kangaroo: jump table size"},
			&cli.UintFlag{Name: "attempts", Value: 40, Usage: "kangaroo: wild walk restarts"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output file"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			log := newLogger(c, cfg)
			g, err := cfg.GroupImpl()
			if err != nil {
				return err
			}
			chunkBits := cfg.Chunks.Bits
			if c.IsSet("chunk-bits") {
				chunkBits = c.Uint("chunk-bits")
			}

			t, err := buildTable(g, c, chunkBits)
			if err != nil {
				return err
			}
			n, err := writeTable(c.String("out"), t)
			if err != nil {
				return err
			}
			log.Info().
				Str("kind", t.Meta.Kind).
				Uint("bits", t.Meta.Bits).
				Int("entries", len(t.Entries)).
				Int64("bytes", n).
				Str("out", c.String("out")).
				Msg("table written")
			return nil
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print the parameters of a table file",
		ArgsUsage: "TABLE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("inspect takes exactly one table file")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			g, err := cfg.GroupImpl()
			if err != nil {
				return err
			}
			t, err := config.LoadTable(c.Args().First(), g)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(c.App.Writer)
			defer enc.Close()
			return enc.Encode(summarize(t))
		},
	}
}
