package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/takakv/confbal/config"
	"github.com/takakv/confbal/dlog"
	"github.com/takakv/confbal/group"
	"github.com/takakv/confbal/proof"
	"github.com/urfave/cli/v2"
)

// deployment is everything a client or the ledger needs from the config.
type deployment struct {
	cfg    *config.Config
	group  group.Group
	params *proof.Params
	engine *dlog.Engine
	log    zerolog.Logger
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(c *cli.Context, cfg *config.Config) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: c.App.ErrWriter}).
		Level(cfg.Level()).
		With().Timestamp().Logger()
}

func setup(cfg *config.Config, log zerolog.Logger) (*deployment, error) {
	g, err := cfg.GroupImpl()
	if err != nil {
		return nil, err
	}
	params, err := cfg.ProofParams(g)
	if err != nil {
		return nil, errors.Wrap(err, "proof parameters")
	}
	engine, err := cfg.Engine(g, log)
	if err != nil {
		return nil, errors.Wrap(err, "decryption engine")
	}
	return &deployment{cfg: cfg, group: g, params: params, engine: engine, log: log}, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "confbal",
		Usage:     "confidential balances over twisted ElGamal",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML deployment config",
				EnvVars: []string{"CONFBAL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			gentableCommand(),
			inspectCommand(),
			demoCommand(),
		},
	}
}

func main() {
	if err := newApp().RunContext(context.Background(), os.Args); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Fatal().Err(err).Msg("confbal")
	}
}
