package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/chunk"
	"github.com/takakv/confbal/confidential"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/ledger"
	"github.com/urfave/cli/v2"
)

type demoAmounts struct {
	Deposit  *big.Int
	Withdraw *big.Int
	Transfer *big.Int
}

func parseAmount(c *cli.Context, name string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(c.String(name), 0)
	if !ok {
		return nil, errors.Errorf("--%s: %q is not an integer", name, c.String(name))
	}
	return v, nil
}

type participant struct {
	name   string
	wallet *ledger.Wallet
	kp     *elgamal.KeyPair
}

type demo struct {
	*deployment
	asset  string
	out    io.Writer
	ledger *ledger.Ledger
	client *confidential.Client
}

func newDemo(d *deployment, asset string, out io.Writer) *demo {
	led := ledger.New(d.params, ledger.WithLogger(d.log), ledger.WithMaxPendingCredits(d.cfg.MaxPendingCredits))
	return &demo{
		deployment: d,
		asset:      asset,
		out:        out,
		ledger:     led,
		client:     confidential.NewClient(d.params, d.engine, led, confidential.WithLogger(d.log)),
	}
}

// step builds the payloads of one user action and submits them, timing the
// proving and the verification separately.
func (d *demo) step(ctx context.Context, name string, p *participant, build func() ([]*confidential.Payload, error)) ([]*confidential.Payload, error) {
	start := time.Now()
	ps, err := build()
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	proveTime := time.Since(start)

	start = time.Now()
	if _, err := confidential.Execute(ctx, d.ledger, p.wallet, ps...); err != nil {
		return nil, errors.Wrap(err, name)
	}
	verifyTime := time.Since(start)

	d.log.Info().
		Str("step", name).
		Str("user", p.name).
		Int("payloads", len(ps)).
		Dur("prove", proveTime).
		Dur("verify", verifyTime).
		Msg("applied")
	return ps, nil
}

func single(p *confidential.Payload, err error) ([]*confidential.Payload, error) {
	if err != nil {
		return nil, err
	}
	return []*confidential.Payload{p}, nil
}

func (d *demo) join(ctx context.Context, name string) (*participant, error) {
	w, err := ledger.GenerateWallet()
	if err != nil {
		return nil, err
	}
	kp, err := confidential.DeriveKeyPair(d.group, w, d.asset)
	if err != nil {
		return nil, err
	}
	p := &participant{name: name, wallet: w, kp: kp}
	_, err = d.step(ctx, "register", p, func() ([]*confidential.Payload, error) {
		return single(d.client.Register(ctx, w.Address(), d.asset, kp))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *demo) balance(ctx context.Context, p *participant) (*confidential.Balance, error) {
	b, err := d.client.Balance(ctx, p.wallet.Address(), d.asset, p.kp)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(d.out, "%-8s pending %10d  actual %10d  public %10d\n",
		p.name, b.Pending, b.Actual, d.ledger.PublicBalance(p.wallet.Address(), d.asset))
	return b, nil
}

// run walks two users through every ledger operation and returns their
// final balances.
func (d *demo) run(ctx context.Context, amounts demoAmounts, dump bool) (map[string]*confidential.Balance, error) {
	auditor, err := elgamal.GenerateKeyPair(d.group)
	if err != nil {
		return nil, err
	}
	d.ledger.SetAuditor(d.asset, auditor.EncryptionKey)

	alice, err := d.join(ctx, "alice")
	if err != nil {
		return nil, err
	}
	bob, err := d.join(ctx, "bob")
	if err != nil {
		return nil, err
	}
	aliceAddr, bobAddr := alice.wallet.Address(), bob.wallet.Address()

	if err := d.ledger.Mint(aliceAddr, d.asset, amounts.Deposit); err != nil {
		return nil, err
	}
	_, err = d.step(ctx, "deposit", alice, func() ([]*confidential.Payload, error) {
		return single(d.client.Deposit(ctx, aliceAddr, d.asset, amounts.Deposit))
	})
	if err != nil {
		return nil, err
	}
	_, err = d.step(ctx, "rollover", alice, func() ([]*confidential.Payload, error) {
		return d.client.Rollover(ctx, aliceAddr, d.asset, alice.kp, false)
	})
	if err != nil {
		return nil, err
	}
	_, err = d.step(ctx, "normalize", alice, func() ([]*confidential.Payload, error) {
		return single(d.client.Normalize(ctx, aliceAddr, d.asset, alice.kp))
	})
	if err != nil {
		return nil, err
	}
	_, err = d.step(ctx, "withdraw", alice, func() ([]*confidential.Payload, error) {
		return single(d.client.Withdraw(ctx, aliceAddr, d.asset, alice.kp, amounts.Withdraw))
	})
	if err != nil {
		return nil, err
	}

	ps, err := d.step(ctx, "transfer", alice, func() ([]*confidential.Payload, error) {
		return single(d.client.Transfer(ctx, aliceAddr, d.asset, alice.kp, amounts.Transfer, bobAddr, nil))
	})
	if err != nil {
		return nil, err
	}
	transfer := ps[0]
	if dump {
		enc := json.NewEncoder(d.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(transfer); err != nil {
			return nil, err
		}
	}
	audited, err := chunk.Combine(d.group, d.params.Chunks, transfer.Transfer.Audited[0], auditor.DecryptionKey, d.engine)
	if err != nil {
		return nil, errors.Wrap(err, "auditor view")
	}
	fmt.Fprintf(d.out, "auditor  sees transfer of %d\n", audited)

	// Bob keeps his received funds through a key rotation.
	next, err := elgamal.GenerateKeyPair(d.group)
	if err != nil {
		return nil, err
	}
	_, err = d.step(ctx, "rotate", bob, func() ([]*confidential.Payload, error) {
		return d.client.RotateKey(ctx, bobAddr, d.asset, bob.kp, next, true)
	})
	if err != nil {
		return nil, err
	}
	bob.kp = next

	balances := make(map[string]*confidential.Balance, 2)
	for _, p := range []*participant{alice, bob} {
		b, err := d.balance(ctx, p)
		if err != nil {
			return nil, errors.Wrap(err, p.name)
		}
		balances[p.name] = b
	}
	return balances, nil
}

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "run deposit, withdraw, transfer and key rotation on an in-memory ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "asset", Value: "USD"},
			&cli.StringFlag{Name: "deposit", Value: "500000"},
			&cli.StringFlag{Name: "withdraw", Value: "200000"},
			&cli.StringFlag{Name: "transfer", Value: "100000"},
			&cli.BoolFlag{Name: "json", Usage: "print the transfer payload"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			var amounts demoAmounts
			for name, dst := range map[string]**big.Int{
				"deposit":  &amounts.Deposit,
				"withdraw": &amounts.Withdraw,
				"transfer": &amounts.Transfer,
			} {
				if *dst, err = parseAmount(c, name); err != nil {
					return err
				}
			}
			d, err := setup(cfg, newLogger(c, cfg))
			if err != nil {
				return err
			}
			_, err = newDemo(d, c.String("asset"), c.App.Writer).run(c.Context, amounts, c.Bool("json"))
			return err
		},
	}
}
