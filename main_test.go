package main

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takakv/confbal/config"
	"github.com/takakv/confbal/confidential"
	"github.com/takakv/confbal/dlog"
	"gopkg.in/yaml.v3"
)

func testApp(out *bytes.Buffer) func(args ...string) error {
	return func(args ...string) error {
		app := newApp()
		app.Writer = out
		app.ErrWriter = io.Discard
		return app.Run(append([]string{"confbal"}, args...))
	}
}

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "confbal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func assertBalance(t *testing.T, b *confidential.Balance, pending, actual int64) {
	t.Helper()
	assert.Zero(t, b.Pending.Cmp(big.NewInt(pending)), "pending %s", b.Pending)
	assert.Zero(t, b.Actual.Cmp(big.NewInt(actual)), "actual %s", b.Actual)
}

func TestDemo(t *testing.T) {
	cfg := config.Default()
	cfg.RangeProof = config.RangeMock
	d, err := setup(cfg, zerolog.Nop())
	require.NoError(t, err)

	var out bytes.Buffer
	balances, err := newDemo(d, "USD", &out).run(context.Background(), demoAmounts{
		Deposit:  big.NewInt(500000),
		Withdraw: big.NewInt(200000),
		Transfer: big.NewInt(100000),
	}, false)
	require.NoError(t, err)
	assertBalance(t, balances["alice"], 0, 200000)
	assertBalance(t, balances["bob"], 0, 100000)
	assert.Contains(t, out.String(), "auditor  sees transfer of 100000")
}

func TestDemoRejectsOverdraft(t *testing.T) {
	cfg := config.Default()
	cfg.RangeProof = config.RangeMock
	d, err := setup(cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = newDemo(d, "USD", io.Discard).run(context.Background(), demoAmounts{
		Deposit:  big.NewInt(1000),
		Withdraw: big.NewInt(600),
		Transfer: big.NewInt(500),
	}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer")
}

func TestDemoCommand(t *testing.T) {
	path := writeConfig(t, "range_proof: mock\nlog_level: warn\n")

	var out bytes.Buffer
	run := testApp(&out)
	require.NoError(t, run("--config", path, "demo", "--deposit", "9000", "--withdraw", "1000", "--transfer", "500", "--json"))
	assert.Contains(t, out.String(), `"op": "transfer"`)
	assert.Contains(t, out.String(), "auditor  sees transfer of 500")

	require.Error(t, run("--config", path, "demo", "--deposit", "lots"))
}

func TestDemoWideAmounts(t *testing.T) {
	cfg := config.Default()
	cfg.RangeProof = config.RangeMock
	cfg.Chunks.Count = 6
	d, err := setup(cfg, zerolog.Nop())
	require.NoError(t, err)

	// Past what a uint64 holds.
	deposit := new(big.Int).Lsh(big.NewInt(1), 80)
	balances, err := newDemo(d, "USD", io.Discard).run(context.Background(), demoAmounts{
		Deposit:  deposit,
		Withdraw: new(big.Int).Lsh(big.NewInt(1), 79),
		Transfer: new(big.Int).Lsh(big.NewInt(1), 78),
	}, false)
	require.NoError(t, err)
	assert.Zero(t, balances["alice"].Actual.Cmp(new(big.Int).Lsh(big.NewInt(1), 78)))
	assert.Zero(t, balances["bob"].Actual.Cmp(new(big.Int).Lsh(big.NewInt(1), 78)))
}

func TestGentableInspect(t *testing.T) {
	dir := t.TempDir()
	bsgs := filepath.Join(dir, "bsgs.tbl")
	kangaroo := filepath.Join(dir, "kangaroo.tbl")

	var out bytes.Buffer
	run := testApp(&out)
	require.NoError(t, run("gentable", "--bits", "20", "--out", bsgs))
	require.NoError(t, run("gentable", "--kind", "kangaroo", "--bits", "24", "--n", "64",
		"--w", "4", "--r", "16", "--attempts", "8", "--chunk-bits", "8", "--out", kangaroo))
	require.Error(t, run("gentable", "--kind", "rho", "--out", filepath.Join(dir, "x.tbl")))

	require.NoError(t, run("inspect", bsgs))
	var s tableSummary
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &s))
	assert.Equal(t, tableSummary{
		Kind:        dlog.KindBSGS,
		Group:       "ristretto255",
		ChunkBits:   16,
		Bits:        20,
		N:           1 << 10,
		MaxAttempts: 1,
		Entries:     1 << 10,
	}, s)

	out.Reset()
	require.NoError(t, run("inspect", kangaroo))
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &s))
	assert.Equal(t, dlog.KindKangaroo, s.Kind)
	assert.Equal(t, uint(8), s.ChunkBits)
	assert.Equal(t, uint(4), s.W)
	assert.NotZero(t, s.Entries)

	require.Error(t, run("inspect"))
	require.Error(t, run("inspect", filepath.Join(dir, "missing.tbl")))

	// A table from the command line plugs into the decryption cascade.
	path := writeConfig(t, "range_proof: mock\nmax_pending_credits: 15\nstages:\n  - bits: 8\n  - table: "+bsgs+"\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	_, err = setup(cfg, zerolog.Nop())
	require.NoError(t, err)
}
