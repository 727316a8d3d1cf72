package ledger

import (
	"crypto/rand"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// Wallet is an ed25519 account key. Its address is the hex-encoded public
// key. Signatures are deterministic, so key derivation from a signature is
// repeatable.
type Wallet struct {
	priv ed25519.PrivateKey
	addr string
}

// NewWallet restores a wallet from its 32-byte seed.
func NewWallet(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{priv: priv, addr: hexutil.Encode(pub)}, nil
}

func GenerateWallet() (*Wallet, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return NewWallet(seed)
}

func (w *Wallet) Address() string { return w.addr }

func (w *Wallet) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(w.priv, msg), nil
}
