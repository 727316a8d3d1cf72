package chunk

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
	"golang.org/x/sync/errgroup"
)

// Recoverer turns v*G back into v. dlog.Engine is the production one.
type Recoverer interface {
	Recover(target group.Element) (uint64, error)
}

// maxParallel bounds concurrent discrete log searches per amount.
const maxParallel = 8

// DecryptChunks decrypts every chunk of a under sk. Chunks are independent,
// so they are recovered concurrently.
func DecryptChunks(g group.Group, a *Amount, sk *big.Int, rec Recoverer) ([]uint64, error) {
	values := make([]uint64, a.Len())

	var eg errgroup.Group
	eg.SetLimit(maxParallel)
	for i, ct := range a.Chunks {
		eg.Go(func() error {
			v, err := rec.Recover(elgamal.Decrypt(g, ct, sk))
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// Combine decrypts a and returns the amount it encrypts. Unnormalized
// chunks are allowed: the chunk values are recombined with carries.
func Combine(g group.Group, p Params, a *Amount, sk *big.Int, rec Recoverer) (*big.Int, error) {
	values, err := DecryptChunks(g, a, sk, rec)
	if err != nil {
		return nil, err
	}
	return p.Join(values), nil
}

// Normalize decrypts a and re-encrypts its amount in canonical chunks under
// pk. It returns the new amount, its chunk values, the randomness used and
// the decrypted total.
func Normalize(g group.Group, p Params, a *Amount, sk *big.Int, pk group.Element, rec Recoverer) (*Amount, []uint64, []*big.Int, *big.Int, error) {
	total, err := Combine(g, p, a, sk, rec)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	normalized, chunks, rs, err := Encrypt(g, p, total, pk)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "decrypted balance")
	}
	return normalized, chunks, rs, total, nil
}
