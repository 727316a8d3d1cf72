package rangeproof

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/takakv/confbal/group"
)

var testGroup = group.Ristretto255()

func systems(t *testing.T) []System {
	bp, err := NewBulletproofs(testGroup, 64)
	require.NoError(t, err)
	mock, err := NewMock(testGroup)
	require.NoError(t, err)
	return []System{bp, mock}
}

func statement(t *testing.T, h group.Element, values []uint64) ([]*big.Int, []group.Element) {
	gammas := make([]*big.Int, len(values))
	commitments := make([]group.Element, len(values))
	for i, v := range values {
		g, err := testGroup.RandomScalar()
		require.NoError(t, err)
		gammas[i] = g
		commitments[i] = Commit(testGroup, h, v, g)
	}
	return gammas, commitments
}

func TestSystems(t *testing.T) {
	h, err := PedersenBase(testGroup)
	require.NoError(t, err)

	for _, s := range systems(t) {
		t.Run(s.Name(), func(t *testing.T) {
			require.True(t, s.Base().IsEqual(h))

			values := []uint64{0xa120, 7, 0, 0}
			gammas, commitments := statement(t, h, values)

			blob, err := s.ProveRange(values, gammas, 16)
			require.NoError(t, err)

			ok, err := s.VerifyRange(blob, commitments, 16)
			require.NoError(t, err)
			require.True(t, ok)

			moved := append(commitments[:0:0], commitments...)
			moved[1] = testGroup.Element().Add(moved[1], testGroup.Generator())
			ok, _ = s.VerifyRange(blob, moved, 16)
			require.False(t, ok)

			_, err = s.ProveRange([]uint64{1 << 16}, gammas[:1], 16)
			require.True(t, errors.Is(err, ErrRangeProofUnavailable))

			ok, err = s.VerifyRange(blob[1:], commitments, 16)
			require.False(t, ok)
			require.Error(t, err)
		})
	}
}
