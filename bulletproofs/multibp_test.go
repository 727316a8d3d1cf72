package bulletproofs

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func setupRange(t *testing.T, capacity int) *Params {
	params, err := Setup(testGroup, capacity)
	require.NoError(t, err)
	return params
}

func blindings(t *testing.T, m int) []*big.Int {
	gammas := make([]*big.Int, m)
	for i := range gammas {
		g, err := testGroup.RandomScalar()
		require.NoError(t, err)
		gammas[i] = g
	}
	return gammas
}

func proveAndVerifyRanges(t *testing.T, params *Params, vals []uint64, bits int) bool {
	gammas := blindings(t, len(vals))
	proof, Vs, err := MultiProve(params, vals, gammas, bits)
	require.NoError(t, err)
	for j, v := range vals {
		require.True(t, Vs[j].IsEqual(params.Commit(v, gammas[j])))
	}
	ok, err := proof.Verify(params, Vs, bits)
	require.NoError(t, err)
	return ok
}

func TestXYWithinRange(t *testing.T) {
	params := setupRange(t, 64)
	require.True(t, proveAndVerifyRanges(t, params, []uint64{3, 15}, 32))
	require.True(t, proveAndVerifyRanges(t, params, []uint64{0, 1<<16 - 1, 500000 & 0xffff, 7}, 16))
	require.True(t, proveAndVerifyRanges(t, params, []uint64{1<<64 - 1}, 64))
}

func TestPaddedAggregate(t *testing.T) {
	// 3 x 16 bits is padded to 64 for the inner product.
	params := setupRange(t, 64)
	require.True(t, proveAndVerifyRanges(t, params, []uint64{1, 2, 65535}, 16))
}

func TestOutOfRange(t *testing.T) {
	params := setupRange(t, 64)
	_, _, err := MultiProve(params, []uint64{1 << 16}, blindings(t, 1), 16)
	require.True(t, errors.Is(err, ErrValueOutOfRange))

	_, _, err = MultiProve(params, []uint64{1, 2, 3}, blindings(t, 3), 32)
	require.True(t, errors.Is(err, ErrMalformedProof))

	_, _, err = MultiProve(params, []uint64{1, 2}, blindings(t, 1), 16)
	require.Error(t, err)
}

func TestTamperedProof(t *testing.T) {
	params := setupRange(t, 64)
	vals := []uint64{10, 20, 30, 40}
	proof, Vs, err := MultiProve(params, vals, blindings(t, 4), 16)
	require.NoError(t, err)

	// Swapped commitments.
	Vs2 := append(Vs[:0:0], Vs...)
	Vs2[0], Vs2[1] = Vs2[1], Vs2[0]
	ok, err := proof.Verify(params, Vs2, 16)
	require.NoError(t, err)
	require.False(t, ok)

	// Commitment to a different value.
	Vs3 := append(Vs[:0:0], Vs...)
	Vs3[2] = testGroup.Element().Add(Vs[2], params.G)
	ok, err = proof.Verify(params, Vs3, 16)
	require.NoError(t, err)
	require.False(t, ok)

	// Wrong bit length.
	ok, err = proof.Verify(params, Vs, 8)
	require.NoError(t, err)
	require.False(t, ok)

	// Tampered response.
	proof.Taux = new(big.Int).Add(proof.Taux, big.NewInt(1))
	ok, err = proof.Verify(params, Vs, 16)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMarshalBinary(t *testing.T) {
	params := setupRange(t, 64)
	vals := []uint64{5, 6}
	proof, Vs, err := MultiProve(params, vals, blindings(t, 2), 16)
	require.NoError(t, err)

	b, err := proof.MarshalBinary(testGroup)
	require.NoError(t, err)
	back, err := UnmarshalBinary(testGroup, b)
	require.NoError(t, err)

	ok, err := back.Verify(params, Vs, 16)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = UnmarshalBinary(testGroup, b[:len(b)-1])
	require.Error(t, err)
	_, err = UnmarshalBinary(testGroup, append(b, 0))
	require.True(t, errors.Is(err, ErrMalformedProof))
}
