package group

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allGroups = []Group{
	Ristretto255(),
}

func TestGroup(t *testing.T) {
	const testTimes = 1 << 6
	for _, g := range allGroups {
		n := g.Name()
		t.Run(n+"/Neg", func(tt *testing.T) { testNeg(tt, testTimes, g) })
		t.Run(n+"/Order", func(tt *testing.T) { testOrder(tt, testTimes, g) })
		t.Run(n+"/Set", func(tt *testing.T) { testSet(tt, g) })
		t.Run(n+"/MarshalBinary", func(tt *testing.T) { testMarshalBinary(tt, testTimes, g) })
		t.Run(n+"/MarshalJSON", func(tt *testing.T) { testMarshalJSON(tt, testTimes, g) })
		t.Run(n+"/Scalar", func(tt *testing.T) { testScalar(tt, testTimes, g) })
	}
}

func testNeg(t *testing.T, testTimes int, g Group) {
	Q := g.Element()
	for i := 0; i < testTimes; i++ {
		P := g.Random()
		Q.Set(P)
		Q.Subtract(Q, P)
		if !Q.IsIdentity() {
			t.Error("testNeg | Got:", false, "Wanted:", true)
		}
	}
}

func testOrder(t *testing.T, testTimes int, g Group) {
	I := g.Identity()
	Q := g.Element()
	minusOne := big.NewInt(-1)
	for i := 0; i < testTimes; i++ {
		P := g.Random()

		Q.Scale(P, minusOne)
		got := Q.Add(Q, P)
		if !got.IsEqual(I) {
			t.Error("testOrder | Got:", got, "Wanted:", I)
		}
	}

	// Scaling by the order itself lands on the identity.
	require.True(t, g.Element().BaseScale(g.N()).IsIdentity())
}

func testSet(t *testing.T, g Group) {
	P := g.Random()
	Q := g.Element()
	Q.Set(P)
	if !Q.IsEqual(P) {
		t.Error("testSet | Got:", false, "Wanted:", true)
	}
}

func testMarshalBinary(t *testing.T, testTimes int, g Group) {
	I := g.Identity()
	got, err := I.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, got, g.ElementLen())

	II := g.Element()
	require.NoError(t, II.UnmarshalBinary(got))
	require.True(t, I.IsEqual(II))

	gotEl := g.Element()
	for i := 0; i < testTimes; i++ {
		x := g.Random()
		enc, err := x.MarshalBinary()
		require.NoError(t, err)

		require.NoError(t, gotEl.UnmarshalBinary(enc))
		if !x.IsEqual(gotEl) {
			t.Error("testMarshalBinary | Got:", gotEl, "Wanted:", x)
		}
	}
}

func testMarshalJSON(t *testing.T, testTimes int, g Group) {
	gotEl := g.Element()
	for i := 0; i < testTimes; i++ {
		x := g.Random()
		enc, err := x.MarshalJSON()
		require.NoError(t, err)

		require.NoError(t, gotEl.UnmarshalJSON(enc))
		if !x.IsEqual(gotEl) {
			t.Error("testMarshalJSON | Got:", gotEl, "Wanted:", x)
		}
	}
}

func testScalar(t *testing.T, testTimes int, g Group) {
	for i := 0; i < testTimes; i++ {
		s, err := g.RandomScalar()
		require.NoError(t, err)
		require.True(t, s.Sign() > 0)
		require.True(t, s.Cmp(g.N()) < 0)

		b := ScalarBytes(g, s)
		require.Len(t, b, g.ScalarLen())
		back, err := ScalarFromBytes(g, b)
		require.NoError(t, err)
		require.Zero(t, s.Cmp(back))
	}

	_, err := ScalarFromBytes(g, g.N().FillBytes(make([]byte, g.ScalarLen())))
	require.True(t, errors.Is(err, ErrInvalidEncoding))
}

func TestNewElements(t *testing.T) {
	els := []struct {
		name string
		el   func(Group) Element
	}{
		{"identity", func(g Group) Element { return g.Identity() }},
		{"generator", func(g Group) Element { return g.Generator() }},
		{"random", func(g Group) Element { return g.Random() }},
	}

	for _, g := range allGroups {
		for _, e := range els {
			t.Run(fmt.Sprintf("%s-%s", g.Name(), e.name), func(t *testing.T) {
				x := e.el(g)
				if x == nil {
					t.Error("new element")
				}
			})
		}
	}
}

func TestMath(t *testing.T) {
	g := Ristretto255()

	a := g.Element().BaseScale(big.NewInt(2))
	b := g.Element().Add(g.Generator(), g.Generator())
	assert.True(t, a.IsEqual(b), "doubling error")

	a = g.Element().Add(a, g.Generator())
	b = g.Element().BaseScale(big.NewInt(3))
	assert.True(t, a.IsEqual(b), "error in adding or scaling")

	e := g.Identity()
	r1 := g.Random()
	r2 := g.Random()
	e.Add(r1, r2)
	e.Subtract(e, r2)
	assert.True(t, e.IsEqual(r1), "error in subtracting")

	points := []Element{g.Generator(), g.Random()}
	scalars := []*big.Int{big.NewInt(5), big.NewInt(7)}
	want := g.Element().Add(g.Element().BaseScale(big.NewInt(5)), g.Element().Scale(points[1], big.NewInt(7)))
	assert.True(t, MultiScale(g, points, scalars).IsEqual(want))
}

func TestInvalidEncoding(t *testing.T) {
	g := Ristretto255()

	_, err := g.Element().SetBytes([]byte{1, 2, 3})
	require.True(t, errors.Is(err, ErrInvalidEncoding))

	// All-ones is not a canonical field element encoding.
	bad := make([]byte, g.ElementLen())
	for i := range bad {
		bad[i] = 0xff
	}
	_, err = g.Element().SetBytes(bad)
	require.True(t, errors.Is(err, ErrInvalidEncoding))

	err = g.Element().UnmarshalJSON([]byte(`"not hex"`))
	require.True(t, errors.Is(err, ErrInvalidEncoding))
}

func TestHashToScalar(t *testing.T) {
	g := Ristretto255()
	a := g.HashToScalar([]byte("msg"), "dst-a")
	b := g.HashToScalar([]byte("msg"), "dst-a")
	c := g.HashToScalar([]byte("msg"), "dst-b")
	require.Zero(t, a.Cmp(b))
	require.NotZero(t, a.Cmp(c))
	require.True(t, a.Cmp(g.N()) < 0)
}

func TestScalarJSON(t *testing.T) {
	in := Scalar{big.NewInt(123456789)}
	enc, err := json.Marshal(in)
	require.NoError(t, err)

	var out Scalar
	require.NoError(t, json.Unmarshal(enc, &out))
	require.Zero(t, in.Cmp(out.Int))
}
