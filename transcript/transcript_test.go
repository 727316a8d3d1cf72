package transcript

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/takakv/confbal/group"
)

var testGroup = group.Ristretto255()

func TestDeterministic(t *testing.T) {
	run := func(msg string) (*big.Int, *big.Int) {
		tr := New("test")
		tr.AppendMessage("m", []byte(msg))
		tr.AppendElement("g", testGroup.Generator())
		tr.AppendScalar("s", testGroup, big.NewInt(5))
		a := tr.Challenge("a", testGroup)
		b := tr.Challenge("b", testGroup)
		return a, b
	}

	a1, b1 := run("hello")
	a2, b2 := run("hello")
	require.Zero(t, a1.Cmp(a2))
	require.Zero(t, b1.Cmp(b2))
	require.NotZero(t, a1.Cmp(b1))
	require.Equal(t, -1, a1.Cmp(testGroup.N()))

	a3, _ := run("hellp")
	require.NotZero(t, a1.Cmp(a3))
}

func TestLabelsAndLengthsBind(t *testing.T) {
	t1 := New("p")
	t1.AppendMessage("ab", []byte("c"))
	t2 := New("p")
	t2.AppendMessage("a", []byte("bc"))
	require.NotZero(t, t1.Challenge("x", testGroup).Cmp(t2.Challenge("x", testGroup)))

	t3 := New("p")
	t3.AppendElements("v", []group.Element{testGroup.Generator()})
	t4 := New("p")
	t4.AppendElement("v", testGroup.Generator())
	require.NotZero(t, t3.Challenge("x", testGroup).Cmp(t4.Challenge("x", testGroup)))

	require.NotZero(t, New("p").Challenge("x", testGroup).Cmp(New("q").Challenge("x", testGroup)))
}
