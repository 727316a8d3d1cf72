// Package transcript implements Fiat-Shamir transcripts. Every message is
// absorbed with its label and length, and every challenge is fed back in, so
// a challenge commits to everything the prover sent before it.
package transcript

import (
	"encoding/binary"
	"math/big"

	"github.com/takakv/confbal/group"
	"golang.org/x/crypto/sha3"
)

const challengeLen = 64

// Transcript accumulates prover messages. The zero value is not usable; use
// New.
type Transcript struct {
	buf []byte
}

// New starts a transcript bound to a protocol label.
func New(protocol string) *Transcript {
	t := &Transcript{}
	t.AppendMessage("protocol", []byte(protocol))
	return t
}

// AppendMessage absorbs a labelled message.
func (t *Transcript) AppendMessage(label string, msg []byte) {
	t.buf = binary.BigEndian.AppendUint32(t.buf, uint32(len(label)))
	t.buf = append(t.buf, label...)
	t.buf = binary.BigEndian.AppendUint32(t.buf, uint32(len(msg)))
	t.buf = append(t.buf, msg...)
}

func (t *Transcript) AppendUint64(label string, v uint64) {
	t.AppendMessage(label, binary.BigEndian.AppendUint64(nil, v))
}

func (t *Transcript) AppendElement(label string, e group.Element) {
	t.AppendMessage(label, e.Bytes())
}

// AppendElements absorbs the count and then each element.
func (t *Transcript) AppendElements(label string, es []group.Element) {
	t.AppendUint64(label, uint64(len(es)))
	for _, e := range es {
		t.AppendElement(label, e)
	}
}

func (t *Transcript) AppendScalar(label string, g group.Group, s *big.Int) {
	t.AppendMessage(label, group.ScalarBytes(g, s))
}

// Challenge derives a scalar from everything absorbed so far and absorbs
// it.
func (t *Transcript) Challenge(label string, g group.Group) *big.Int {
	t.AppendMessage("challenge", []byte(label))
	out := make([]byte, challengeLen)
	sha3.ShakeSum256(out, t.buf)

	c := new(big.Int).SetBytes(out)
	c.Mod(c, g.N())
	t.AppendScalar(label, g, c)
	return c
}
