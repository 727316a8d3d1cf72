package elgamal

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

type ciphertextJSON struct {
	C json.RawMessage `json:"c"`
	D json.RawMessage `json:"d"`
}

// Bytes encodes ct as C || D.
func (ct *Ciphertext) Bytes() []byte {
	return append(ct.C.Bytes(), ct.D.Bytes()...)
}

// CiphertextFromBytes decodes the output of Ciphertext.Bytes.
func CiphertextFromBytes(g group.Group, b []byte) (*Ciphertext, error) {
	l := g.ElementLen()
	if len(b) != 2*l {
		return nil, errors.Wrapf(group.ErrInvalidEncoding, "ciphertext must be %d bytes, got %d", 2*l, len(b))
	}
	c, err := group.ElementFromBytes(g, b[:l])
	if err != nil {
		return nil, err
	}
	d, err := group.ElementFromBytes(g, b[l:])
	if err != nil {
		return nil, err
	}
	return &Ciphertext{C: c, D: d}, nil
}

// CiphertextUnmarshalJSON decodes a JSON ciphertext into elements of g.
func CiphertextUnmarshalJSON(b []byte, g group.Group) (*Ciphertext, error) {
	tmp := ciphertextJSON{}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return nil, errors.Wrap(group.ErrInvalidEncoding, err.Error())
	}

	ct := &Ciphertext{
		C: g.Element(),
		D: g.Element(),
	}
	if err := ct.C.UnmarshalJSON(tmp.C); err != nil {
		return nil, err
	}
	if err := ct.D.UnmarshalJSON(tmp.D); err != nil {
		return nil, err
	}
	return ct, nil
}
