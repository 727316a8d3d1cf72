package dlog

import (
	"bufio"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

const (
	KindBSGS     = "bsgs"
	KindKangaroo = "kangaroo"

	// TableVersion is bumped whenever the artifact layout or the way solvers
	// interpret table parameters changes.
	TableVersion uint16 = 1

	tableMagic = "CBDLOG"

	maxSearchBits   = 56
	maxKangarooW    = 24
	maxKangarooR    = 1024
	maxTableEntries = 1 << 28
)

// ErrInvalidTable is returned for malformed or inconsistent table artifacts.
var ErrInvalidTable = errors.New("invalid discrete log table")

// TableMeta is the shape of a precomputed table. Decryption is only correct
// when the solver, the table and the deployment's chunk width agree, so all
// of it travels with the table.
type TableMeta struct {
	Kind  string
	Group string
	// ChunkBits is the deployment chunk width k the table was built for.
	ChunkBits uint
	// Bits is the search bound: the table solves logarithms below 2^Bits.
	Bits uint
	// N is the number of table entries (baby steps or distinguished points).
	N uint64
	// W is the distinguished point parameter: a point is distinguished when
	// W selected bits of its encoding are zero.
	W uint
	// R is the number of distinct kangaroo jumps.
	R uint
	// MaxAttempts bounds the number of wild kangaroo restarts.
	MaxAttempts uint
}

// Validate checks the parameters independently of any entries.
func (m TableMeta) Validate() error {
	if m.Bits == 0 || m.Bits > maxSearchBits {
		return errors.Wrapf(ErrInvalidTable, "search bound of %d bits", m.Bits)
	}
	if m.ChunkBits == 0 || m.ChunkBits > 32 {
		return errors.Wrapf(ErrInvalidTable, "chunk width %d", m.ChunkBits)
	}
	if m.N == 0 || m.N > maxTableEntries {
		return errors.Wrapf(ErrInvalidTable, "table size %d", m.N)
	}

	switch m.Kind {
	case KindBSGS:
		if m.N != babyStepCount(m.Bits) {
			return errors.Wrapf(ErrInvalidTable, "baby step table for %d bits needs %d entries, has %d",
				m.Bits, babyStepCount(m.Bits), m.N)
		}
	case KindKangaroo:
		if m.W == 0 || m.W > maxKangarooW {
			return errors.Wrapf(ErrInvalidTable, "distinguished point parameter %d", m.W)
		}
		if m.R == 0 || m.R > maxKangarooR {
			return errors.Wrapf(ErrInvalidTable, "jump table size %d", m.R)
		}
		if m.MaxAttempts == 0 {
			return errors.Wrap(ErrInvalidTable, "max attempts must be positive")
		}
	default:
		return errors.Wrapf(ErrInvalidTable, "unknown kind %q", m.Kind)
	}
	return nil
}

// Table is a precomputed point -> logarithm map plus its shape.
type Table struct {
	Meta    TableMeta
	Entries map[string]uint64
}

func (t *Table) validate(g group.Group) error {
	if err := t.Meta.Validate(); err != nil {
		return err
	}
	if t.Meta.Group != g.Name() {
		return errors.Wrapf(ErrInvalidTable, "table built for group %q, not %q", t.Meta.Group, g.Name())
	}
	if uint64(len(t.Entries)) > t.Meta.N {
		return errors.Wrapf(ErrInvalidTable, "%d entries exceed table size %d", len(t.Entries), t.Meta.N)
	}
	if t.Meta.Kind == KindBSGS && uint64(len(t.Entries)) != t.Meta.N {
		return errors.Wrapf(ErrInvalidTable, "baby step table has %d of %d entries", len(t.Entries), t.Meta.N)
	}
	return nil
}

// WriteTo writes the table in its binary artifact format. Entries are sorted
// so the same table always produces the same bytes.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}

	cw.write([]byte(tableMagic))
	cw.u16(TableVersion)
	cw.str(t.Meta.Kind)
	cw.str(t.Meta.Group)
	cw.u8(uint8(t.Meta.ChunkBits))
	cw.u8(uint8(t.Meta.Bits))
	cw.u64(t.Meta.N)
	cw.u8(uint8(t.Meta.W))
	cw.u16(uint16(t.Meta.R))
	cw.u32(uint32(t.Meta.MaxAttempts))

	keys := make([]string, 0, len(t.Entries))
	for k := range t.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	elemLen := 0
	if len(keys) > 0 {
		elemLen = len(keys[0])
	}
	cw.u64(uint64(len(keys)))
	cw.u8(uint8(elemLen))
	for _, k := range keys {
		if len(k) != elemLen {
			return cw.n, errors.Wrap(ErrInvalidTable, "mixed element lengths")
		}
		cw.write([]byte(k))
		cw.u64(t.Entries[k])
	}

	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, cw.w.(*bufio.Writer).Flush()
}

// ReadTable reads a table artifact for group g.
func ReadTable(r io.Reader, g group.Group) (*Table, error) {
	br := &tableReader{r: bufio.NewReader(r)}

	magic := br.bytes(len(tableMagic))
	if br.err == nil && string(magic) != tableMagic {
		return nil, errors.Wrap(ErrInvalidTable, "bad magic")
	}
	if v := br.u16(); br.err == nil && v != TableVersion {
		return nil, errors.Wrapf(ErrInvalidTable, "table format version %d, want %d", v, TableVersion)
	}

	var t Table
	t.Meta.Kind = br.str()
	t.Meta.Group = br.str()
	t.Meta.ChunkBits = uint(br.u8())
	t.Meta.Bits = uint(br.u8())
	t.Meta.N = br.u64()
	t.Meta.W = uint(br.u8())
	t.Meta.R = uint(br.u16())
	t.Meta.MaxAttempts = uint(br.u32())
	if br.err != nil {
		return nil, errors.Wrap(ErrInvalidTable, br.err.Error())
	}
	if err := t.Meta.Validate(); err != nil {
		return nil, err
	}

	count := br.u64()
	elemLen := int(br.u8())
	if br.err != nil {
		return nil, errors.Wrap(ErrInvalidTable, br.err.Error())
	}
	if count > t.Meta.N {
		return nil, errors.Wrapf(ErrInvalidTable, "%d entries exceed table size %d", count, t.Meta.N)
	}
	if count > 0 && elemLen != g.ElementLen() {
		return nil, errors.Wrapf(ErrInvalidTable, "element length %d, want %d", elemLen, g.ElementLen())
	}

	t.Entries = make(map[string]uint64, count)
	for i := uint64(0); i < count; i++ {
		k := br.bytes(elemLen)
		v := br.u64()
		if br.err != nil {
			return nil, errors.Wrap(ErrInvalidTable, br.err.Error())
		}
		t.Entries[string(k)] = v
	}

	if err := t.validate(g); err != nil {
		return nil, err
	}
	return &t, nil
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) write(b []byte) {
	if c.err != nil {
		return
	}
	n, err := c.w.Write(b)
	c.n += int64(n)
	c.err = err
}

func (c *countingWriter) u8(v uint8) { c.write([]byte{v}) }

func (c *countingWriter) u16(v uint16) { c.write(binary.BigEndian.AppendUint16(nil, v)) }

func (c *countingWriter) u32(v uint32) { c.write(binary.BigEndian.AppendUint32(nil, v)) }

func (c *countingWriter) u64(v uint64) { c.write(binary.BigEndian.AppendUint64(nil, v)) }

func (c *countingWriter) str(s string) {
	c.u8(uint8(len(s)))
	c.write([]byte(s))
}

type tableReader struct {
	r   io.Reader
	err error
}

func (t *tableReader) bytes(n int) []byte {
	if t.err != nil {
		return nil
	}
	b := make([]byte, n)
	_, t.err = io.ReadFull(t.r, b)
	return b
}

func (t *tableReader) u8() uint8 {
	b := t.bytes(1)
	if t.err != nil {
		return 0
	}
	return b[0]
}

func (t *tableReader) u16() uint16 {
	b := t.bytes(2)
	if t.err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (t *tableReader) u32() uint32 {
	b := t.bytes(4)
	if t.err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (t *tableReader) u64() uint64 {
	b := t.bytes(8)
	if t.err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (t *tableReader) str() string {
	return string(t.bytes(int(t.u8())))
}
