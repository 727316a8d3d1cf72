// Package dlog recovers small discrete logarithms: given v*G with v known to
// lie in [0, 2^bits), it finds v.
//
// Solvers are bounded searches behind the Solver interface. An Engine chains
// them from cheapest to most expensive so that small values, the common case,
// never pay for the large-bound search.
package dlog

import (
	"github.com/pkg/errors"
	"github.com/takakv/confbal/group"
)

// ErrDecryptionFailed is returned when no solver finds the logarithm.
var ErrDecryptionFailed = errors.New("decryption failed")

// Solver finds discrete logarithms in [0, 2^Bits()).
type Solver interface {
	// Bits is the search bound of the solver.
	Bits() uint
	// Solve returns x such that x*G equals target, or false if the solver
	// gave up. A zero budget selects the solver's own default.
	Solve(target group.Element, budget uint64) (uint64, bool)
}
