package proof

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/takakv/confbal/elgamal"
	"github.com/takakv/confbal/group"
)

func registrationRelation(g group.Group, pk group.Element) *linearRelation {
	rel := newRelation(g, labelRegistration, 1)
	rel.add(pk, term{0, g.Generator()})
	return rel
}

// ProveRegistration proves knowledge of the decryption key behind the
// encryption key being registered.
func ProveRegistration(params *Params, kp *elgamal.KeyPair, ctx []byte) (*Sigma, error) {
	if err := kp.Validate(params.Group); err != nil {
		return nil, errors.Wrap(ErrStateMismatch, err.Error())
	}
	return registrationRelation(params.Group, kp.EncryptionKey).prove([]*big.Int{kp.DecryptionKey}, ctx)
}

func VerifyRegistration(params *Params, pk group.Element, sigma *Sigma, ctx []byte) error {
	if pk == nil || pk.IsIdentity() {
		return errors.Wrap(ErrInvalidProof, "unusable encryption key")
	}
	return registrationRelation(params.Group, pk).verify(sigma, ctx)
}
