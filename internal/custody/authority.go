package custody

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Authority is whatever may move funds out of an account: a verified
// external signer, or the program itself acting for a derived address.
type Authority interface {
	Authorizes(owner solana.PublicKey) error
	fmt.Stringer
}

// ExternalSigner is an identity whose signature the host already verified.
type ExternalSigner struct {
	Identity solana.PublicKey
}

func (s ExternalSigner) Authorizes(owner solana.PublicKey) error {
	if s.Identity.IsZero() || !s.Identity.Equals(owner) {
		return fmt.Errorf("%w: signer %s, owner %s", ErrNotAuthorized, s.Identity, owner)
	}
	return nil
}

func (s ExternalSigner) String() string {
	return "signer:" + s.Identity.String()
}

// DerivedAuthority proves control of a derived address by reproducing it.
type DerivedAuthority struct {
	Proof Proof
}

func (a DerivedAuthority) Authorizes(owner solana.PublicKey) error {
	addr, err := a.Proof.Address()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}
	if !addr.Equals(owner) {
		return fmt.Errorf("%w: derived %s, owner %s", ErrNotAuthorized, addr, owner)
	}
	return nil
}

func (a DerivedAuthority) String() string {
	addr, err := a.Proof.Address()
	if err != nil {
		return "derived:invalid"
	}
	return "derived:" + addr.String()
}
