// Package custody derives program-controlled addresses and proves authority
// over them without a private key.
package custody

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrSeedTooLong      = errors.New("derivation seed exceeds 32 bytes")
	ErrProofMismatch    = errors.New("derivation proof does not produce the expected address")
	ErrNotAuthorized    = errors.New("authority does not control the account")
	ErrMissingAuthority = errors.New("authority is required")
)

const (
	seedCampaign     = "campaign"
	seedDonor        = "donor"
	seedGlobalConfig = "global_config"
)

// Proof is the material that reproduces a derived address: the program
// namespace, the seeds, and the bump that pushed the hash off the curve.
type Proof struct {
	ProgramID solana.PublicKey
	Seeds     [][]byte
	Bump      uint8
}

// Address recomputes the derived address from the proof.
func (p Proof) Address() (solana.PublicKey, error) {
	seeds := make([][]byte, 0, len(p.Seeds)+1)
	seeds = append(seeds, p.Seeds...)
	seeds = append(seeds, []byte{p.Bump})
	addr, err := solana.CreateProgramAddress(seeds, p.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create program address: %w", err)
	}
	return addr, nil
}

// Deriver maps seed fields within one program namespace to a stable address.
type Deriver struct {
	programID solana.PublicKey
}

// NewDeriver creates a deriver for the given program namespace.
func NewDeriver(programID solana.PublicKey) *Deriver {
	return &Deriver{programID: programID}
}

// ProgramID returns the namespace.
func (d *Deriver) ProgramID() solana.PublicKey {
	return d.programID
}

// Derive finds the canonical derived address for seeds.
func (d *Deriver) Derive(seeds ...[]byte) (solana.PublicKey, Proof, error) {
	for _, s := range seeds {
		if len(s) > solana.MaxSeedLength {
			return solana.PublicKey{}, Proof{}, ErrSeedTooLong
		}
	}
	addr, bump, err := solana.FindProgramAddress(seeds, d.programID)
	if err != nil {
		return solana.PublicKey{}, Proof{}, fmt.Errorf("find program address: %w", err)
	}
	return addr, Proof{ProgramID: d.programID, Seeds: seeds, Bump: bump}, nil
}

// Rebuild reconstructs a proof from stored seeds and bump, checking that it
// still lands on want.
func (d *Deriver) Rebuild(want solana.PublicKey, bump uint8, seeds ...[]byte) (Proof, error) {
	p := Proof{ProgramID: d.programID, Seeds: seeds, Bump: bump}
	got, err := p.Address()
	if err != nil {
		return Proof{}, err
	}
	if !got.Equals(want) {
		return Proof{}, ErrProofMismatch
	}
	return p, nil
}

// CampaignSeeds keys a campaign by creator and name. The name is hashed so
// any valid name fits the seed length limit.
func CampaignSeeds(creator solana.PublicKey, name string) [][]byte {
	h := sha256.Sum256([]byte(name))
	return [][]byte{[]byte(seedCampaign), creator.Bytes(), h[:]}
}

// DonorSeeds keys a donor record by donor and campaign.
func DonorSeeds(donor, campaign solana.PublicKey) [][]byte {
	return [][]byte{[]byte(seedDonor), donor.Bytes(), campaign.Bytes()}
}

// GlobalConfigSeeds keys the deployment singleton.
func GlobalConfigSeeds() [][]byte {
	return [][]byte{[]byte(seedGlobalConfig)}
}
