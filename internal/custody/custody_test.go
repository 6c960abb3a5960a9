package custody

import (
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

var testProgram = solana.MustPublicKeyFromBase58("3pgACwNx4AjBnqJzoeaXH26rLG9hVKqePTuaz64KXaQR")

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	return priv.PublicKey()
}

func TestDeriveIsDeterministic(t *testing.T) {
	t.Parallel()

	d := NewDeriver(testProgram)
	creator := newKey(t)

	a, pa, err := d.Derive(CampaignSeeds(creator, "school roof")...)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, pb, err := d.Derive(CampaignSeeds(creator, "school roof")...)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if !a.Equals(b) || pa.Bump != pb.Bump {
		t.Fatalf("derivation not stable: %s/%d vs %s/%d", a, pa.Bump, b, pb.Bump)
	}

	other, _, err := d.Derive(CampaignSeeds(creator, "school roof 2")...)
	if err != nil {
		t.Fatalf("derive other: %v", err)
	}
	if a.Equals(other) {
		t.Fatal("different names must derive different addresses")
	}
}

func TestDeriveAcceptsMaxLengthName(t *testing.T) {
	t.Parallel()

	d := NewDeriver(testProgram)
	if _, _, err := d.Derive(CampaignSeeds(newKey(t), strings.Repeat("n", 50))...); err != nil {
		t.Fatalf("derive 50-byte name: %v", err)
	}
}

func TestDeriveRejectsLongSeed(t *testing.T) {
	t.Parallel()

	d := NewDeriver(testProgram)
	_, _, err := d.Derive(make([]byte, 33))
	if !errors.Is(err, ErrSeedTooLong) {
		t.Fatalf("err = %v, want %v", err, ErrSeedTooLong)
	}
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	d := NewDeriver(testProgram)
	donor, campaign := newKey(t), newKey(t)
	addr, proof, err := d.Derive(DonorSeeds(donor, campaign)...)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	rebuilt, err := d.Rebuild(addr, proof.Bump, DonorSeeds(donor, campaign)...)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if got, _ := rebuilt.Address(); !got.Equals(addr) {
		t.Fatalf("rebuilt address = %s, want %s", got, addr)
	}
	if _, err := d.Rebuild(newKey(t), proof.Bump, DonorSeeds(donor, campaign)...); !errors.Is(err, ErrProofMismatch) {
		t.Fatalf("rebuild wrong address err = %v, want %v", err, ErrProofMismatch)
	}
}

func TestAuthorities(t *testing.T) {
	t.Parallel()

	d := NewDeriver(testProgram)
	owner := newKey(t)

	if err := (ExternalSigner{Identity: owner}).Authorizes(owner); err != nil {
		t.Fatalf("signer authorizes own account: %v", err)
	}
	if err := (ExternalSigner{Identity: newKey(t)}).Authorizes(owner); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("foreign signer err = %v", err)
	}
	if err := (ExternalSigner{}).Authorizes(solana.PublicKey{}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("zero signer err = %v", err)
	}

	escrowOwner, proof, err := d.Derive(GlobalConfigSeeds()...)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if err := (DerivedAuthority{Proof: proof}).Authorizes(escrowOwner); err != nil {
		t.Fatalf("derived authorizes: %v", err)
	}
	if err := (DerivedAuthority{Proof: proof}).Authorizes(owner); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("derived on foreign owner err = %v", err)
	}
	forged := proof
	forged.ProgramID = newKey(t)
	if err := (DerivedAuthority{Proof: forged}).Authorizes(escrowOwner); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("forged program err = %v", err)
	}
}
