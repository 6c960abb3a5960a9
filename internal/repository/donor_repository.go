package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/kkkkikiki/crowdfund/internal/model"
)

type donorRow struct {
	Address       string       `db:"address"`
	Donor         string       `db:"donor"`
	Campaign      string       `db:"campaign"`
	AmountDonated model.Amount `db:"amount_donated"`
	Bump          uint8        `db:"bump"`
	Version       int64        `db:"version"`
	CreatedAt     int64        `db:"created_at"`
	UpdatedAt     int64        `db:"updated_at"`
}

func (r donorRow) toModel() (*model.Donor, error) {
	d := &model.Donor{
		AmountDonated: r.AmountDonated,
		Bump:          r.Bump,
		Version:       r.Version,
		CreatedAt:     fromMillis(r.CreatedAt),
		UpdatedAt:     fromMillis(r.UpdatedAt),
	}
	var err error
	if d.Address, err = parseKey("donor address", r.Address); err != nil {
		return nil, err
	}
	if d.Donor, err = parseKey("donor", r.Donor); err != nil {
		return nil, err
	}
	if d.Campaign, err = parseKey("campaign", r.Campaign); err != nil {
		return nil, err
	}
	return d, nil
}

// DonorRepository handles per-campaign donor history
type DonorRepository struct{}

// NewDonorRepository creates a new donor repository
func NewDonorRepository() *DonorRepository {
	return &DonorRepository{}
}

// LockDonor retrieves a donor record for update. Callers treat ErrNotFound
// as "first donation".
func (r *DonorRepository) LockDonor(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.Donor, error) {
	return r.get(ctx, db, address, forUpdate(db))
}

// GetDonor retrieves a donor record by address
func (r *DonorRepository) GetDonor(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.Donor, error) {
	return r.get(ctx, db, address, "")
}

func (r *DonorRepository) get(ctx context.Context, db DBExecutor, address solana.PublicKey, lock string) (*model.Donor, error) {
	query := `
		SELECT address, donor, campaign, amount_donated, bump, version, created_at, updated_at
		FROM donors
		WHERE address = ?` + lock

	var row donorRow
	if err := getOne(ctx, db, &row, query, address.String()); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	return row.toModel()
}

// CreateDonor inserts the first record for a (donor, campaign) pair. Two
// first donations racing each other surface as ErrAlreadyExists for the loser.
func (r *DonorRepository) CreateDonor(ctx context.Context, db DBExecutor, donor *model.Donor) error {
	query := `
		INSERT INTO donors (address, donor, campaign, amount_donated, bump, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`

	now := time.Now().UTC()
	donor.CreatedAt = now
	donor.UpdatedAt = now
	donor.Version = 1

	result, err := db.ExecContext(ctx, db.Rebind(query),
		donor.Address.String(), donor.Donor.String(), donor.Campaign.String(), donor.AmountDonated,
		donor.Bump, donor.Version, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to create donor: %w", err)
	}
	return insertResult(result)
}

// UpdateDonor commits a new cumulative total with compare-and-commit on version
func (r *DonorRepository) UpdateDonor(ctx context.Context, db DBExecutor, donor *model.Donor) error {
	query := `
		UPDATE donors
		SET amount_donated = ?, version = ?, updated_at = ?
		WHERE address = ? AND version = ?
	`

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, db.Rebind(query),
		donor.AmountDonated, donor.Version+1, toMillis(now), donor.Address.String(), donor.Version)
	if err != nil {
		return fmt.Errorf("failed to update donor: %w", err)
	}
	if err := updateResult(result); err != nil {
		return err
	}
	donor.Version++
	donor.UpdatedAt = now
	return nil
}
