package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/kkkkikiki/crowdfund/internal/model"
)

const campaignColumns = `address, creator, name, description, target_amount, amount_donated,
		       fund_mint, escrow, threshold_reached, bump, version, created_at, updated_at`

type campaignRow struct {
	Address          string       `db:"address"`
	Creator          string       `db:"creator"`
	Name             string       `db:"name"`
	Description      string       `db:"description"`
	TargetAmount     model.Amount `db:"target_amount"`
	AmountDonated    model.Amount `db:"amount_donated"`
	FundMint         string       `db:"fund_mint"`
	Escrow           string       `db:"escrow"`
	ThresholdReached bool         `db:"threshold_reached"`
	Bump             uint8        `db:"bump"`
	Version          int64        `db:"version"`
	CreatedAt        int64        `db:"created_at"`
	UpdatedAt        int64        `db:"updated_at"`
}

func (r campaignRow) toModel() (*model.Campaign, error) {
	c := &model.Campaign{
		Name:             r.Name,
		Description:      r.Description,
		TargetAmount:     r.TargetAmount,
		AmountDonated:    r.AmountDonated,
		ThresholdReached: r.ThresholdReached,
		Bump:             r.Bump,
		Version:          r.Version,
		CreatedAt:        fromMillis(r.CreatedAt),
		UpdatedAt:        fromMillis(r.UpdatedAt),
	}
	var err error
	if c.Address, err = parseKey("campaign address", r.Address); err != nil {
		return nil, err
	}
	if c.Creator, err = parseKey("creator", r.Creator); err != nil {
		return nil, err
	}
	if c.FundMint, err = parseKey("fund mint", r.FundMint); err != nil {
		return nil, err
	}
	if c.Escrow, err = parseKey("escrow", r.Escrow); err != nil {
		return nil, err
	}
	return c, nil
}

// CampaignRepository handles campaign data operations
type CampaignRepository struct{}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{}
}

// CreateCampaign inserts a campaign at its derived address. A row already at
// that address, or with the same (creator, name), yields ErrAlreadyExists.
func (r *CampaignRepository) CreateCampaign(ctx context.Context, db DBExecutor, campaign *model.Campaign) error {
	query := `
		INSERT INTO campaigns (` + campaignColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`

	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	campaign.Version = 1

	result, err := db.ExecContext(ctx, db.Rebind(query),
		campaign.Address.String(), campaign.Creator.String(), campaign.Name, campaign.Description,
		campaign.TargetAmount, campaign.AmountDonated, campaign.FundMint.String(), campaign.Escrow.String(),
		campaign.ThresholdReached, campaign.Bump, campaign.Version, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return insertResult(result)
}

// GetCampaign retrieves a campaign by address
func (r *CampaignRepository) GetCampaign(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.Campaign, error) {
	return r.get(ctx, db, address, "")
}

// LockCampaign retrieves a campaign and holds its row lock for the rest of
// the transaction where the dialect supports it
func (r *CampaignRepository) LockCampaign(ctx context.Context, db DBExecutor, address solana.PublicKey) (*model.Campaign, error) {
	return r.get(ctx, db, address, forUpdate(db))
}

func (r *CampaignRepository) get(ctx context.Context, db DBExecutor, address solana.PublicKey, lock string) (*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE address = ?` + lock

	var row campaignRow
	if err := getOne(ctx, db, &row, query, address.String()); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return row.toModel()
}

// UpdateCampaign commits the mutable fields if nobody else changed the row
// since it was read, then bumps the in-memory version
func (r *CampaignRepository) UpdateCampaign(ctx context.Context, db DBExecutor, campaign *model.Campaign) error {
	query := `
		UPDATE campaigns
		SET amount_donated = ?, threshold_reached = ?, version = ?, updated_at = ?
		WHERE address = ? AND version = ?
	`

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, db.Rebind(query),
		campaign.AmountDonated, campaign.ThresholdReached, campaign.Version+1, toMillis(now),
		campaign.Address.String(), campaign.Version)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if err := updateResult(result); err != nil {
		return err
	}
	campaign.Version++
	campaign.UpdatedAt = now
	return nil
}
