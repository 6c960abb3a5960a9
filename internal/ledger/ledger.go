// Package ledger implements the crowdfunding state machine: campaign, donor
// and admin records, and the movement of funds between donors, a
// program-custodied escrow account, and the campaign creator.
//
// Every mutating operation runs in a single database transaction. Either all
// of its reads, the token transfer, the record updates and the outbox event
// commit together, or none of them do.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/kkkkikiki/crowdfund/internal/custody"
	"github.com/kkkkikiki/crowdfund/internal/model"
	"github.com/kkkkikiki/crowdfund/internal/repository"
	"github.com/kkkkikiki/crowdfund/internal/token"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// Service runs ledger operations against one database
type Service struct {
	db        *sqlx.DB
	deriver   *custody.Deriver
	tokens    *token.Ledger
	campaigns *repository.CampaignRepository
	donors    *repository.DonorRepository
	configs   *repository.GlobalConfigRepository
	events    *repository.EventRepository
	log       zerolog.Logger
}

// New creates a ledger service. programID namespaces every derived address.
func New(db *sqlx.DB, programID solana.PublicKey, log zerolog.Logger) *Service {
	return &Service{
		db:        db,
		deriver:   custody.NewDeriver(programID),
		tokens:    token.NewLedger(),
		campaigns: repository.NewCampaignRepository(),
		donors:    repository.NewDonorRepository(),
		configs:   repository.NewGlobalConfigRepository(),
		events:    repository.NewEventRepository(),
		log:       log.With().Str("component", "ledger").Logger(),
	}
}

// Tokens exposes the transfer collaborator bound to the same database
func (s *Service) Tokens() *token.Ledger {
	return s.tokens
}

// DB returns the underlying handle
func (s *Service) DB() *sqlx.DB {
	return s.db
}

// CampaignAddress derives the record address for (creator, name)
func (s *Service) CampaignAddress(creator solana.PublicKey, name string) (solana.PublicKey, error) {
	addr, _, err := s.deriver.Derive(custody.CampaignSeeds(creator, name)...)
	return addr, err
}

// DonorAddress derives the record address for (donor, campaign)
func (s *Service) DonorAddress(donor, campaign solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := s.deriver.Derive(custody.DonorSeeds(donor, campaign)...)
	return addr, err
}

// GlobalConfigAddress derives the singleton address
func (s *Service) GlobalConfigAddress() (solana.PublicKey, error) {
	addr, _, err := s.deriver.Derive(custody.GlobalConfigSeeds()...)
	return addr, err
}

// inTx runs fn in a transaction and commits only if fn succeeds
func (s *Service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConflict
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCampaign reads a campaign by address
func (s *Service) GetCampaign(ctx context.Context, address solana.PublicKey) (*model.Campaign, error) {
	c, err := s.campaigns.GetCampaign(ctx, s.db, address)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCampaignNotFound
	}
	return c, err
}

// GetCampaignByName reads a campaign by its (creator, name) key
func (s *Service) GetCampaignByName(ctx context.Context, creator solana.PublicKey, name string) (*model.Campaign, error) {
	addr, err := s.CampaignAddress(creator, name)
	if err != nil {
		return nil, err
	}
	return s.GetCampaign(ctx, addr)
}

// GetDonor reads the contribution history of donor to campaign
func (s *Service) GetDonor(ctx context.Context, donor, campaign solana.PublicKey) (*model.Donor, error) {
	addr, err := s.DonorAddress(donor, campaign)
	if err != nil {
		return nil, err
	}
	d, err := s.donors.GetDonor(ctx, s.db, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDonorNotFound
	}
	return d, err
}

// GetGlobalConfig reads the deployment singleton
func (s *Service) GetGlobalConfig(ctx context.Context) (*model.GlobalConfig, error) {
	addr, err := s.GlobalConfigAddress()
	if err != nil {
		return nil, err
	}
	cfg, err := s.configs.GetGlobalConfig(ctx, s.db, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrConfigNotFound
	}
	return cfg, err
}

// ListEvents returns up to limit committed events for a campaign, oldest
// first. A zero campaign lists deployment-level events.
func (s *Service) ListEvents(ctx context.Context, campaign solana.PublicKey, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	return s.events.ListEvents(ctx, s.db, campaign, limit)
}
