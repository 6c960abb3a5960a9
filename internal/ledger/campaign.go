package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"

	"github.com/kkkkikiki/crowdfund/internal/custody"
	"github.com/kkkkikiki/crowdfund/internal/model"
	"github.com/kkkkikiki/crowdfund/internal/repository"
	"github.com/kkkkikiki/crowdfund/internal/token"
)

// CreateCampaignParams describes a new campaign
type CreateCampaignParams struct {
	Name         string
	Description  string
	TargetAmount model.Amount
	FundMint     solana.PublicKey
}

// DonateParams identifies a donation. Escrow and DonorAccount are optional;
// zero values select the campaign escrow and the donor's associated account.
type DonateParams struct {
	Campaign     solana.PublicKey
	Mint         solana.PublicKey
	Amount       model.Amount
	Escrow       solana.PublicKey
	DonorAccount solana.PublicKey
}

// DonateResult carries the committed records
type DonateResult struct {
	Campaign         *model.Campaign
	Donor            *model.Donor
	ThresholdCrossed bool
}

// WithdrawParams identifies a withdrawal. A zero CreatorAccount selects the
// creator's associated account, opening it if needed.
type WithdrawParams struct {
	Campaign       solana.PublicKey
	Mint           solana.PublicKey
	CreatorAccount solana.PublicKey
}

// WithdrawResult carries the reset campaign and the amount released
type WithdrawResult struct {
	Campaign       *model.Campaign
	Amount         model.Amount
	CreatorAccount solana.PublicKey
}

type campaignCreatedPayload struct {
	Creator      solana.PublicKey `json:"creator"`
	Name         string           `json:"name"`
	TargetAmount model.Amount     `json:"target_amount,string"`
	FundMint     solana.PublicKey `json:"fund_mint"`
	Escrow       solana.PublicKey `json:"escrow"`
}

type donationPayload struct {
	Donor         solana.PublicKey `json:"donor"`
	Amount        model.Amount     `json:"amount,string"`
	AmountDonated model.Amount     `json:"amount_donated,string"`
	DonorTotal    model.Amount     `json:"donor_total,string"`
}

type thresholdPayload struct {
	TargetAmount  model.Amount `json:"target_amount,string"`
	AmountDonated model.Amount `json:"amount_donated,string"`
}

type withdrawalPayload struct {
	Creator        solana.PublicKey `json:"creator"`
	CreatorAccount solana.PublicKey `json:"creator_account"`
	Amount         model.Amount     `json:"amount,string"`
}

func validateCampaign(p CreateCampaignParams) error {
	switch {
	case len(p.Name) == 0:
		return ErrNameEmpty
	case len(p.Name) > model.MaxNameLength:
		return ErrNameTooLong
	case len(p.Description) == 0:
		return ErrDescriptionEmpty
	case len(p.Description) > model.MaxDescriptionLength:
		return ErrDescriptionTooLong
	case p.TargetAmount == 0:
		return ErrTargetNotPositive
	}
	return nil
}

// CreateCampaign opens a fundraising campaign owned by creator, together
// with its custodial escrow account.
func (s *Service) CreateCampaign(ctx context.Context, creator solana.PublicKey, p CreateCampaignParams) (*model.Campaign, error) {
	if creator.IsZero() {
		return nil, ErrUnauthorized
	}
	if err := validateCampaign(p); err != nil {
		return nil, err
	}
	addr, proof, err := s.deriver.Derive(custody.CampaignSeeds(creator, p.Name)...)
	if err != nil {
		return nil, err
	}

	var campaign *model.Campaign
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		escrow, err := s.tokens.OpenAccount(ctx, tx, addr, p.FundMint, true)
		if errors.Is(err, token.ErrMintNotFound) {
			return ErrInvalidMint
		}
		// A concurrent create for the same (creator, name) inserted the escrow first
		if errors.Is(err, token.ErrAccountConflict) {
			return ErrAlreadyExists
		}
		if err != nil {
			return err
		}

		c := &model.Campaign{
			Address:      addr,
			Creator:      creator,
			Name:         p.Name,
			Description:  p.Description,
			TargetAmount: p.TargetAmount,
			FundMint:     p.FundMint,
			Escrow:       escrow.Address,
			Bump:         proof.Bump,
		}
		if err := s.campaigns.CreateCampaign(ctx, tx, c); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return ErrAlreadyExists
			}
			return err
		}
		if _, err := s.events.AppendEvent(ctx, tx, model.EventCampaignCreated, addr, campaignCreatedPayload{
			Creator:      creator,
			Name:         p.Name,
			TargetAmount: p.TargetAmount,
			FundMint:     p.FundMint,
			Escrow:       escrow.Address,
		}); err != nil {
			return err
		}
		campaign = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("op", "create_campaign").
		Stringer("campaign", addr).
		Stringer("creator", creator).
		Stringer("target", p.TargetAmount).
		Msg("campaign created")
	return campaign, nil
}

// Donate moves amount from donor's holding account into the campaign escrow
// and credits both the campaign and the donor's running total.
func (s *Service) Donate(ctx context.Context, donor solana.PublicKey, p DonateParams) (*DonateResult, error) {
	if donor.IsZero() {
		return nil, ErrUnauthorized
	}
	if p.Amount == 0 {
		return nil, ErrAmountNotPositive
	}
	donorAddr, donorProof, err := s.deriver.Derive(custody.DonorSeeds(donor, p.Campaign)...)
	if err != nil {
		return nil, err
	}

	var result DonateResult
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		campaign, err := s.campaigns.LockCampaign(ctx, tx, p.Campaign)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCampaignNotFound
		}
		if err != nil {
			return err
		}
		if !campaign.FundMint.Equals(p.Mint) {
			return ErrInvalidMint
		}
		if !p.Escrow.IsZero() && !p.Escrow.Equals(campaign.Escrow) {
			return ErrInvalidEscrow
		}

		source := p.DonorAccount
		if source.IsZero() {
			if source, err = token.AssociatedAddress(donor, p.Mint); err != nil {
				return err
			}
		}
		holding, err := s.tokens.GetAccount(ctx, tx, source)
		if err != nil {
			return err
		}
		if !holding.Mint.Equals(p.Mint) {
			return ErrInvalidMint
		}

		record, err := s.donors.LockDonor(ctx, tx, donorAddr)
		isNew := errors.Is(err, repository.ErrNotFound)
		if err != nil && !isNew {
			return err
		}
		if isNew {
			record = &model.Donor{
				Address:  donorAddr,
				Donor:    donor,
				Campaign: campaign.Address,
				Bump:     donorProof.Bump,
			}
		}

		// Both totals are checked before any funds move.
		campaignTotal, ok := campaign.AmountDonated.CheckedAdd(p.Amount)
		if !ok {
			return ErrOverflow
		}
		donorTotal, ok := record.AmountDonated.CheckedAdd(p.Amount)
		if !ok {
			return ErrOverflow
		}

		if _, _, err := s.tokens.Transfer(ctx, tx, source, campaign.Escrow, custody.ExternalSigner{Identity: donor}, p.Amount); err != nil {
			if errors.Is(err, token.ErrOverflow) {
				return ErrOverflow
			}
			return err
		}

		crossed := !campaign.ThresholdReached && campaignTotal >= campaign.TargetAmount
		campaign.AmountDonated = campaignTotal
		if crossed {
			campaign.ThresholdReached = true
		}
		if err := s.campaigns.UpdateCampaign(ctx, tx, campaign); err != nil {
			return err
		}

		record.AmountDonated = donorTotal
		if isNew {
			if err := s.donors.CreateDonor(ctx, tx, record); err != nil {
				if errors.Is(err, repository.ErrAlreadyExists) {
					return ErrConflict
				}
				return err
			}
		} else if err := s.donors.UpdateDonor(ctx, tx, record); err != nil {
			return err
		}

		if _, err := s.events.AppendEvent(ctx, tx, model.EventDonation, campaign.Address, donationPayload{
			Donor:         donor,
			Amount:        p.Amount,
			AmountDonated: campaignTotal,
			DonorTotal:    donorTotal,
		}); err != nil {
			return err
		}
		if crossed {
			if _, err := s.events.AppendEvent(ctx, tx, model.EventThresholdReached, campaign.Address, thresholdPayload{
				TargetAmount:  campaign.TargetAmount,
				AmountDonated: campaignTotal,
			}); err != nil {
				return err
			}
		}

		result = DonateResult{Campaign: campaign, Donor: record, ThresholdCrossed: crossed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("op", "donate").
		Stringer("campaign", p.Campaign).
		Stringer("donor", donor).
		Stringer("amount", p.Amount).
		Stringer("total", result.Campaign.AmountDonated).
		Bool("threshold_crossed", result.ThresholdCrossed).
		Msg("donation recorded")
	return &result, nil
}

// Withdraw releases the entire escrow balance to the creator once the
// threshold has been reached, then resets the campaign for reuse.
func (s *Service) Withdraw(ctx context.Context, creator solana.PublicKey, p WithdrawParams) (*WithdrawResult, error) {
	var result WithdrawResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		campaign, err := s.campaigns.LockCampaign(ctx, tx, p.Campaign)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCampaignNotFound
		}
		if err != nil {
			return err
		}
		if !campaign.Creator.Equals(creator) {
			return ErrUnauthorized
		}
		if !campaign.FundMint.Equals(p.Mint) {
			return ErrInvalidMint
		}
		if !campaign.ThresholdReached {
			return ErrThresholdNotReached
		}

		escrow, err := s.tokens.GetAccount(ctx, tx, campaign.Escrow)
		if err != nil {
			return err
		}
		if escrow.Amount == 0 {
			return ErrNoFundsToWithdraw
		}

		dest, err := s.creatorAccount(ctx, tx, creator, campaign.FundMint, p.CreatorAccount)
		if err != nil {
			return err
		}

		proof, err := s.deriver.Rebuild(campaign.Address, campaign.Bump, custody.CampaignSeeds(campaign.Creator, campaign.Name)...)
		if err != nil {
			return fmt.Errorf("rebuild campaign authority: %w", err)
		}
		released := escrow.Amount
		if _, _, err := s.tokens.Transfer(ctx, tx, campaign.Escrow, dest, custody.DerivedAuthority{Proof: proof}, released); err != nil {
			if errors.Is(err, token.ErrOverflow) {
				return ErrOverflow
			}
			return err
		}

		if released != campaign.AmountDonated {
			s.log.Warn().
				Stringer("campaign", campaign.Address).
				Stringer("escrow_balance", released).
				Stringer("amount_donated", campaign.AmountDonated).
				Msg("escrow balance differs from recorded total")
		}
		campaign.AmountDonated = 0
		campaign.ThresholdReached = false
		if err := s.campaigns.UpdateCampaign(ctx, tx, campaign); err != nil {
			return err
		}
		if _, err := s.events.AppendEvent(ctx, tx, model.EventWithdrawal, campaign.Address, withdrawalPayload{
			Creator:        creator,
			CreatorAccount: dest,
			Amount:         released,
		}); err != nil {
			return err
		}

		result = WithdrawResult{Campaign: campaign, Amount: released, CreatorAccount: dest}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("op", "withdraw").
		Stringer("campaign", p.Campaign).
		Stringer("amount", result.Amount).
		Msg("escrow released")
	return &result, nil
}

func (s *Service) creatorAccount(ctx context.Context, tx *sqlx.Tx, creator, mint, requested solana.PublicKey) (solana.PublicKey, error) {
	if requested.IsZero() {
		account, err := s.tokens.OpenAccount(ctx, tx, creator, mint, false)
		if err != nil {
			return solana.PublicKey{}, err
		}
		return account.Address, nil
	}

	account, err := s.tokens.GetAccount(ctx, tx, requested)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !account.Mint.Equals(mint) {
		return solana.PublicKey{}, ErrInvalidMint
	}
	if !account.Owner.Equals(creator) {
		return solana.PublicKey{}, fmt.Errorf("%w: destination %s", token.ErrOwnerMismatch, requested)
	}
	return account.Address, nil
}
