package rpc

import (
	"github.com/gagliardetto/solana-go"

	"github.com/kkkkikiki/crowdfund/internal/model"
)

type InitializeGlobalConfigRequest struct{}

type InitializeGlobalConfigResponse struct {
	Config *model.GlobalConfig `json:"config"`
}

type UpdateGlobalAdminRequest struct {
	NewAdmin solana.PublicKey `json:"new_admin"`
}

type UpdateGlobalAdminResponse struct {
	Config *model.GlobalConfig `json:"config"`
}

type CreateCampaignRequest struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	TargetAmount model.Amount     `json:"target_amount,string"`
	FundMint     solana.PublicKey `json:"fund_mint"`
}

type CreateCampaignResponse struct {
	Campaign *model.Campaign `json:"campaign"`
}

// DonateRequest moves Amount from the signer's holding account into the
// campaign escrow. Escrow and DonorAccount may be left zero.
type DonateRequest struct {
	Campaign     solana.PublicKey `json:"campaign"`
	Mint         solana.PublicKey `json:"mint"`
	Amount       model.Amount     `json:"amount,string"`
	Escrow       solana.PublicKey `json:"escrow"`
	DonorAccount solana.PublicKey `json:"donor_account"`
}

type DonateResponse struct {
	Campaign         *model.Campaign `json:"campaign"`
	Donor            *model.Donor    `json:"donor"`
	ThresholdCrossed bool            `json:"threshold_crossed"`
}

// WithdrawRequest releases escrow to the signer, who must be the creator.
type WithdrawRequest struct {
	Campaign       solana.PublicKey `json:"campaign"`
	Mint           solana.PublicKey `json:"mint"`
	CreatorAccount solana.PublicKey `json:"creator_account"`
}

type WithdrawResponse struct {
	Campaign       *model.Campaign  `json:"campaign"`
	Amount         model.Amount     `json:"amount,string"`
	CreatorAccount solana.PublicKey `json:"creator_account"`
}

// GetCampaignRequest selects a campaign by Address, or by Creator and Name
// when Address is zero.
type GetCampaignRequest struct {
	Address solana.PublicKey `json:"address"`
	Creator solana.PublicKey `json:"creator"`
	Name    string           `json:"name"`
}

type GetCampaignResponse struct {
	Campaign *model.Campaign `json:"campaign"`
}

type GetDonorRequest struct {
	Donor    solana.PublicKey `json:"donor"`
	Campaign solana.PublicKey `json:"campaign"`
}

type GetDonorResponse struct {
	Donor *model.Donor `json:"donor"`
}

type GetGlobalConfigRequest struct{}

type GetGlobalConfigResponse struct {
	Config *model.GlobalConfig `json:"config"`
}

type ListEventsRequest struct {
	Campaign solana.PublicKey `json:"campaign"`
	Limit    int              `json:"limit"`
}

type ListEventsResponse struct {
	Events []model.Event `json:"events"`
}

// CreateMintRequest registers a mint whose authority is the signer.
type CreateMintRequest struct {
	Decimals uint8 `json:"decimals"`
}

type CreateMintResponse struct {
	Mint *model.Mint `json:"mint"`
}

// OpenAccountRequest opens the associated account of Owner for Mint. A zero
// Owner means the signer.
type OpenAccountRequest struct {
	Owner solana.PublicKey `json:"owner"`
	Mint  solana.PublicKey `json:"mint"`
}

type OpenAccountResponse struct {
	Account *model.TokenAccount `json:"account"`
}

type MintToRequest struct {
	Mint    solana.PublicKey `json:"mint"`
	Account solana.PublicKey `json:"account"`
	Amount  model.Amount     `json:"amount,string"`
}

type MintToResponse struct {
	Account *model.TokenAccount `json:"account"`
}

type GetAccountRequest struct {
	Address solana.PublicKey `json:"address"`
}

type GetAccountResponse struct {
	Account *model.TokenAccount `json:"account"`
}
