package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	MaxNameLength        = 50
	MaxDescriptionLength = 200
)

// Campaign represents a fundraising goal bound to one mint and one escrow account
type Campaign struct {
	Address          solana.PublicKey `json:"address"`
	Creator          solana.PublicKey `json:"creator"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	TargetAmount     Amount           `json:"target_amount,string"`
	AmountDonated    Amount           `json:"amount_donated,string"`
	FundMint         solana.PublicKey `json:"fund_mint"`
	Escrow           solana.PublicKey `json:"escrow"`
	ThresholdReached bool             `json:"threshold_reached"`
	Bump             uint8            `json:"bump"`
	Version          int64            `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Donor represents one donor's cumulative contribution to one campaign
type Donor struct {
	Address       solana.PublicKey `json:"address"`
	Donor         solana.PublicKey `json:"donor"`
	Campaign      solana.PublicKey `json:"campaign"`
	AmountDonated Amount           `json:"amount_donated,string"`
	Bump          uint8            `json:"bump"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// GlobalConfig is the deployment-wide admin record
type GlobalConfig struct {
	Address   solana.PublicKey `json:"address"`
	Admin     solana.PublicKey `json:"admin"`
	Bump      uint8            `json:"bump"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
