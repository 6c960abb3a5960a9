package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Mint is a fungible asset type
type Mint struct {
	Address   solana.PublicKey `json:"address"`
	Authority solana.PublicKey `json:"authority"`
	Decimals  uint8            `json:"decimals"`
	Supply    Amount           `json:"supply,string"`
	CreatedAt time.Time        `json:"created_at"`
}

// TokenAccount holds a balance of one mint for one owner. Custodial accounts
// are owned by a derived address and only move funds under derived authority.
type TokenAccount struct {
	Address   solana.PublicKey `json:"address"`
	Owner     solana.PublicKey `json:"owner"`
	Mint      solana.PublicKey `json:"mint"`
	Amount    Amount           `json:"amount,string"`
	Custodial bool             `json:"custodial"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
