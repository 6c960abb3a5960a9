package model

import (
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// EventKind names a committed ledger transition
type EventKind string

const (
	EventGlobalConfigInitialized EventKind = "global_config_initialized"
	EventGlobalAdminUpdated      EventKind = "global_admin_updated"
	EventCampaignCreated         EventKind = "campaign_created"
	EventDonation                EventKind = "donation"
	EventThresholdReached        EventKind = "threshold_reached"
	EventWithdrawal              EventKind = "withdrawal"
)

// Event is an outbox row written in the same transaction as the transition
// it describes. Campaign is zero for deployment-level events.
type Event struct {
	ID        uuid.UUID        `json:"id"`
	Kind      EventKind        `json:"kind"`
	Campaign  solana.PublicKey `json:"campaign"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}
