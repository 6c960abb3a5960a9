package ledger

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"

	"github.com/kkkkikiki/crowdfund/internal/custody"
	"github.com/kkkkikiki/crowdfund/internal/model"
	"github.com/kkkkikiki/crowdfund/internal/repository"
)

type adminPayload struct {
	Admin         solana.PublicKey  `json:"admin"`
	PreviousAdmin *solana.PublicKey `json:"previous_admin,omitempty"`
}

// InitializeGlobalConfig creates the singleton with caller as admin. It
// succeeds once per deployment.
func (s *Service) InitializeGlobalConfig(ctx context.Context, caller solana.PublicKey) (*model.GlobalConfig, error) {
	if caller.IsZero() {
		return nil, ErrUnauthorizedAdmin
	}
	addr, proof, err := s.deriver.Derive(custody.GlobalConfigSeeds()...)
	if err != nil {
		return nil, err
	}

	cfg := &model.GlobalConfig{Address: addr, Admin: caller, Bump: proof.Bump}
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.configs.CreateGlobalConfig(ctx, tx, cfg); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return ErrConfigAlreadyInitialized
			}
			return err
		}
		_, err := s.events.AppendEvent(ctx, tx, model.EventGlobalConfigInitialized, solana.PublicKey{}, adminPayload{Admin: caller})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("op", "initialize_global_config").Stringer("admin", caller).Msg("global config initialized")
	return cfg, nil
}

// UpdateGlobalAdmin hands admin authority from caller to newAdmin
func (s *Service) UpdateGlobalAdmin(ctx context.Context, caller, newAdmin solana.PublicKey) (*model.GlobalConfig, error) {
	addr, err := s.GlobalConfigAddress()
	if err != nil {
		return nil, err
	}

	var cfg *model.GlobalConfig
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.configs.LockGlobalConfig(ctx, tx, addr)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConfigNotFound
		}
		if err != nil {
			return err
		}
		if !current.Admin.Equals(caller) {
			return ErrUnauthorizedAdmin
		}
		if newAdmin.IsZero() {
			return ErrInvalidAdmin
		}
		if current.Admin.Equals(newAdmin) {
			return ErrAdminCannotBeSame
		}

		previous := current.Admin
		current.Admin = newAdmin
		if err := s.configs.UpdateAdmin(ctx, tx, current); err != nil {
			return err
		}
		if _, err := s.events.AppendEvent(ctx, tx, model.EventGlobalAdminUpdated, solana.PublicKey{},
			adminPayload{Admin: newAdmin, PreviousAdmin: &previous}); err != nil {
			return err
		}
		cfg = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("op", "update_global_admin").Stringer("admin", newAdmin).Msg("global admin updated")
	return cfg, nil
}
