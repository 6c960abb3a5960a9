package service

import (
	"context"

	"connectrpc.com/connect"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/kkkkikiki/crowdfund/internal/rpc"
	"github.com/kkkkikiki/crowdfund/internal/token"
)

// TokenServer implements crowdfund.v1.TokenService so wallets and escrow
// balances can be provisioned and inspected over the same transport
type TokenServer struct {
	db     *sqlx.DB
	tokens *token.Ledger
	log    zerolog.Logger
}

var _ rpc.TokenServiceHandler = (*TokenServer)(nil)

// NewTokenServer creates a new TokenServer instance
func NewTokenServer(db *sqlx.DB, tokens *token.Ledger, log zerolog.Logger) *TokenServer {
	return &TokenServer{db: db, tokens: tokens, log: log}
}

// CreateMint registers a mint with the signer as authority
func (s *TokenServer) CreateMint(
	ctx context.Context,
	req *connect.Request[rpc.CreateMintRequest],
) (_ *connect.Response[rpc.CreateMintResponse], err error) {
	done := observe("create_mint")
	defer func() { done(err) }()

	authority, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}
	mint, err := s.tokens.CreateMint(ctx, s.db, authority, req.Msg.Decimals)
	if err != nil {
		return nil, toConnectError(s.log, "create_mint", err)
	}
	s.log.Info().Stringer("mint", mint.Address).Stringer("authority", authority).Msg("mint created")
	return connect.NewResponse(&rpc.CreateMintResponse{Mint: mint}), nil
}

// OpenAccount opens a non-custodial holding account
func (s *TokenServer) OpenAccount(
	ctx context.Context,
	req *connect.Request[rpc.OpenAccountRequest],
) (_ *connect.Response[rpc.OpenAccountResponse], err error) {
	done := observe("open_account")
	defer func() { done(err) }()

	signer, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}
	owner := req.Msg.Owner
	if owner.IsZero() {
		owner = signer
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, toConnectError(s.log, "open_account", err)
	}
	defer tx.Rollback()

	account, err := s.tokens.OpenAccount(ctx, tx, owner, req.Msg.Mint, false)
	if err != nil {
		return nil, toConnectError(s.log, "open_account", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toConnectError(s.log, "open_account", err)
	}
	return connect.NewResponse(&rpc.OpenAccountResponse{Account: account}), nil
}

// MintTo issues supply; only the mint authority may call it
func (s *TokenServer) MintTo(
	ctx context.Context,
	req *connect.Request[rpc.MintToRequest],
) (_ *connect.Response[rpc.MintToResponse], err error) {
	done := observe("mint_to")
	defer func() { done(err) }()

	signer, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, toConnectError(s.log, "mint_to", err)
	}
	defer tx.Rollback()

	account, err := s.tokens.MintTo(ctx, tx, signer, req.Msg.Mint, req.Msg.Account, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(s.log, "mint_to", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, toConnectError(s.log, "mint_to", err)
	}
	return connect.NewResponse(&rpc.MintToResponse{Account: account}), nil
}

// GetAccount reads a token account balance
func (s *TokenServer) GetAccount(
	ctx context.Context,
	req *connect.Request[rpc.GetAccountRequest],
) (*connect.Response[rpc.GetAccountResponse], error) {
	account, err := s.tokens.GetAccount(ctx, s.db, req.Msg.Address)
	if err != nil {
		return nil, toConnectError(s.log, "get_account", err)
	}
	return connect.NewResponse(&rpc.GetAccountResponse{Account: account}), nil
}
