// Package token is the asset-transfer collaborator: mints, per-owner token
// accounts, and transfers that check the moving authority controls the
// source account.
package token

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/kkkkikiki/crowdfund/internal/custody"
	"github.com/kkkkikiki/crowdfund/internal/model"
	"github.com/kkkkikiki/crowdfund/internal/repository"
)

var (
	ErrMintNotFound      = errors.New("mint not found")
	ErrAccountNotFound   = errors.New("token account not found")
	ErrMintMismatch      = errors.New("token accounts hold different mints")
	ErrOwnerMismatch     = errors.New("authority does not own the source account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("token amount overflow")
	ErrCustodialAccount  = errors.New("cannot mint into a custodial account")
	ErrNotMintAuthority  = errors.New("signer is not the mint authority")
	ErrAccountConflict   = errors.New("an account with a different owner or mint already exists at this address")
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrDerivedOwner      = errors.New("holding accounts cannot be opened for program-derived owners")
)

// Ledger moves balances between token accounts inside the caller's transaction.
type Ledger struct {
	repo *repository.TokenRepository
}

// NewLedger creates a token ledger
func NewLedger() *Ledger {
	return &Ledger{repo: repository.NewTokenRepository()}
}

// AssociatedAddress returns the canonical token account for owner and mint.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}

// CreateMint registers a new mint controlled by authority.
func (l *Ledger) CreateMint(ctx context.Context, db repository.DBExecutor, authority solana.PublicKey, decimals uint8) (*model.Mint, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate mint address: %w", err)
	}
	mint := &model.Mint{
		Address:   priv.PublicKey(),
		Authority: authority,
		Decimals:  decimals,
	}
	if err := l.repo.CreateMint(ctx, db, mint); err != nil {
		return nil, err
	}
	return mint, nil
}

// GetMint returns a mint or ErrMintNotFound.
func (l *Ledger) GetMint(ctx context.Context, db repository.DBExecutor, address solana.PublicKey) (*model.Mint, error) {
	mint, err := l.repo.GetMint(ctx, db, address)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMintNotFound
	}
	return mint, err
}

// OpenAccount returns the associated account for owner and mint, creating
// it with a zero balance if needed. Non-custodial accounts need an owner
// that can sign, so program-derived (off-curve) owners are rejected; their
// associated addresses are reserved for escrow.
func (l *Ledger) OpenAccount(ctx context.Context, db repository.DBExecutor, owner, mint solana.PublicKey, custodial bool) (*model.TokenAccount, error) {
	if !custodial && !owner.IsOnCurve() {
		return nil, ErrDerivedOwner
	}
	if _, err := l.GetMint(ctx, db, mint); err != nil {
		return nil, err
	}
	addr, err := AssociatedAddress(owner, mint)
	if err != nil {
		return nil, err
	}

	existing, err := l.repo.GetAccount(ctx, db, addr)
	switch {
	case err == nil:
		if !existing.Owner.Equals(owner) || !existing.Mint.Equals(mint) || existing.Custodial != custodial {
			return nil, ErrAccountConflict
		}
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	account := &model.TokenAccount{
		Address:   addr,
		Owner:     owner,
		Mint:      mint,
		Custodial: custodial,
	}
	if err := l.repo.CreateAccount(ctx, db, account); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAccountConflict
		}
		return nil, err
	}
	return account, nil
}

// GetAccount returns a token account or ErrAccountNotFound.
func (l *Ledger) GetAccount(ctx context.Context, db repository.DBExecutor, address solana.PublicKey) (*model.TokenAccount, error) {
	account, err := l.repo.GetAccount(ctx, db, address)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

// MintTo issues new supply into a non-custodial account.
func (l *Ledger) MintTo(ctx context.Context, db repository.DBExecutor, signer, mintAddr, accountAddr solana.PublicKey, amount model.Amount) (*model.TokenAccount, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	mint, err := l.repo.LockMint(ctx, db, mintAddr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMintNotFound
	}
	if err != nil {
		return nil, err
	}
	if !mint.Authority.Equals(signer) {
		return nil, ErrNotMintAuthority
	}

	account, err := l.lockAccount(ctx, db, accountAddr)
	if err != nil {
		return nil, err
	}
	if !account.Mint.Equals(mint.Address) {
		return nil, ErrMintMismatch
	}
	if account.Custodial {
		return nil, ErrCustodialAccount
	}

	supply, ok := mint.Supply.CheckedAdd(amount)
	if !ok {
		return nil, ErrOverflow
	}
	balance, ok := account.Amount.CheckedAdd(amount)
	if !ok {
		return nil, ErrOverflow
	}

	mint.Supply = supply
	if err := l.repo.UpdateMintSupply(ctx, db, mint); err != nil {
		return nil, err
	}
	account.Amount = balance
	if err := l.repo.UpdateBalance(ctx, db, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Transfer moves amount from one account to another. It fails if authority
// does not control from, if the mints differ, or if from holds less than amount.
func (l *Ledger) Transfer(ctx context.Context, db repository.DBExecutor, from, to solana.PublicKey, authority custody.Authority, amount model.Amount) (src, dst *model.TokenAccount, err error) {
	if authority == nil {
		return nil, nil, custody.ErrMissingAuthority
	}
	if amount == 0 {
		return nil, nil, ErrZeroAmount
	}

	// Lock in address order so concurrent opposite transfers cannot deadlock.
	first, second := from, to
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	a, err := l.lockAccount(ctx, db, first)
	if err != nil {
		return nil, nil, err
	}
	b := a
	if !first.Equals(second) {
		if b, err = l.lockAccount(ctx, db, second); err != nil {
			return nil, nil, err
		}
	}
	src, dst = a, b
	if !src.Address.Equals(from) {
		src, dst = b, a
	}

	if !src.Mint.Equals(dst.Mint) {
		return nil, nil, ErrMintMismatch
	}
	if err := authority.Authorizes(src.Owner); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrOwnerMismatch, err)
	}
	remaining, ok := src.Amount.CheckedSub(amount)
	if !ok {
		return nil, nil, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, src.Amount, amount)
	}
	if src == dst {
		return src, dst, nil
	}
	credited, ok := dst.Amount.CheckedAdd(amount)
	if !ok {
		return nil, nil, ErrOverflow
	}

	src.Amount = remaining
	if err := l.repo.UpdateBalance(ctx, db, src); err != nil {
		return nil, nil, err
	}
	dst.Amount = credited
	if err := l.repo.UpdateBalance(ctx, db, dst); err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

func (l *Ledger) lockAccount(ctx context.Context, db repository.DBExecutor, address solana.PublicKey) (*model.TokenAccount, error) {
	account, err := l.repo.LockAccount(ctx, db, address)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return account, err
}
