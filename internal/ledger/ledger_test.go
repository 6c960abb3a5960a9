package ledger

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/kkkkikiki/crowdfund/internal/database"
	"github.com/kkkkikiki/crowdfund/internal/model"
	"github.com/kkkkikiki/crowdfund/internal/token"
)

var testProgramID = solana.MustPublicKeyFromBase58("3pgACwNx4AjBnqJzoeaXH26rLG9hVKqePTuaz64KXaQR")

type fixture struct {
	t             *testing.T
	ctx           context.Context
	svc           *Service
	mintAuthority solana.PublicKey
	mint          solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		t:             t,
		ctx:           ctx,
		svc:           New(db, testProgramID, zerolog.Nop()),
		mintAuthority: newKey(t),
	}
	mint, err := f.svc.Tokens().CreateMint(ctx, db, f.mintAuthority, 6)
	if err != nil {
		t.Fatalf("create mint: %v", err)
	}
	f.mint = mint.Address
	return f
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	return priv.PublicKey()
}

// fund opens owner's associated account and mints amount into it
func (f *fixture) fund(owner solana.PublicKey, amount model.Amount) solana.PublicKey {
	f.t.Helper()
	db := f.svc.DB()
	account, err := f.svc.Tokens().OpenAccount(f.ctx, db, owner, f.mint, false)
	if err != nil {
		f.t.Fatalf("open account: %v", err)
	}
	if amount > 0 {
		if _, err := f.svc.Tokens().MintTo(f.ctx, db, f.mintAuthority, f.mint, account.Address, amount); err != nil {
			f.t.Fatalf("mint to: %v", err)
		}
	}
	return account.Address
}

func (f *fixture) balance(account solana.PublicKey) model.Amount {
	f.t.Helper()
	acct, err := f.svc.Tokens().GetAccount(f.ctx, f.svc.DB(), account)
	if err != nil {
		f.t.Fatalf("get account %s: %v", account, err)
	}
	return acct.Amount
}

func (f *fixture) createCampaign(creator solana.PublicKey, name string, target model.Amount) *model.Campaign {
	f.t.Helper()
	c, err := f.svc.CreateCampaign(f.ctx, creator, CreateCampaignParams{
		Name:         name,
		Description:  "help us build it",
		TargetAmount: target,
		FundMint:     f.mint,
	})
	if err != nil {
		f.t.Fatalf("create campaign %q: %v", name, err)
	}
	return c
}

func (f *fixture) donate(donor solana.PublicKey, campaign *model.Campaign, amount model.Amount) *DonateResult {
	f.t.Helper()
	res, err := f.svc.Donate(f.ctx, donor, DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: amount})
	if err != nil {
		f.t.Fatalf("donate %s: %v", amount, err)
	}
	return res
}

func (f *fixture) reload(campaign *model.Campaign) *model.Campaign {
	f.t.Helper()
	c, err := f.svc.GetCampaign(f.ctx, campaign.Address)
	if err != nil {
		f.t.Fatalf("get campaign: %v", err)
	}
	return c
}

func TestInitializeGlobalConfig(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	admin := newKey(t)

	if _, err := f.svc.GetGlobalConfig(f.ctx); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("get before init err = %v, want %v", err, ErrConfigNotFound)
	}

	cfg, err := f.svc.InitializeGlobalConfig(f.ctx, admin)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !cfg.Admin.Equals(admin) {
		t.Fatalf("admin = %s, want %s", cfg.Admin, admin)
	}
	want, err := f.svc.GlobalConfigAddress()
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !cfg.Address.Equals(want) {
		t.Fatalf("address = %s, want %s", cfg.Address, want)
	}

	if _, err := f.svc.InitializeGlobalConfig(f.ctx, newKey(t)); !errors.Is(err, ErrConfigAlreadyInitialized) {
		t.Fatalf("second init err = %v, want %v", err, ErrConfigAlreadyInitialized)
	}
	got, err := f.svc.GetGlobalConfig(f.ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Admin.Equals(admin) {
		t.Fatalf("admin after rejected init = %s, want %s", got.Admin, admin)
	}
}

func TestUpdateGlobalAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	admin := newKey(t)
	next := newKey(t)

	if _, err := f.svc.UpdateGlobalAdmin(f.ctx, admin, next); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("update before init err = %v, want %v", err, ErrConfigNotFound)
	}
	if _, err := f.svc.InitializeGlobalConfig(f.ctx, admin); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, err := f.svc.UpdateGlobalAdmin(f.ctx, newKey(t), next); !errors.Is(err, ErrUnauthorizedAdmin) {
		t.Fatalf("stranger err = %v, want %v", err, ErrUnauthorizedAdmin)
	}
	if _, err := f.svc.UpdateGlobalAdmin(f.ctx, admin, admin); !errors.Is(err, ErrAdminCannotBeSame) {
		t.Fatalf("same admin err = %v, want %v", err, ErrAdminCannotBeSame)
	}
	if _, err := f.svc.UpdateGlobalAdmin(f.ctx, admin, solana.PublicKey{}); !errors.Is(err, ErrInvalidAdmin) {
		t.Fatalf("zero admin err = %v, want %v", err, ErrInvalidAdmin)
	}
	if cfg, err := f.svc.GetGlobalConfig(f.ctx); err != nil || !cfg.Admin.Equals(admin) {
		t.Fatalf("config after zero admin = %+v, %v", cfg, err)
	}

	cfg, err := f.svc.UpdateGlobalAdmin(f.ctx, admin, next)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !cfg.Admin.Equals(next) {
		t.Fatalf("admin = %s, want %s", cfg.Admin, next)
	}
	if _, err := f.svc.UpdateGlobalAdmin(f.ctx, admin, newKey(t)); !errors.Is(err, ErrUnauthorizedAdmin) {
		t.Fatalf("former admin err = %v, want %v", err, ErrUnauthorizedAdmin)
	}

	events, err := f.svc.ListEvents(f.ctx, solana.PublicKey{}, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].Kind != model.EventGlobalConfigInitialized || events[1].Kind != model.EventGlobalAdminUpdated {
		t.Fatalf("events = %+v, want initialized then updated", events)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)

	base := CreateCampaignParams{Name: "n", Description: "d", TargetAmount: 1, FundMint: f.mint}
	tests := []struct {
		name   string
		mutate func(p *CreateCampaignParams)
		want   error
	}{
		{"empty name", func(p *CreateCampaignParams) { p.Name = "" }, ErrNameEmpty},
		{"name 51 bytes", func(p *CreateCampaignParams) { p.Name = strings.Repeat("a", 51) }, ErrNameTooLong},
		{"empty description", func(p *CreateCampaignParams) { p.Description = "" }, ErrDescriptionEmpty},
		{"description 201 bytes", func(p *CreateCampaignParams) { p.Description = strings.Repeat("d", 201) }, ErrDescriptionTooLong},
		{"zero target", func(p *CreateCampaignParams) { p.TargetAmount = 0 }, ErrTargetNotPositive},
		{"unknown mint", func(p *CreateCampaignParams) { p.FundMint = newKey(t) }, ErrInvalidMint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if _, err := f.svc.CreateCampaign(f.ctx, creator, p); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	p := base
	p.Name = strings.Repeat("a", 50)
	p.Description = strings.Repeat("d", 200)
	c, err := f.svc.CreateCampaign(f.ctx, creator, p)
	if err != nil {
		t.Fatalf("boundary lengths: %v", err)
	}
	if c.AmountDonated != 0 || c.ThresholdReached {
		t.Fatalf("new campaign = %+v, want zero totals", c)
	}
	if f.balance(c.Escrow) != 0 {
		t.Fatalf("escrow balance = %d, want 0", f.balance(c.Escrow))
	}
	found, err := f.svc.GetCampaignByName(f.ctx, creator, p.Name)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.Address.Equals(c.Address) {
		t.Fatalf("find address = %s, want %s", found.Address, c.Address)
	}
}

func TestCreateCampaignCollision(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := newKey(t)
	bob := newKey(t)

	first := f.createCampaign(alice, "roof", 10)
	if _, err := f.svc.CreateCampaign(f.ctx, alice, CreateCampaignParams{
		Name: "roof", Description: "other", TargetAmount: 99, FundMint: f.mint,
	}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want %v", err, ErrAlreadyExists)
	}
	if got := f.reload(first); got.TargetAmount != 10 || got.Description != "help us build it" {
		t.Fatalf("first campaign changed: %+v", got)
	}

	other := f.createCampaign(bob, "roof", 10)
	if other.Address.Equals(first.Address) || other.Escrow.Equals(first.Escrow) {
		t.Fatal("campaigns from different creators share an address")
	}
}

func TestDonateCrossesThresholdOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	campaign := f.createCampaign(newKey(t), "well", 1000)
	donor := newKey(t)
	f.fund(donor, 2000)

	steps := []struct {
		amount  model.Amount
		total   model.Amount
		crossed bool
		reached bool
	}{
		{400, 400, false, false},
		{400, 800, false, false},
		{200, 1000, true, true},
		{50, 1050, false, true},
	}
	for i, step := range steps {
		res := f.donate(donor, campaign, step.amount)
		if res.Campaign.AmountDonated != step.total {
			t.Fatalf("step %d: total = %d, want %d", i, res.Campaign.AmountDonated, step.total)
		}
		if res.ThresholdCrossed != step.crossed || res.Campaign.ThresholdReached != step.reached {
			t.Fatalf("step %d: crossed=%v reached=%v, want %v/%v", i,
				res.ThresholdCrossed, res.Campaign.ThresholdReached, step.crossed, step.reached)
		}
		if got := f.balance(campaign.Escrow); got != step.total {
			t.Fatalf("step %d: escrow = %d, want %d", i, got, step.total)
		}
	}

	record, err := f.svc.GetDonor(f.ctx, donor, campaign.Address)
	if err != nil {
		t.Fatalf("get donor: %v", err)
	}
	if record.AmountDonated != 1050 {
		t.Fatalf("donor total = %d, want 1050", record.AmountDonated)
	}

	events, err := f.svc.ListEvents(f.ctx, campaign.Address, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var kinds []model.EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	want := []model.EventKind{
		model.EventCampaignCreated,
		model.EventDonation,
		model.EventDonation,
		model.EventDonation,
		model.EventThresholdReached,
		model.EventDonation,
	}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
}

func TestDonateSingleDonationReachesTarget(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	campaign := f.createCampaign(newKey(t), "exact", 500)
	donor := newKey(t)
	f.fund(donor, 500)

	res := f.donate(donor, campaign, 500)
	if !res.ThresholdCrossed || !res.Campaign.ThresholdReached {
		t.Fatalf("donation equal to target did not reach threshold: %+v", res)
	}
}

func TestDonateRejectionsLeaveStateUnchanged(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	campaign := f.createCampaign(newKey(t), "bridge", 1000)
	donor := newKey(t)
	wallet := f.fund(donor, 100)

	otherMint, err := f.svc.Tokens().CreateMint(f.ctx, f.svc.DB(), f.mintAuthority, 6)
	if err != nil {
		t.Fatalf("create other mint: %v", err)
	}
	otherWallet, err := f.svc.Tokens().OpenAccount(f.ctx, f.svc.DB(), donor, otherMint.Address, false)
	if err != nil {
		t.Fatalf("open other wallet: %v", err)
	}
	if _, err := f.svc.Tokens().MintTo(f.ctx, f.svc.DB(), f.mintAuthority, otherMint.Address, otherWallet.Address, 100); err != nil {
		t.Fatalf("fund other wallet: %v", err)
	}
	stranger := f.createCampaign(newKey(t), "elsewhere", 10)

	tests := []struct {
		name string
		p    DonateParams
		want error
	}{
		{"zero amount", DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: 0}, ErrAmountNotPositive},
		{"wrong mint", DonateParams{Campaign: campaign.Address, Mint: otherMint.Address, Amount: 10}, ErrInvalidMint},
		{"holding account of other mint", DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: 10, DonorAccount: otherWallet.Address}, ErrInvalidMint},
		{"foreign escrow", DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: 10, Escrow: stranger.Escrow}, ErrInvalidEscrow},
		{"unknown campaign", DonateParams{Campaign: newKey(t), Mint: f.mint, Amount: 10}, ErrCampaignNotFound},
		{"insufficient funds", DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: 101}, token.ErrInsufficientFunds},
		{"escrow as source", DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: 1, DonorAccount: stranger.Escrow}, token.ErrOwnerMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Donate(f.ctx, donor, tt.p); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got := f.reload(campaign)
	if got.AmountDonated != 0 || got.ThresholdReached || got.Version != campaign.Version {
		t.Fatalf("campaign changed after rejections: %+v", got)
	}
	if f.balance(wallet) != 100 || f.balance(campaign.Escrow) != 0 {
		t.Fatalf("balances moved: wallet=%d escrow=%d", f.balance(wallet), f.balance(campaign.Escrow))
	}
	if _, err := f.svc.GetDonor(f.ctx, donor, campaign.Address); !errors.Is(err, ErrDonorNotFound) {
		t.Fatalf("donor record err = %v, want %v", err, ErrDonorNotFound)
	}
}

func TestDonateOverflow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	campaign := f.createCampaign(newKey(t), "huge", math.MaxUint64)
	donor := newKey(t)
	wallet := f.fund(donor, math.MaxUint64)

	f.donate(donor, campaign, math.MaxUint64-5)
	if _, err := f.svc.Donate(f.ctx, donor, DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: 10}); !errors.Is(err, ErrOverflow) {
		t.Fatalf("overflow err = %v, want %v", err, ErrOverflow)
	}
	if got := f.reload(campaign); got.AmountDonated != math.MaxUint64-5 {
		t.Fatalf("total = %d, want %d", got.AmountDonated, model.Amount(math.MaxUint64-5))
	}
	if f.balance(wallet) != 5 {
		t.Fatalf("wallet = %d, want 5", f.balance(wallet))
	}

	res := f.donate(donor, campaign, 5)
	if res.Campaign.AmountDonated != math.MaxUint64 || !res.ThresholdCrossed {
		t.Fatalf("final donation = %+v, want max total and crossing", res.Campaign)
	}
}

func TestWithdraw(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)
	campaign := f.createCampaign(creator, "garden", 1000)
	donor := newKey(t)
	f.fund(donor, 5000)

	f.donate(donor, campaign, 600)
	if _, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint}); !errors.Is(err, ErrThresholdNotReached) {
		t.Fatalf("below threshold err = %v, want %v", err, ErrThresholdNotReached)
	}
	f.donate(donor, campaign, 600)

	if _, err := f.svc.Withdraw(f.ctx, newKey(t), WithdrawParams{Campaign: campaign.Address, Mint: f.mint}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-creator err = %v, want %v", err, ErrUnauthorized)
	}
	if _, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: newKey(t)}); !errors.Is(err, ErrInvalidMint) {
		t.Fatalf("wrong mint err = %v, want %v", err, ErrInvalidMint)
	}
	if got := f.reload(campaign); got.AmountDonated != 1200 || !got.ThresholdReached {
		t.Fatalf("campaign after rejected withdrawals = %+v", got)
	}

	res, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Amount != 1200 {
		t.Fatalf("released = %d, want 1200", res.Amount)
	}
	if f.balance(res.CreatorAccount) != 1200 || f.balance(campaign.Escrow) != 0 {
		t.Fatalf("balances creator=%d escrow=%d, want 1200/0", f.balance(res.CreatorAccount), f.balance(campaign.Escrow))
	}
	if res.Campaign.AmountDonated != 0 || res.Campaign.ThresholdReached {
		t.Fatalf("campaign not reset: %+v", res.Campaign)
	}

	if _, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint}); !errors.Is(err, ErrThresholdNotReached) {
		t.Fatalf("repeat withdraw err = %v, want %v", err, ErrThresholdNotReached)
	}

	// The campaign accumulates again from zero.
	again := f.donate(donor, campaign, 1)
	if again.Campaign.AmountDonated != 1 || again.Campaign.ThresholdReached {
		t.Fatalf("reaccumulated campaign = %+v", again.Campaign)
	}
	res2 := f.donate(donor, campaign, 999)
	if !res2.ThresholdCrossed {
		t.Fatal("threshold did not cross again after reset")
	}
	second, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint, CreatorAccount: res.CreatorAccount})
	if err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	if second.Amount != 1000 || f.balance(res.CreatorAccount) != 2200 {
		t.Fatalf("second release = %d creator=%d, want 1000/2200", second.Amount, f.balance(res.CreatorAccount))
	}
}

func TestWithdrawRejectsForeignDestination(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)
	campaign := f.createCampaign(creator, "mill", 10)
	donor := newKey(t)
	donorWallet := f.fund(donor, 10)
	f.donate(donor, campaign, 10)

	_, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint, CreatorAccount: donorWallet})
	if !errors.Is(err, token.ErrOwnerMismatch) {
		t.Fatalf("foreign destination err = %v, want %v", err, token.ErrOwnerMismatch)
	}
	if f.balance(campaign.Escrow) != 10 {
		t.Fatalf("escrow = %d, want 10", f.balance(campaign.Escrow))
	}
}

func TestWithdrawEmptyEscrow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)
	campaign := f.createCampaign(creator, "drained", 10)
	donor := newKey(t)
	f.fund(donor, 10)
	f.donate(donor, campaign, 10)

	// Force the escrow out of step with the record.
	if _, err := f.svc.DB().ExecContext(f.ctx,
		`UPDATE token_accounts SET amount = ? WHERE address = ?`, model.Amount(0), campaign.Escrow.String()); err != nil {
		t.Fatalf("drain escrow: %v", err)
	}
	if _, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint}); !errors.Is(err, ErrNoFundsToWithdraw) {
		t.Fatalf("empty escrow err = %v, want %v", err, ErrNoFundsToWithdraw)
	}
}

func TestDonorTotalSurvivesWithdrawal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)
	campaign := f.createCampaign(creator, "library", 100)
	donor := newKey(t)
	f.fund(donor, 150)

	f.donate(donor, campaign, 100)
	if _, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	res := f.donate(donor, campaign, 50)

	if res.Donor.AmountDonated != 150 {
		t.Fatalf("donor total = %d, want 150", res.Donor.AmountDonated)
	}
	if res.Campaign.AmountDonated != 50 || res.Campaign.ThresholdReached {
		t.Fatalf("campaign = %+v, want 50 and not reached", res.Campaign)
	}
}

func TestDonorsAreIndependent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	campaign := f.createCampaign(newKey(t), "school", 1000)
	alice := newKey(t)
	bob := newKey(t)
	f.fund(alice, 300)
	f.fund(bob, 300)

	f.donate(alice, campaign, 120)
	f.donate(bob, campaign, 80)
	f.donate(alice, campaign, 30)

	for _, tt := range []struct {
		donor solana.PublicKey
		want  model.Amount
	}{{alice, 150}, {bob, 80}} {
		d, err := f.svc.GetDonor(f.ctx, tt.donor, campaign.Address)
		if err != nil {
			t.Fatalf("get donor: %v", err)
		}
		if d.AmountDonated != tt.want {
			t.Fatalf("donor %s total = %d, want %d", tt.donor, d.AmountDonated, tt.want)
		}
	}
	if got := f.reload(campaign); got.AmountDonated != 230 || f.balance(got.Escrow) != 230 {
		t.Fatalf("campaign total = %d escrow = %d, want 230", got.AmountDonated, f.balance(got.Escrow))
	}
}

func TestCreateCampaignEscrowCannotBeSquatted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)
	addr, err := f.svc.CampaignAddress(creator, "garden")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if _, err := f.svc.Tokens().OpenAccount(f.ctx, f.svc.DB(), addr, f.mint, false); !errors.Is(err, token.ErrDerivedOwner) {
		t.Fatalf("holding account at campaign address err = %v, want %v", err, token.ErrDerivedOwner)
	}

	campaign := f.createCampaign(creator, "garden", 10)
	escrow, err := f.svc.Tokens().GetAccount(f.ctx, f.svc.DB(), campaign.Escrow)
	if err != nil {
		t.Fatalf("get escrow: %v", err)
	}
	if !escrow.Custodial || !escrow.Owner.Equals(addr) {
		t.Fatalf("escrow = %+v, want custodial and owned by %s", escrow, addr)
	}
	if _, err := f.svc.Tokens().MintTo(f.ctx, f.svc.DB(), f.mintAuthority, f.mint, campaign.Escrow, 5); !errors.Is(err, token.ErrCustodialAccount) {
		t.Fatalf("mint into escrow err = %v, want %v", err, token.ErrCustodialAccount)
	}
}

func TestCreateCampaignConcurrent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateCampaign(f.ctx, creator, CreateCampaignParams{
				Name: "race", Description: "only one wins", TargetAmount: 10, FundMint: f.mint,
			})
			switch {
			case err == nil:
				mu.Lock()
				created++
				mu.Unlock()
			case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
			default:
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created = %d, want exactly 1", created)
	}
}

func TestConcurrentDonations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	campaign := f.createCampaign(newKey(t), "well", 60)

	const (
		donors = 20
		amount = model.Amount(5)
	)
	keys := make([]solana.PublicKey, donors)
	for i := range keys {
		keys[i] = newKey(t)
		f.fund(keys[i], amount)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded = make(map[solana.PublicKey]bool)
	)
	for _, donor := range keys {
		wg.Add(1)
		go func(donor solana.PublicKey) {
			defer wg.Done()
			_, err := f.svc.Donate(f.ctx, donor, DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: amount})
			switch {
			case err == nil:
				mu.Lock()
				succeeded[donor] = true
				mu.Unlock()
			case errors.Is(err, ErrConflict):
			default:
				t.Errorf("donate: %v", err)
			}
		}(donor)
	}
	wg.Wait()

	total := amount * model.Amount(len(succeeded))
	got := f.reload(campaign)
	if got.AmountDonated != total {
		t.Fatalf("amount donated = %d, want %d from %d successes", got.AmountDonated, total, len(succeeded))
	}
	if escrow := f.balance(campaign.Escrow); escrow != total {
		t.Fatalf("escrow = %d, want %d", escrow, total)
	}
	if got.ThresholdReached != (total >= campaign.TargetAmount) {
		t.Fatalf("threshold = %v with total %d", got.ThresholdReached, total)
	}

	for _, donor := range keys {
		d, err := f.svc.GetDonor(f.ctx, donor, campaign.Address)
		if !succeeded[donor] {
			if !errors.Is(err, ErrDonorNotFound) {
				t.Fatalf("donor without success err = %v, want %v", err, ErrDonorNotFound)
			}
			continue
		}
		if err != nil || d.AmountDonated != amount {
			t.Fatalf("donor record = %+v, %v; want %d", d, err, amount)
		}
	}

	events, err := f.svc.ListEvents(f.ctx, campaign.Address, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var donations, crossings int
	for _, e := range events {
		switch e.Kind {
		case model.EventDonation:
			donations++
		case model.EventThresholdReached:
			crossings++
		}
	}
	wantCrossings := 0
	if got.ThresholdReached {
		wantCrossings = 1
	}
	if donations != len(succeeded) || crossings != wantCrossings {
		t.Fatalf("events donations=%d crossings=%d, want %d/%d", donations, crossings, len(succeeded), wantCrossings)
	}
}

func TestConcurrentDonationsFromOneDonor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	campaign := f.createCampaign(newKey(t), "bridge", 1000)
	donor := newKey(t)
	wallet := f.fund(donor, 100)

	const (
		calls  = 10
		amount = model.Amount(3)
	)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Donate(f.ctx, donor, DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: amount})
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, ErrConflict):
			default:
				t.Errorf("donate: %v", err)
			}
		}()
	}
	wg.Wait()

	total := amount * model.Amount(succeeded)
	d, err := f.svc.GetDonor(f.ctx, donor, campaign.Address)
	if err != nil {
		t.Fatalf("get donor: %v", err)
	}
	if d.AmountDonated != total || f.reload(campaign).AmountDonated != total {
		t.Fatalf("donor=%d campaign=%d, want %d", d.AmountDonated, f.reload(campaign).AmountDonated, total)
	}
	if f.balance(wallet) != 100-total || f.balance(campaign.Escrow) != total {
		t.Fatalf("wallet=%d escrow=%d, want %d/%d", f.balance(wallet), f.balance(campaign.Escrow), 100-total, total)
	}
}

func TestConcurrentDonateAndWithdraw(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	creator := newKey(t)
	campaign := f.createCampaign(creator, "canal", 100)
	seed := newKey(t)
	f.fund(seed, 100)
	f.donate(seed, campaign, 100)

	const (
		donors = 10
		amount = model.Amount(7)
	)
	keys := make([]solana.PublicKey, donors)
	for i := range keys {
		keys[i] = newKey(t)
		f.fund(keys[i], amount)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		donated   model.Amount
		withdrawn *WithdrawResult
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := f.svc.Withdraw(f.ctx, creator, WithdrawParams{Campaign: campaign.Address, Mint: f.mint})
		switch {
		case err == nil:
			mu.Lock()
			withdrawn = res
			mu.Unlock()
		case errors.Is(err, ErrConflict):
		default:
			t.Errorf("withdraw: %v", err)
		}
	}()
	for _, donor := range keys {
		wg.Add(1)
		go func(donor solana.PublicKey) {
			defer wg.Done()
			_, err := f.svc.Donate(f.ctx, donor, DonateParams{Campaign: campaign.Address, Mint: f.mint, Amount: amount})
			switch {
			case err == nil:
				mu.Lock()
				donated += amount
				mu.Unlock()
			case errors.Is(err, ErrConflict):
			default:
				t.Errorf("donate: %v", err)
			}
		}(donor)
	}
	wg.Wait()

	var released model.Amount
	if withdrawn != nil {
		released = withdrawn.Amount
		if f.balance(withdrawn.CreatorAccount) != released {
			t.Fatalf("creator balance = %d, want %d", f.balance(withdrawn.CreatorAccount), released)
		}
	}
	got := f.reload(campaign)
	if 100+donated != released+got.AmountDonated {
		t.Fatalf("in=%d, released=%d + remaining=%d", 100+donated, released, got.AmountDonated)
	}
	if escrow := f.balance(campaign.Escrow); escrow != got.AmountDonated {
		t.Fatalf("escrow = %d, campaign total = %d", escrow, got.AmountDonated)
	}
	if got.ThresholdReached != (got.AmountDonated >= campaign.TargetAmount) {
		t.Fatalf("threshold = %v with total %d", got.ThresholdReached, got.AmountDonated)
	}
}
