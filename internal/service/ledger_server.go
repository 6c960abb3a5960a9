package service

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/kkkkikiki/crowdfund/internal/ledger"
	"github.com/kkkkikiki/crowdfund/internal/metrics"
	"github.com/kkkkikiki/crowdfund/internal/model"
	"github.com/kkkkikiki/crowdfund/internal/rpc"
)

// LedgerServer implements crowdfund.v1.LedgerService
type LedgerServer struct {
	ledger *ledger.Service
	log    zerolog.Logger
}

var _ rpc.LedgerServiceHandler = (*LedgerServer)(nil)

// NewLedgerServer creates a new LedgerServer instance
func NewLedgerServer(svc *ledger.Service, log zerolog.Logger) *LedgerServer {
	return &LedgerServer{ledger: svc, log: log}
}

// observe starts timing op; call the returned func with the final error
func observe(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusFailure
		}
		metrics.RecordOperationDuration(op, status, time.Since(start).Seconds())
	}
}

// InitializeGlobalConfig makes the signer the deployment admin
func (s *LedgerServer) InitializeGlobalConfig(
	ctx context.Context,
	req *connect.Request[rpc.InitializeGlobalConfigRequest],
) (_ *connect.Response[rpc.InitializeGlobalConfigResponse], err error) {
	done := observe("initialize_global_config")
	defer func() { done(err) }()

	caller, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.ledger.InitializeGlobalConfig(ctx, caller)
	if err != nil {
		return nil, toConnectError(s.log, "initialize_global_config", err)
	}
	return connect.NewResponse(&rpc.InitializeGlobalConfigResponse{Config: cfg}), nil
}

// UpdateGlobalAdmin hands admin authority to another identity
func (s *LedgerServer) UpdateGlobalAdmin(
	ctx context.Context,
	req *connect.Request[rpc.UpdateGlobalAdminRequest],
) (_ *connect.Response[rpc.UpdateGlobalAdminResponse], err error) {
	done := observe("update_global_admin")
	defer func() { done(err) }()

	caller, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := s.ledger.UpdateGlobalAdmin(ctx, caller, req.Msg.NewAdmin)
	if err != nil {
		return nil, toConnectError(s.log, "update_global_admin", err)
	}
	return connect.NewResponse(&rpc.UpdateGlobalAdminResponse{Config: cfg}), nil
}

// CreateCampaign opens a campaign owned by the signer
func (s *LedgerServer) CreateCampaign(
	ctx context.Context,
	req *connect.Request[rpc.CreateCampaignRequest],
) (_ *connect.Response[rpc.CreateCampaignResponse], err error) {
	done := observe("create_campaign")
	defer func() { done(err) }()

	creator, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}
	campaign, err := s.ledger.CreateCampaign(ctx, creator, ledger.CreateCampaignParams{
		Name:         req.Msg.Name,
		Description:  req.Msg.Description,
		TargetAmount: req.Msg.TargetAmount,
		FundMint:     req.Msg.FundMint,
	})
	if err != nil {
		return nil, toConnectError(s.log, "create_campaign", err)
	}
	return connect.NewResponse(&rpc.CreateCampaignResponse{Campaign: campaign}), nil
}

// Donate moves funds from the signer into a campaign escrow
func (s *LedgerServer) Donate(
	ctx context.Context,
	req *connect.Request[rpc.DonateRequest],
) (_ *connect.Response[rpc.DonateResponse], err error) {
	done := observe("donate")
	defer func() { done(err) }()

	donor, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.ledger.Donate(ctx, donor, ledger.DonateParams{
		Campaign:     req.Msg.Campaign,
		Mint:         req.Msg.Mint,
		Amount:       req.Msg.Amount,
		Escrow:       req.Msg.Escrow,
		DonorAccount: req.Msg.DonorAccount,
	})
	if err != nil {
		return nil, toConnectError(s.log, "donate", err)
	}
	metrics.RecordDonation(req.Msg.Mint.String(), uint64(req.Msg.Amount), res.ThresholdCrossed)

	return connect.NewResponse(&rpc.DonateResponse{
		Campaign:         res.Campaign,
		Donor:            res.Donor,
		ThresholdCrossed: res.ThresholdCrossed,
	}), nil
}

// Withdraw releases a campaign escrow to its creator
func (s *LedgerServer) Withdraw(
	ctx context.Context,
	req *connect.Request[rpc.WithdrawRequest],
) (_ *connect.Response[rpc.WithdrawResponse], err error) {
	done := observe("withdraw")
	defer func() { done(err) }()

	creator, err := rpc.RequireSigner(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.ledger.Withdraw(ctx, creator, ledger.WithdrawParams{
		Campaign:       req.Msg.Campaign,
		Mint:           req.Msg.Mint,
		CreatorAccount: req.Msg.CreatorAccount,
	})
	if err != nil {
		return nil, toConnectError(s.log, "withdraw", err)
	}
	metrics.RecordWithdrawal(req.Msg.Mint.String(), uint64(res.Amount))

	return connect.NewResponse(&rpc.WithdrawResponse{
		Campaign:       res.Campaign,
		Amount:         res.Amount,
		CreatorAccount: res.CreatorAccount,
	}), nil
}

// GetCampaign reads a campaign by address or by (creator, name)
func (s *LedgerServer) GetCampaign(
	ctx context.Context,
	req *connect.Request[rpc.GetCampaignRequest],
) (*connect.Response[rpc.GetCampaignResponse], error) {
	var (
		c   *model.Campaign
		err error
	)
	if req.Msg.Address.IsZero() {
		c, err = s.ledger.GetCampaignByName(ctx, req.Msg.Creator, req.Msg.Name)
	} else {
		c, err = s.ledger.GetCampaign(ctx, req.Msg.Address)
	}
	if err != nil {
		return nil, toConnectError(s.log, "get_campaign", err)
	}
	return connect.NewResponse(&rpc.GetCampaignResponse{Campaign: c}), nil
}

// GetDonor reads one donor's history with one campaign
func (s *LedgerServer) GetDonor(
	ctx context.Context,
	req *connect.Request[rpc.GetDonorRequest],
) (*connect.Response[rpc.GetDonorResponse], error) {
	d, err := s.ledger.GetDonor(ctx, req.Msg.Donor, req.Msg.Campaign)
	if err != nil {
		return nil, toConnectError(s.log, "get_donor", err)
	}
	return connect.NewResponse(&rpc.GetDonorResponse{Donor: d}), nil
}

// GetGlobalConfig reads the deployment admin record
func (s *LedgerServer) GetGlobalConfig(
	ctx context.Context,
	req *connect.Request[rpc.GetGlobalConfigRequest],
) (*connect.Response[rpc.GetGlobalConfigResponse], error) {
	cfg, err := s.ledger.GetGlobalConfig(ctx)
	if err != nil {
		return nil, toConnectError(s.log, "get_global_config", err)
	}
	return connect.NewResponse(&rpc.GetGlobalConfigResponse{Config: cfg}), nil
}

// ListEvents reads committed transitions of a campaign, oldest first
func (s *LedgerServer) ListEvents(
	ctx context.Context,
	req *connect.Request[rpc.ListEventsRequest],
) (*connect.Response[rpc.ListEventsResponse], error) {
	events, err := s.ledger.ListEvents(ctx, req.Msg.Campaign, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(s.log, "list_events", err)
	}
	return connect.NewResponse(&rpc.ListEventsResponse{Events: events}), nil
}
