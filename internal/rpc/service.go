// Package rpc describes the crowdfund connect services: procedure names,
// request and response messages, handler and client constructors, and the
// request signing that carries caller identity.
package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	LedgerServiceName = "crowdfund.v1.LedgerService"
	TokenServiceName  = "crowdfund.v1.TokenService"
)

const (
	LedgerServiceInitializeGlobalConfigProcedure = "/crowdfund.v1.LedgerService/InitializeGlobalConfig"
	LedgerServiceUpdateGlobalAdminProcedure      = "/crowdfund.v1.LedgerService/UpdateGlobalAdmin"
	LedgerServiceCreateCampaignProcedure         = "/crowdfund.v1.LedgerService/CreateCampaign"
	LedgerServiceDonateProcedure                 = "/crowdfund.v1.LedgerService/Donate"
	LedgerServiceWithdrawProcedure               = "/crowdfund.v1.LedgerService/Withdraw"
	LedgerServiceGetCampaignProcedure            = "/crowdfund.v1.LedgerService/GetCampaign"
	LedgerServiceGetDonorProcedure               = "/crowdfund.v1.LedgerService/GetDonor"
	LedgerServiceGetGlobalConfigProcedure        = "/crowdfund.v1.LedgerService/GetGlobalConfig"
	LedgerServiceListEventsProcedure             = "/crowdfund.v1.LedgerService/ListEvents"

	TokenServiceCreateMintProcedure  = "/crowdfund.v1.TokenService/CreateMint"
	TokenServiceOpenAccountProcedure = "/crowdfund.v1.TokenService/OpenAccount"
	TokenServiceMintToProcedure      = "/crowdfund.v1.TokenService/MintTo"
	TokenServiceGetAccountProcedure  = "/crowdfund.v1.TokenService/GetAccount"
)

// LedgerServiceHandler is implemented by the server side of crowdfund.v1.LedgerService
type LedgerServiceHandler interface {
	InitializeGlobalConfig(context.Context, *connect.Request[InitializeGlobalConfigRequest]) (*connect.Response[InitializeGlobalConfigResponse], error)
	UpdateGlobalAdmin(context.Context, *connect.Request[UpdateGlobalAdminRequest]) (*connect.Response[UpdateGlobalAdminResponse], error)
	CreateCampaign(context.Context, *connect.Request[CreateCampaignRequest]) (*connect.Response[CreateCampaignResponse], error)
	Donate(context.Context, *connect.Request[DonateRequest]) (*connect.Response[DonateResponse], error)
	Withdraw(context.Context, *connect.Request[WithdrawRequest]) (*connect.Response[WithdrawResponse], error)
	GetCampaign(context.Context, *connect.Request[GetCampaignRequest]) (*connect.Response[GetCampaignResponse], error)
	GetDonor(context.Context, *connect.Request[GetDonorRequest]) (*connect.Response[GetDonorResponse], error)
	GetGlobalConfig(context.Context, *connect.Request[GetGlobalConfigRequest]) (*connect.Response[GetGlobalConfigResponse], error)
	ListEvents(context.Context, *connect.Request[ListEventsRequest]) (*connect.Response[ListEventsResponse], error)
}

// TokenServiceHandler is implemented by the server side of crowdfund.v1.TokenService
type TokenServiceHandler interface {
	CreateMint(context.Context, *connect.Request[CreateMintRequest]) (*connect.Response[CreateMintResponse], error)
	OpenAccount(context.Context, *connect.Request[OpenAccountRequest]) (*connect.Response[OpenAccountResponse], error)
	MintTo(context.Context, *connect.Request[MintToRequest]) (*connect.Response[MintToResponse], error)
	GetAccount(context.Context, *connect.Request[GetAccountRequest]) (*connect.Response[GetAccountResponse], error)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
}

func readOnly(opts []connect.HandlerOption) []connect.HandlerOption {
	out := make([]connect.HandlerOption, 0, len(opts)+1)
	out = append(out, opts...)
	return append(out, connect.WithIdempotency(connect.IdempotencyNoSideEffects))
}

// NewLedgerServiceHandler returns the mount path and handler for svc
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	routes := map[string]http.Handler{
		LedgerServiceInitializeGlobalConfigProcedure: connect.NewUnaryHandler(LedgerServiceInitializeGlobalConfigProcedure, svc.InitializeGlobalConfig, opts...),
		LedgerServiceUpdateGlobalAdminProcedure:      connect.NewUnaryHandler(LedgerServiceUpdateGlobalAdminProcedure, svc.UpdateGlobalAdmin, opts...),
		LedgerServiceCreateCampaignProcedure:         connect.NewUnaryHandler(LedgerServiceCreateCampaignProcedure, svc.CreateCampaign, opts...),
		LedgerServiceDonateProcedure:                 connect.NewUnaryHandler(LedgerServiceDonateProcedure, svc.Donate, opts...),
		LedgerServiceWithdrawProcedure:               connect.NewUnaryHandler(LedgerServiceWithdrawProcedure, svc.Withdraw, opts...),
		LedgerServiceGetCampaignProcedure:            connect.NewUnaryHandler(LedgerServiceGetCampaignProcedure, svc.GetCampaign, readOnly(opts)...),
		LedgerServiceGetDonorProcedure:               connect.NewUnaryHandler(LedgerServiceGetDonorProcedure, svc.GetDonor, readOnly(opts)...),
		LedgerServiceGetGlobalConfigProcedure:        connect.NewUnaryHandler(LedgerServiceGetGlobalConfigProcedure, svc.GetGlobalConfig, readOnly(opts)...),
		LedgerServiceListEventsProcedure:             connect.NewUnaryHandler(LedgerServiceListEventsProcedure, svc.ListEvents, readOnly(opts)...),
	}
	return "/" + LedgerServiceName + "/", route(routes)
}

// NewTokenServiceHandler returns the mount path and handler for svc
func NewTokenServiceHandler(svc TokenServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	routes := map[string]http.Handler{
		TokenServiceCreateMintProcedure:  connect.NewUnaryHandler(TokenServiceCreateMintProcedure, svc.CreateMint, opts...),
		TokenServiceOpenAccountProcedure: connect.NewUnaryHandler(TokenServiceOpenAccountProcedure, svc.OpenAccount, opts...),
		TokenServiceMintToProcedure:      connect.NewUnaryHandler(TokenServiceMintToProcedure, svc.MintTo, opts...),
		TokenServiceGetAccountProcedure:  connect.NewUnaryHandler(TokenServiceGetAccountProcedure, svc.GetAccount, readOnly(opts)...),
	}
	return "/" + TokenServiceName + "/", route(routes)
}

func route(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// LedgerServiceClient calls crowdfund.v1.LedgerService
type LedgerServiceClient struct {
	initializeGlobalConfig *connect.Client[InitializeGlobalConfigRequest, InitializeGlobalConfigResponse]
	updateGlobalAdmin      *connect.Client[UpdateGlobalAdminRequest, UpdateGlobalAdminResponse]
	createCampaign         *connect.Client[CreateCampaignRequest, CreateCampaignResponse]
	donate                 *connect.Client[DonateRequest, DonateResponse]
	withdraw               *connect.Client[WithdrawRequest, WithdrawResponse]
	getCampaign            *connect.Client[GetCampaignRequest, GetCampaignResponse]
	getDonor               *connect.Client[GetDonorRequest, GetDonorResponse]
	getGlobalConfig        *connect.Client[GetGlobalConfigRequest, GetGlobalConfigResponse]
	listEvents             *connect.Client[ListEventsRequest, ListEventsResponse]
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// NewLedgerServiceClient builds a client against baseURL, e.g. http://localhost:8080
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &LedgerServiceClient{
		initializeGlobalConfig: connect.NewClient[InitializeGlobalConfigRequest, InitializeGlobalConfigResponse](httpClient, baseURL+LedgerServiceInitializeGlobalConfigProcedure, opts...),
		updateGlobalAdmin:      connect.NewClient[UpdateGlobalAdminRequest, UpdateGlobalAdminResponse](httpClient, baseURL+LedgerServiceUpdateGlobalAdminProcedure, opts...),
		createCampaign:         connect.NewClient[CreateCampaignRequest, CreateCampaignResponse](httpClient, baseURL+LedgerServiceCreateCampaignProcedure, opts...),
		donate:                 connect.NewClient[DonateRequest, DonateResponse](httpClient, baseURL+LedgerServiceDonateProcedure, opts...),
		withdraw:               connect.NewClient[WithdrawRequest, WithdrawResponse](httpClient, baseURL+LedgerServiceWithdrawProcedure, opts...),
		getCampaign:            connect.NewClient[GetCampaignRequest, GetCampaignResponse](httpClient, baseURL+LedgerServiceGetCampaignProcedure, opts...),
		getDonor:               connect.NewClient[GetDonorRequest, GetDonorResponse](httpClient, baseURL+LedgerServiceGetDonorProcedure, opts...),
		getGlobalConfig:        connect.NewClient[GetGlobalConfigRequest, GetGlobalConfigResponse](httpClient, baseURL+LedgerServiceGetGlobalConfigProcedure, opts...),
		listEvents:             connect.NewClient[ListEventsRequest, ListEventsResponse](httpClient, baseURL+LedgerServiceListEventsProcedure, opts...),
	}
}

func (c *LedgerServiceClient) InitializeGlobalConfig(ctx context.Context, req *connect.Request[InitializeGlobalConfigRequest]) (*connect.Response[InitializeGlobalConfigResponse], error) {
	return c.initializeGlobalConfig.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) UpdateGlobalAdmin(ctx context.Context, req *connect.Request[UpdateGlobalAdminRequest]) (*connect.Response[UpdateGlobalAdminResponse], error) {
	return c.updateGlobalAdmin.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) CreateCampaign(ctx context.Context, req *connect.Request[CreateCampaignRequest]) (*connect.Response[CreateCampaignResponse], error) {
	return c.createCampaign.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) Donate(ctx context.Context, req *connect.Request[DonateRequest]) (*connect.Response[DonateResponse], error) {
	return c.donate.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) Withdraw(ctx context.Context, req *connect.Request[WithdrawRequest]) (*connect.Response[WithdrawResponse], error) {
	return c.withdraw.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetCampaign(ctx context.Context, req *connect.Request[GetCampaignRequest]) (*connect.Response[GetCampaignResponse], error) {
	return c.getCampaign.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetDonor(ctx context.Context, req *connect.Request[GetDonorRequest]) (*connect.Response[GetDonorResponse], error) {
	return c.getDonor.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) GetGlobalConfig(ctx context.Context, req *connect.Request[GetGlobalConfigRequest]) (*connect.Response[GetGlobalConfigResponse], error) {
	return c.getGlobalConfig.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListEvents(ctx context.Context, req *connect.Request[ListEventsRequest]) (*connect.Response[ListEventsResponse], error) {
	return c.listEvents.CallUnary(ctx, req)
}

// TokenServiceClient calls crowdfund.v1.TokenService
type TokenServiceClient struct {
	createMint  *connect.Client[CreateMintRequest, CreateMintResponse]
	openAccount *connect.Client[OpenAccountRequest, OpenAccountResponse]
	mintTo      *connect.Client[MintToRequest, MintToResponse]
	getAccount  *connect.Client[GetAccountRequest, GetAccountResponse]
}

// NewTokenServiceClient builds a client against baseURL
func NewTokenServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TokenServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &TokenServiceClient{
		createMint:  connect.NewClient[CreateMintRequest, CreateMintResponse](httpClient, baseURL+TokenServiceCreateMintProcedure, opts...),
		openAccount: connect.NewClient[OpenAccountRequest, OpenAccountResponse](httpClient, baseURL+TokenServiceOpenAccountProcedure, opts...),
		mintTo:      connect.NewClient[MintToRequest, MintToResponse](httpClient, baseURL+TokenServiceMintToProcedure, opts...),
		getAccount:  connect.NewClient[GetAccountRequest, GetAccountResponse](httpClient, baseURL+TokenServiceGetAccountProcedure, opts...),
	}
}

func (c *TokenServiceClient) CreateMint(ctx context.Context, req *connect.Request[CreateMintRequest]) (*connect.Response[CreateMintResponse], error) {
	return c.createMint.CallUnary(ctx, req)
}

func (c *TokenServiceClient) OpenAccount(ctx context.Context, req *connect.Request[OpenAccountRequest]) (*connect.Response[OpenAccountResponse], error) {
	return c.openAccount.CallUnary(ctx, req)
}

func (c *TokenServiceClient) MintTo(ctx context.Context, req *connect.Request[MintToRequest]) (*connect.Response[MintToResponse], error) {
	return c.mintTo.CallUnary(ctx, req)
}

func (c *TokenServiceClient) GetAccount(ctx context.Context, req *connect.Request[GetAccountRequest]) (*connect.Response[GetAccountResponse], error) {
	return c.getAccount.CallUnary(ctx, req)
}
