package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/kkkkikiki/crowdfund/internal/model"
	"github.com/kkkkikiki/crowdfund/internal/rpc"
)

// PerfResult gathers aggregated metrics for the test run.
// LatencySum & P95Latency are in nanoseconds; Donated is in base units.
type PerfResult struct {
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	ConflictCount int64
	LatencySum    int64
	P95Latency    int64
	Donated       uint64
}

const (
	fixedWorkers   = 50
	fixedRPSTarget = 300
	fixedDuration  = 30 * time.Second
	defaultTimeout = 30 * time.Second
	mintDecimals   = 6
	donationUnits  = 1_000_000      // 1.0 token
	walletUnits    = 10_000_000_000 // 10,000 tokens per donor
	targetUnits    = 5_000_000_000  // 5,000 tokens
)

func main() {
	baseURL := os.Getenv("PERF_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	rps := fixedRPSTarget
	duration := fixedDuration
	workers := fixedWorkers

	transport := &http.Transport{
		MaxIdleConns:        workers * 4,
		MaxIdleConnsPerHost: workers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 2*time.Minute)
	fx, err := setup(setupCtx, httpClient, baseURL, workers)
	cancelSetup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("==========================================")
	fmt.Println("crowdfund donation load test")
	fmt.Println("==========================================")
	fmt.Printf("campaign   : %s\n", fx.campaign.Address)
	fmt.Printf("target     : %s\n", display(fx.campaign.TargetAmount))
	fmt.Printf("donors     : %d\n", workers)
	fmt.Printf("RPS        : %d\n", rps)
	fmt.Printf("duration   : %v\n", duration)
	fmt.Println("==========================================")

	burst := rps / workers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var result PerfResult
	var wg sync.WaitGroup

	latencyChan := make(chan time.Duration, 4096)
	trackerDone := make(chan struct{})
	go func() {
		trackP95(latencyChan, &result)
		close(trackerDone)
	}()

	// One donor per worker, so a worker never races itself on a wallet.
	for _, donor := range fx.donors {
		wg.Add(1)
		go func(client *rpc.LedgerServiceClient) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				donate(client, fx, &result, latencyChan)
			}
		}(donor)
	}

	start := time.Now()
	<-ctx.Done()

	wg.Wait()
	close(latencyChan)
	<-trackerDone

	totalDur := time.Since(start)

	fmt.Println("==========================================")
	fmt.Println("results")
	fmt.Println("==========================================")
	fmt.Printf("elapsed            : %.2fs\n", totalDur.Seconds())
	fmt.Printf("total requests     : %d\n", result.TotalRequests)
	fmt.Printf("succeeded          : %d\n", result.SuccessCount)
	fmt.Printf("failed             : %d (conflicts %d)\n", result.ErrorCount, result.ConflictCount)

	actualRPS := float64(result.SuccessCount) / totalDur.Seconds()
	var successRate float64
	if result.TotalRequests > 0 {
		successRate = float64(result.SuccessCount) / float64(result.TotalRequests) * 100
	}
	var avgLatency time.Duration
	if result.SuccessCount > 0 {
		avgLatency = time.Duration(result.LatencySum / result.SuccessCount)
	}

	fmt.Printf("actual RPS         : %.2f\n", actualRPS)
	fmt.Printf("success rate       : %.2f%%\n", successRate)
	fmt.Printf("avg latency        : %v\n", avgLatency)
	fmt.Printf("P95 latency        : %v\n", time.Duration(result.P95Latency))
	fmt.Printf("donated            : %s\n", display(model.Amount(atomic.LoadUint64(&result.Donated))))
	fmt.Println("==========================================")

	fmt.Println("consistency check")
	fmt.Println("==========================================")
	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelVerify()
	if err := verifyConsistency(verifyCtx, fx, model.Amount(atomic.LoadUint64(&result.Donated))); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK: ledger, escrow and client totals agree")
	fmt.Println("==========================================")
}

type fixture struct {
	mint     solana.PublicKey
	campaign *model.Campaign
	donors   []*rpc.LedgerServiceClient
	reader   *rpc.LedgerServiceClient
	tokens   *rpc.TokenServiceClient
}

func signedOpts(key solana.PrivateKey) connect.ClientOption {
	return connect.WithInterceptors(rpc.NewSigningInterceptor(key))
}

// setup creates a mint, a campaign and one funded wallet per donor
func setup(ctx context.Context, httpClient *http.Client, baseURL string, donors int) (*fixture, error) {
	issuer, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	creator, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	issuerTokens := rpc.NewTokenServiceClient(httpClient, baseURL, signedOpts(issuer))

	mintRes, err := issuerTokens.CreateMint(ctx, connect.NewRequest(&rpc.CreateMintRequest{Decimals: mintDecimals}))
	if err != nil {
		return nil, fmt.Errorf("create mint: %w", err)
	}
	mint := mintRes.Msg.Mint.Address

	creatorLedger := rpc.NewLedgerServiceClient(httpClient, baseURL, signedOpts(creator))
	campaignRes, err := creatorLedger.CreateCampaign(ctx, connect.NewRequest(&rpc.CreateCampaignRequest{
		Name:         fmt.Sprintf("perf-%d", time.Now().UnixNano()),
		Description:  "load test campaign",
		TargetAmount: targetUnits,
		FundMint:     mint,
	}))
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	fx := &fixture{
		mint:     mint,
		campaign: campaignRes.Msg.Campaign,
		reader:   rpc.NewLedgerServiceClient(httpClient, baseURL),
		tokens:   rpc.NewTokenServiceClient(httpClient, baseURL),
	}
	for i := 0; i < donors; i++ {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, err
		}
		wallet, err := rpc.NewTokenServiceClient(httpClient, baseURL, signedOpts(key)).
			OpenAccount(ctx, connect.NewRequest(&rpc.OpenAccountRequest{Mint: mint}))
		if err != nil {
			return nil, fmt.Errorf("open donor wallet: %w", err)
		}
		if _, err := issuerTokens.MintTo(ctx, connect.NewRequest(&rpc.MintToRequest{
			Mint: mint, Account: wallet.Msg.Account.Address, Amount: walletUnits,
		})); err != nil {
			return nil, fmt.Errorf("fund donor wallet: %w", err)
		}
		fx.donors = append(fx.donors, rpc.NewLedgerServiceClient(httpClient, baseURL, signedOpts(key)))
	}
	return fx, nil
}

// donate performs a single Donate RPC and collects metrics.
func donate(client *rpc.LedgerServiceClient, fx *fixture, result *PerfResult, latencyChan chan<- time.Duration) {
	// Use independent context to avoid cancellation when test ends
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	req := connect.NewRequest(&rpc.DonateRequest{
		Campaign: fx.campaign.Address,
		Mint:     fx.mint,
		Amount:   donationUnits,
	})

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	_, err := client.Donate(ctx, req)
	latency := time.Since(start)

	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		if connect.CodeOf(err) == connect.CodeAborted {
			atomic.AddInt64(&result.ConflictCount, 1)
		}
		return
	}
	atomic.AddInt64(&result.SuccessCount, 1)
	atomic.AddUint64(&result.Donated, donationUnits)
	atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
	select {
	case latencyChan <- latency:
	default:
	}
}

// trackP95 maintains a best-effort rolling P95 latency estimation.
func trackP95(latencies <-chan time.Duration, result *PerfResult) {
	const size = 1000
	buf := make([]int64, 0, size)

	for lat := range latencies {
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else if idx := time.Now().UnixNano() % int64(size); idx < int64(size/10) {
			buf[idx] = lat.Nanoseconds()
		}

		if len(buf) >= 100 && len(buf)%100 == 0 {
			sorted := slices.Clone(buf)
			slices.Sort(sorted)
			p95Index := int(float64(len(sorted)) * 0.95)
			if p95Index >= len(sorted) {
				p95Index = len(sorted) - 1
			}
			atomic.StoreInt64(&result.P95Latency, sorted[p95Index])
		}
	}
}

// verifyConsistency checks the campaign total against successful donations
// and against the escrow balance
func verifyConsistency(ctx context.Context, fx *fixture, expected model.Amount) error {
	campaignRes, err := fx.reader.GetCampaign(ctx, connect.NewRequest(&rpc.GetCampaignRequest{Address: fx.campaign.Address}))
	if err != nil {
		return fmt.Errorf("get campaign: %w", err)
	}
	campaign := campaignRes.Msg.Campaign

	escrowRes, err := fx.tokens.GetAccount(ctx, connect.NewRequest(&rpc.GetAccountRequest{Address: campaign.Escrow}))
	if err != nil {
		return fmt.Errorf("get escrow: %w", err)
	}
	escrow := escrowRes.Msg.Account.Amount

	fmt.Printf("campaign total     : %s\n", display(campaign.AmountDonated))
	fmt.Printf("escrow balance     : %s\n", display(escrow))
	fmt.Printf("client total       : %s\n", display(expected))
	fmt.Printf("threshold reached  : %v\n", campaign.ThresholdReached)

	if campaign.AmountDonated != expected {
		return fmt.Errorf("campaign total %s != client total %s", display(campaign.AmountDonated), display(expected))
	}
	if escrow != campaign.AmountDonated {
		return fmt.Errorf("escrow %s != campaign total %s", display(escrow), display(campaign.AmountDonated))
	}
	if campaign.ThresholdReached != (campaign.AmountDonated >= campaign.TargetAmount) {
		return fmt.Errorf("threshold flag %v disagrees with total %s / target %s",
			campaign.ThresholdReached, display(campaign.AmountDonated), display(campaign.TargetAmount))
	}
	return nil
}

// display renders base units as whole tokens
func display(a model.Amount) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -mintDecimals).String()
}
