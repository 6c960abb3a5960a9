package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDonation(t *testing.T) {
	const mint = "MintForDonationTest1111111111111111111111111"
	beforeThreshold := testutil.ToFloat64(ThresholdReached)

	RecordDonation(mint, 400, false)
	RecordDonation(mint, 600, true)

	if got := testutil.ToFloat64(DonatedAmount.WithLabelValues(mint)); got != 1000 {
		t.Fatalf("donated = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(ThresholdReached) - beforeThreshold; got != 1 {
		t.Fatalf("threshold delta = %v, want 1", got)
	}
}

func TestRecordWithdrawal(t *testing.T) {
	const mint = "MintForWithdrawalTest111111111111111111111111"
	RecordWithdrawal(mint, 250)
	if got := testutil.ToFloat64(WithdrawnAmount.WithLabelValues(mint)); got != 250 {
		t.Fatalf("withdrawn = %v, want 250", got)
	}
}

func TestRecordOperationDuration(t *testing.T) {
	RecordOperationDuration("donate_test", StatusSuccess, 0.002)
	RecordOperationDuration("donate_test", StatusFailure, 0.2)
	if n := testutil.CollectAndCount(OperationDuration, "crowdfund_operation_duration_seconds"); n < 2 {
		t.Fatalf("series = %d, want at least 2", n)
	}
}
