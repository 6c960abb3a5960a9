package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/kkkkikiki/crowdfund/internal/custody"
	"github.com/kkkkikiki/crowdfund/internal/ledger"
	"github.com/kkkkikiki/crowdfund/internal/rpc"
	"github.com/kkkkikiki/crowdfund/internal/token"
)

var ledgerCodes = map[string]connect.Code{
	ledger.ErrNameEmpty.Reason:                connect.CodeInvalidArgument,
	ledger.ErrNameTooLong.Reason:              connect.CodeInvalidArgument,
	ledger.ErrDescriptionEmpty.Reason:         connect.CodeInvalidArgument,
	ledger.ErrDescriptionTooLong.Reason:       connect.CodeInvalidArgument,
	ledger.ErrTargetNotPositive.Reason:        connect.CodeInvalidArgument,
	ledger.ErrAmountNotPositive.Reason:        connect.CodeInvalidArgument,
	ledger.ErrInvalidMint.Reason:              connect.CodeInvalidArgument,
	ledger.ErrInvalidAdmin.Reason:             connect.CodeInvalidArgument,
	ledger.ErrInvalidEscrow.Reason:            connect.CodeInvalidArgument,
	ledger.ErrUnauthorized.Reason:             connect.CodePermissionDenied,
	ledger.ErrUnauthorizedAdmin.Reason:        connect.CodePermissionDenied,
	ledger.ErrAlreadyExists.Reason:            connect.CodeAlreadyExists,
	ledger.ErrConfigAlreadyInitialized.Reason: connect.CodeAlreadyExists,
	ledger.ErrCampaignNotFound.Reason:         connect.CodeNotFound,
	ledger.ErrDonorNotFound.Reason:            connect.CodeNotFound,
	ledger.ErrConfigNotFound.Reason:           connect.CodeNotFound,
	ledger.ErrThresholdNotReached.Reason:      connect.CodeFailedPrecondition,
	ledger.ErrNoFundsToWithdraw.Reason:        connect.CodeFailedPrecondition,
	ledger.ErrAdminCannotBeSame.Reason:        connect.CodeFailedPrecondition,
	ledger.ErrOverflow.Reason:                 connect.CodeFailedPrecondition,
	ledger.ErrConflict.Reason:                 connect.CodeAborted,
}

var tokenErrors = []struct {
	err    error
	code   connect.Code
	reason string
}{
	{token.ErrMintNotFound, connect.CodeNotFound, "MintNotFound"},
	{token.ErrAccountNotFound, connect.CodeNotFound, "AccountNotFound"},
	{token.ErrMintMismatch, connect.CodeInvalidArgument, ledger.ErrInvalidMint.Reason},
	{token.ErrOwnerMismatch, connect.CodePermissionDenied, "OwnerMismatch"},
	{token.ErrInsufficientFunds, connect.CodeFailedPrecondition, "InsufficientFunds"},
	{token.ErrOverflow, connect.CodeFailedPrecondition, ledger.ErrOverflow.Reason},
	{token.ErrCustodialAccount, connect.CodeFailedPrecondition, "CustodialAccount"},
	{token.ErrNotMintAuthority, connect.CodePermissionDenied, "NotMintAuthority"},
	{token.ErrAccountConflict, connect.CodeAlreadyExists, "AccountConflict"},
	{token.ErrDerivedOwner, connect.CodeInvalidArgument, "DerivedOwner"},
	{token.ErrZeroAmount, connect.CodeInvalidArgument, ledger.ErrAmountNotPositive.Reason},
	{custody.ErrSeedTooLong, connect.CodeInvalidArgument, "SeedTooLong"},
}

// toConnectError maps a domain failure to a connect error carrying its
// reason in the Crowdfund-Error-Reason header. Unknown errors are logged and
// reported as Internal without detail.
func toConnectError(log zerolog.Logger, op string, err error) error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		code, ok := ledgerCodes[lerr.Reason]
		if !ok {
			code = connect.CodeInternal
		}
		return withReason(connect.NewError(code, lerr), lerr.Reason)
	}

	for _, te := range tokenErrors {
		if errors.Is(err, te.err) {
			return withReason(connect.NewError(te.code, err), te.reason)
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	log.Error().Err(err).Str("op", op).Msg("operation failed")
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

func withReason(err *connect.Error, reason string) *connect.Error {
	err.Meta().Set(rpc.ErrorReasonHeader, reason)
	return err
}

