package ledger

// Error is a typed rejection. Every rejected operation leaves all records,
// balances, and events exactly as they were.
type Error struct {
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(reason, message string) *Error {
	return &Error{Reason: reason, Message: message}
}

// Validation
var (
	ErrNameEmpty          = newError("NameEmpty", "campaign name cannot be empty")
	ErrNameTooLong        = newError("NameTooLong", "campaign name is too long")
	ErrDescriptionEmpty   = newError("DescriptionEmpty", "campaign description cannot be empty")
	ErrDescriptionTooLong = newError("DescriptionTooLong", "campaign description is too long")
	ErrTargetNotPositive  = newError("TargetNotPositive", "target amount must be greater than zero")
	ErrAmountNotPositive  = newError("AmountNotPositive", "donation amount must be greater than zero")
	ErrInvalidAdmin       = newError("InvalidAdmin", "new admin must be a non-zero identity")
)

// Authorization
var (
	ErrUnauthorized      = newError("Unauthorized", "signer is not the campaign creator")
	ErrUnauthorizedAdmin = newError("UnauthorizedAdmin", "signer is not the global admin")
	ErrInvalidMint       = newError("InvalidMint", "invalid mint provided")
	ErrInvalidEscrow     = newError("InvalidEscrow", "escrow account is not bound to this campaign")
)

// State
var (
	ErrAlreadyExists            = newError("AlreadyExists", "campaign already exists")
	ErrCampaignNotFound         = newError("CampaignNotFound", "campaign not found")
	ErrDonorNotFound            = newError("DonorNotFound", "donor record not found")
	ErrConfigNotFound           = newError("ConfigNotFound", "global config is not initialized")
	ErrConfigAlreadyInitialized = newError("ConfigAlreadyInitialized", "global config is already initialized")
	ErrThresholdNotReached      = newError("ThresholdNotReached", "campaign threshold has not been reached yet")
	ErrNoFundsToWithdraw        = newError("NoFundsToWithdraw", "no funds available to withdraw")
	ErrAdminCannotBeSame        = newError("AdminCannotBeSame", "new admin cannot be the same as the current admin")
	ErrConflict                 = newError("Conflict", "record was modified concurrently")
)

// Arithmetic
var (
	ErrOverflow = newError("Overflow", "arithmetic overflow occurred")
)
