package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so wrapped copies of a
// sentinel still match with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Configuration errors
var (
	ErrInvalidTimeRange  = NewDomainError("INVALID_TIME_RANGE", "Invalid time range: start must be before end")
	ErrInvalidAllocation = NewDomainError("INVALID_ALLOCATION", "Invalid allocation: must be greater than zero")
	ErrInvalidDuration   = NewDomainError("INVALID_DURATION", "Invalid duration: must be greater than zero")
	ErrInvalidCliff      = NewDomainError("INVALID_CLIFF", "Invalid cliff: cliff must not exceed duration")
)

// Authorization errors
var (
	ErrUnauthorized       = NewDomainError("UNAUTHORIZED", "Unauthorized: caller is not permitted")
	ErrInvalidVoucher     = NewDomainError("INVALID_VOUCHER", "Invalid voucher signature or data")
	ErrVoucherExpired     = NewDomainError("VOUCHER_EXPIRED", "Voucher has expired")
	ErrVoucherAlreadyUsed = NewDomainError("VOUCHER_ALREADY_USED", "Voucher has already been used")
	ErrExceedsAllocation  = NewDomainError("EXCEEDS_ALLOCATION", "Requested allocation exceeds voucher maximum")
)

// Window and supply errors
var (
	ErrSaleNotStarted     = NewDomainError("SALE_NOT_STARTED", "Sale has not started yet")
	ErrSaleEnded          = NewDomainError("SALE_ENDED", "Sale has ended")
	ErrInsufficientSupply = NewDomainError("INSUFFICIENT_SUPPLY", "Insufficient token supply remaining")
)

// Arithmetic errors. They always reject the operation; results are never truncated.
var (
	ErrOverflow       = NewDomainError("ARITHMETIC_OVERFLOW", "Arithmetic overflow")
	ErrUnderflow      = NewDomainError("ARITHMETIC_UNDERFLOW", "Arithmetic underflow")
	ErrDivisionByZero = NewDomainError("DIVISION_BY_ZERO", "Division by zero")
)

// Vesting errors
var (
	ErrVestingRevoked = NewDomainError("VESTING_REVOKED", "Vesting schedule has been revoked")
	ErrNotRevocable   = NewDomainError("NOT_REVOCABLE", "Vesting schedule is not revocable")
	ErrAlreadyRevoked = NewDomainError("ALREADY_REVOKED", "Vesting schedule already revoked")
	ErrNothingToClaim = NewDomainError("NOTHING_TO_CLAIM", "Nothing to claim")
)

// Common domain errors
var (
	ErrNotFound              = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput          = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidIdentity       = NewDomainError("INVALID_IDENTITY", "Invalid identity: expected a base58 encoded 32-byte key")
	ErrSaleAlreadyExists     = NewDomainError("SALE_ALREADY_EXISTS", "A sale already exists for this owner")
	ErrVestingAlreadyExists  = NewDomainError("VESTING_ALREADY_EXISTS", "A vesting schedule already exists for this beneficiary")
	ErrInsufficientFunds     = NewDomainError("INSUFFICIENT_FUNDS", "Insufficient funds for transfer")
	ErrDuplicateRequest      = NewDomainError("DUPLICATE_REQUEST", "Request with this idempotency key was already processed")
	ErrConcurrencyConflict   = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrIssuerKeyNotAvailable = NewDomainError("ISSUER_KEY_NOT_AVAILABLE", "Voucher issuer key is not configured")
)
