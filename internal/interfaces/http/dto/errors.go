package dto

import "net/http"

// Transport-level error codes. Domain errors keep the code of the
// shared.DomainError that produced them.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid    = "INVALID_TOKEN"
	ErrCodeTokenRevoked    = "TOKEN_REVOKED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeUnauthenticated: http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeTokenRevoked:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRouteNotFound:   http.StatusNotFound,

	// Malformed configuration or input -> 400
	"INVALID_INPUT":      http.StatusBadRequest,
	"INVALID_IDENTITY":   http.StatusBadRequest,
	"INVALID_TIME_RANGE": http.StatusBadRequest,
	"INVALID_ALLOCATION": http.StatusBadRequest,
	"INVALID_DURATION":   http.StatusBadRequest,
	"INVALID_CLIFF":      http.StatusBadRequest,

	// Caller is authenticated but not permitted -> 403
	"UNAUTHORIZED":       http.StatusForbidden,
	"INVALID_VOUCHER":    http.StatusForbidden,
	"VOUCHER_EXPIRED":    http.StatusForbidden,
	"EXCEEDS_ALLOCATION": http.StatusForbidden,

	"NOT_FOUND": http.StatusNotFound,

	// Record already exists or changed underneath -> 409
	"SALE_ALREADY_EXISTS":    http.StatusConflict,
	"VESTING_ALREADY_EXISTS": http.StatusConflict,
	"VOUCHER_ALREADY_USED":   http.StatusConflict,
	"CONCURRENCY_CONFLICT":   http.StatusConflict,
	"DUPLICATE_REQUEST":      http.StatusConflict,

	// Valid request the current state cannot satisfy -> 422
	"SALE_NOT_STARTED":     http.StatusUnprocessableEntity,
	"SALE_ENDED":           http.StatusUnprocessableEntity,
	"INSUFFICIENT_SUPPLY":  http.StatusUnprocessableEntity,
	"INSUFFICIENT_FUNDS":   http.StatusUnprocessableEntity,
	"VESTING_REVOKED":      http.StatusUnprocessableEntity,
	"NOT_REVOCABLE":        http.StatusUnprocessableEntity,
	"ALREADY_REVOKED":      http.StatusUnprocessableEntity,
	"NOTHING_TO_CLAIM":     http.StatusUnprocessableEntity,
	"ARITHMETIC_OVERFLOW":  http.StatusUnprocessableEntity,
	"ARITHMETIC_UNDERFLOW": http.StatusUnprocessableEntity,
	"DIVISION_BY_ZERO":     http.StatusUnprocessableEntity,
	"INVALID_STATUS":       http.StatusUnprocessableEntity,

	"ISSUER_KEY_NOT_AVAILABLE": http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are server errors.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
