package types

import "errors"

// Sentinel errors shared across services. pkg/response maps them onto
// HTTP status codes; wrap them with fmt.Errorf("%w: ...") to add detail.
var (
	ErrInstrumentNotFound  = errors.New("instrument not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInstrumentExists    = errors.New("instrument already listed")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	ErrStoreConflict       = errors.New("storage conflict persisted after retries")
)
