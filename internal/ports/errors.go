package ports

import "errors"

// Standard application-level errors.
// Adapters and core components wrap underlying errors with these so callers
// can branch with errors.Is without knowing the implementation.
var (
	// General Errors
	ErrUnknown         = errors.New("unknown error occurred")
	ErrInvalidInput    = errors.New("invalid input parameters or format")
	ErrNotFound        = errors.New("resource not found")
	ErrContextCanceled = errors.New("operation canceled via context")
	ErrConfiguration   = errors.New("invalid or missing configuration")

	// Statistical Errors
	// ErrInsufficientData: fewer observations than a method requires.
	// ErrEstimationFailed: numerical failure in regression or the eigen
	// step. Both mean "unable to evaluate this pair this cycle", never
	// "not cointegrated".
	ErrInsufficientData = errors.New("insufficient observations for statistical method")
	ErrEstimationFailed = errors.New("numerical estimation failed")

	// Exchange Specific Errors
	ErrExchangeUnavailable = errors.New("exchange API is unavailable")
	ErrConnectionFailed    = errors.New("failed to connect to the exchange")
	ErrRateLimited         = errors.New("API rate limit exceeded")
	ErrSymbolNotFound      = errors.New("symbol not found on the exchange")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
