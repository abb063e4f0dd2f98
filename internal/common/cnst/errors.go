package cnst

import "errors"

var (
	// ErrMissingAccounts is returned when a batch request carries no accounts.
	ErrMissingAccounts = errors.New("accounts are missing")
	// ErrUnknownPlatform is returned for a platform outside the closed set.
	ErrUnknownPlatform = errors.New("unknown platform")
)

// ReasonMissingAccounts is the failure reason relayed to the requesting page.
const ReasonMissingAccounts = "message is missing"
