package services

import "errors"

var (
	// ErrPriceUnavailable is returned when every price source and market
	// suffix has been exhausted for a ticker.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrJoinDenied is returned when a shared ledger requires a password and
	// the supplied one does not match. No membership mutation has happened.
	ErrJoinDenied = errors.New("join denied: invalid ledger password")

	// ErrJoinIncomplete is returned when the joining user's membership list
	// was updated but the ledger's user list was not. The two writes are
	// separate single-document updates, so a failure in between leaves the
	// join half-applied.
	ErrJoinIncomplete = errors.New("join incomplete: user list not updated")

	// ErrInsufficientShares is returned when a sell would drive a stock
	// position's quantity negative.
	ErrInsufficientShares = errors.New("insufficient shares for sale")
)

// PriceService looks up the current market price for a ticker. Implementations
// are unreliable external dependencies: callers must tolerate
// ErrPriceUnavailable and never treat it as fatal.
type PriceService interface {
	Lookup(ticker string) (float64, error)
}

// EmailService sends shared-ledger invite emails.
type EmailService interface {
	SendLedgerInvite(toEmail, username, ledgerName, inviteCode string) error
}
