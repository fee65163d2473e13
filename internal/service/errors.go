package service

import "errors"

// Ledger rejection taxonomy. Handlers map these to HTTP statuses and a
// stable machine-readable kind; nothing in the ledger surfaces a generic
// failure for a business-rule rejection.
var (
	ErrInvalidAmount        = errors.New("amount must be a positive integer")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrAlreadyOwned         = errors.New("badge already owned")
	ErrNotPurchasable       = errors.New("badge is not purchasable")
	ErrNotRefundable        = errors.New("transaction is not refundable")
	ErrDuplicateTransaction = errors.New("platform transaction already applied")

	// ErrTransientConflict wraps storage-level conflicts (deadlocks, lock
	// waits) that survived the retry budget. Distinct from business
	// rejections: the caller may retry the whole request.
	ErrTransientConflict = errors.New("transient storage conflict")
)

// ErrorKind returns the stable machine-readable code for a ledger error, or
// "" when the error is not part of the taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInvalidOperation):
		return "INVALID_OPERATION"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrWalletNotFound):
		return "WALLET_NOT_FOUND"
	case errors.Is(err, ErrAlreadyOwned):
		return "ALREADY_OWNED"
	case errors.Is(err, ErrNotPurchasable):
		return "NOT_PURCHASABLE"
	case errors.Is(err, ErrNotRefundable):
		return "NOT_REFUNDABLE"
	case errors.Is(err, ErrDuplicateTransaction):
		return "DUPLICATE_TRANSACTION"
	case errors.Is(err, ErrTransientConflict):
		return "TRANSIENT_CONFLICT"
	}
	return ""
}

// IsClientError reports whether the error is a validation or business-rule
// rejection rather than an infrastructure failure.
func IsClientError(err error) bool {
	kind := ErrorKind(err)
	return kind != "" && kind != "TRANSIENT_CONFLICT"
}
