package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Transaction types. Positive amounts are credits, negative are debits.
const (
	TxPurchase     = "PURCHASE"      // store top-up credit or badge debit
	TxGiftSent     = "GIFT_SENT"     // debit on the sender of a gift
	TxGiftReceived = "GIFT_RECEIVED" // credit on the receiver of a gift
	TxAdminGrant   = "ADMIN_GRANT"   // admin-issued credit, no counterparty
	TxWithdrawal   = "WITHDRAWAL"    // earnings debit against a payout order
	TxRefund       = "REFUND"        // compensating entry for a refunded transaction
)

const (
	TxStatusPending   = "PENDING"
	TxStatusCompleted = "COMPLETED"
	TxStatusFailed    = "FAILED"
	TxStatusRefunded  = "REFUNDED"
)

const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusFailed    = "FAILED"
)

const (
	NotifGiftReceived = "GIFT_RECEIVED"
	NotifCoinsGranted = "COINS_GRANTED"
	NotifBadgeGifted  = "BADGE_GIFTED"
	NotifRefundIssued = "REFUND_ISSUED"
	NotifTopUpDone    = "TOPUP_CONFIRMED"
)
