package models

import (
	"time"

	"gorm.io/gorm"
)

// Transaction is one immutable ledger entry: a signed coin delta and its
// cause. Entries are append-only; a completed entry is never edited except
// for the one-way COMPLETED -> REFUNDED transition, which is always paired
// with a new compensating REFUND entry.
type Transaction struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	UserID        uint   `gorm:"not null;index;index:idx_tx_user_created,priority:1" json:"user_id"`
	Type          string `gorm:"size:30;not null;index" json:"type"`
	Amount        int64  `gorm:"not null" json:"amount"` // positive = credit, negative = debit
	RelatedUserID *uint  `gorm:"index" json:"related_user_id"`
	// PlatformTxID reconciles store top-ups; nil for everything else
	// (pointer so the unique index ignores rows without one).
	PlatformTxID *string        `gorm:"size:128;uniqueIndex" json:"platform_tx_id"`
	Description  string         `gorm:"size:255" json:"description"`
	Status       string         `gorm:"size:20;not null;index" json:"status"`
	CreatedAt    time.Time      `gorm:"index:idx_tx_user_created,priority:2" json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	User        User  `gorm:"foreignKey:UserID" json:"-"`
	RelatedUser *User `gorm:"foreignKey:RelatedUserID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
