package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet holds the two coin pools per user. Balance is spendable, Earnings
// accrues received gifts (creator income) and is only debited by withdrawals.
// Both pools must stay non-negative; every mutation goes through the ledger
// service, never direct field writes.
type Wallet struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   int64          `gorm:"not null;default:0" json:"balance"`
	Earnings  int64          `gorm:"not null;default:0" json:"earnings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
