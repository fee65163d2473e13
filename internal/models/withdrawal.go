package models

import (
	"time"

	"gorm.io/gorm"
)

// Withdrawal is a payout order created when earnings are withdrawn. The
// ledger debit happens when the order is created; the external payout leg
// reconciles against OrderID.
type Withdrawal struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	OrderID     string         `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	Amount      int64          `gorm:"not null" json:"amount"`
	Status      string         `gorm:"size:20;not null;index" json:"status"` // PENDING, COMPLETED, FAILED
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
