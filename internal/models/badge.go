package models

import (
	"time"

	"gorm.io/gorm"
)

// Badge is a cosmetic catalog item. Exclusive badges cannot be bought with
// coins; admins gift them directly.
type Badge struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Icon        string         `gorm:"size:512" json:"icon"`
	Description string         `gorm:"size:255" json:"description"`
	PriceCoins  int64          `gorm:"not null;default:0" json:"price_coins"`
	IsExclusive bool           `gorm:"default:false" json:"is_exclusive"`
	IsActive    bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Badge) TableName() string {
	return "badges"
}

type UserBadge struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index:idx_user_badge,unique" json:"user_id"`
	BadgeID   uint           `gorm:"not null;index:idx_user_badge,unique" json:"badge_id"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User  User  `gorm:"foreignKey:UserID" json:"-"`
	Badge Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}
