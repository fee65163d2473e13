package repository

import (
	"tikbook/internal/models"

	"gorm.io/gorm"
)

type BadgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

func (r *BadgeRepository) Create(b *models.Badge) error {
	return r.db.Create(b).Error
}

func (r *BadgeRepository) GetByID(id uint) (*models.Badge, error) {
	var b models.Badge
	err := r.db.First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BadgeRepository) ListActive() ([]models.Badge, error) {
	var list []models.Badge
	err := r.db.Where("is_active = ?", true).Order("price_coins ASC").Find(&list).Error
	return list, err
}

// IsOwned reports whether the user already owns the badge.
func (r *BadgeRepository) IsOwned(userID, badgeID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).Count(&count).Error
	return count > 0, err
}

// GrantOwnership records that the user owns the badge. The unique
// (user_id, badge_id) index rejects double grants under races.
func (r *BadgeRepository) GrantOwnership(userID, badgeID uint) error {
	return r.db.Create(&models.UserBadge{UserID: userID, BadgeID: badgeID}).Error
}

func (r *BadgeRepository) ListOwned(userID uint) ([]models.UserBadge, error) {
	var list []models.UserBadge
	err := r.db.Preload("Badge").Where("user_id = ?", userID).
		Order("created_at DESC").Find(&list).Error
	return list, err
}
