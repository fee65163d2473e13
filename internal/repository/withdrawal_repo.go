package repository

import (
	"tikbook/internal/models"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create inserts the payout order inside the given scope so the order and
// its ledger debit commit together.
func (r *WithdrawalRepository) Create(tx *gorm.DB, w *models.Withdrawal) error {
	return tx.Create(w).Error
}

func (r *WithdrawalRepository) GetByOrderID(orderID string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.Where("order_id = ?", orderID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) Update(w *models.Withdrawal) error {
	return r.db.Save(w).Error
}

func (r *WithdrawalRepository) ListByUserID(userID uint, limit int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
