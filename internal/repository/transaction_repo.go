package repository

import (
	"tikbook/internal/domain"
	"tikbook/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts a ledger entry inside the given transaction scope. Entries
// are never updated afterwards except the COMPLETED -> REFUNDED transition.
func (r *TransactionRepository) Append(tx *gorm.DB, t *models.Transaction) error {
	return tx.Create(t).Error
}

func (r *TransactionRepository) GetByID(id uint) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByPlatformTxID looks up a top-up by its external platform transaction
// id, for idempotent reconciliation.
func (r *TransactionRepository) GetByPlatformTxID(tx *gorm.DB, platformTxID string) (*models.Transaction, error) {
	var t models.Transaction
	err := tx.Where("platform_tx_id = ?", platformTxID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkRefunded flips a completed entry to REFUNDED inside the given scope.
func (r *TransactionRepository) MarkRefunded(tx *gorm.DB, id uint) error {
	return tx.Model(&models.Transaction{}).Where("id = ?", id).
		Update("status", domain.TxStatusRefunded).Error
}

// ListByUserID returns the user's ledger entries, newest first.
func (r *TransactionRepository) ListByUserID(userID uint, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
