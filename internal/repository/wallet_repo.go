package repository

import (
	"errors"

	"tikbook/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByUserID returns the wallet or gorm.ErrRecordNotFound. Read-only
// callers surface the miss; write paths use GetOrCreate instead.
func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreate lazily creates a zero wallet on first access.
func (r *WalletRepository) GetOrCreate(userID uint) (*models.Wallet, error) {
	return getOrCreateWallet(r.db, userID)
}

// LockForUpdate loads the wallet row under FOR UPDATE inside tx, creating it
// first if absent. Every balance mutation reads through this so concurrent
// debits of the same wallet serialize instead of racing read-modify-write.
func (r *WalletRepository) LockForUpdate(tx *gorm.DB, userID uint) (*models.Wallet, error) {
	if _, err := getOrCreateWallet(tx, userID); err != nil {
		return nil, err
	}
	var w models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// SavePools writes both coin pools of a locked wallet row.
func (r *WalletRepository) SavePools(tx *gorm.DB, w *models.Wallet) error {
	return tx.Model(w).Updates(map[string]interface{}{
		"balance":  w.Balance,
		"earnings": w.Earnings,
	}).Error
}

func getOrCreateWallet(db *gorm.DB, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := db.Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = models.Wallet{UserID: userID}
	if err := db.Create(&w).Error; err != nil {
		// Lost a create race with a concurrent request; the row exists now.
		var existing models.Wallet
		if lookupErr := db.Where("user_id = ?", userID).First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &w, nil
}
