package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tikbook/config"
	"tikbook/internal/domain"
	"tikbook/internal/models"
	"tikbook/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationSink receives human-readable events after a ledger mutation
// commits. Implementations are fire-and-forget: a sink failure must never
// roll back or fail the mutation it describes.
type NotificationSink interface {
	GiftReceived(userID, fromUserID uint, amount int64)
	CoinsGranted(userID uint, amount int64, reason string)
	TopUpConfirmed(userID uint, amount int64, platformTxID string)
	RefundIssued(userID uint, amount int64, transactionID uint)
	BadgeGifted(userID uint, badgeName string)
}

// LedgerService owns the coin wallets and the append-only transaction log.
// All balance mutations run inside a single storage transaction with the
// wallet rows locked FOR UPDATE, so concurrent debits of the same wallet
// serialize and no partial debit/credit is ever observable.
type LedgerService struct {
	db           *gorm.DB
	wallets      *repository.WalletRepository
	transactions *repository.TransactionRepository
	badges       *repository.BadgeRepository
	withdrawals  *repository.WithdrawalRepository
	notifier     NotificationSink
	cfg          config.LedgerConfig
}

func NewLedgerService(
	db *gorm.DB,
	wallets *repository.WalletRepository,
	transactions *repository.TransactionRepository,
	badges *repository.BadgeRepository,
	withdrawals *repository.WithdrawalRepository,
	notifier NotificationSink,
	cfg config.LedgerConfig,
) *LedgerService {
	return &LedgerService{
		db:           db,
		wallets:      wallets,
		transactions: transactions,
		badges:       badges,
		withdrawals:  withdrawals,
		notifier:     notifier,
		cfg:          cfg,
	}
}

// GetBalance returns the user's wallet, creating a zero wallet on first
// access.
func (s *LedgerService) GetBalance(userID uint) (*models.Wallet, error) {
	return s.wallets.GetOrCreate(userID)
}

// InspectWallet is the read-only admin lookup: unlike GetBalance it does not
// auto-vivify, so a user who never transacted surfaces ErrWalletNotFound.
func (s *LedgerService) InspectWallet(userID uint) (*models.Wallet, error) {
	w, err := s.wallets.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	return w, err
}

// Transfer moves amount coins from the sender's balance to the receiver's
// earnings (received gifts are creator income, not spend-ready coins) and
// appends the two cross-referencing ledger entries, all in one atomic scope.
// Returns the sender's new balance.
func (s *LedgerService) Transfer(senderID, receiverID uint, amount int64, memo string) (int64, error) {
	if senderID == receiverID {
		return 0, fmt.Errorf("%w: cannot gift yourself", ErrInvalidOperation)
	}
	if amount <= 0 || (s.cfg.MaxGiftAmount > 0 && amount > s.cfg.MaxGiftAmount) {
		return 0, ErrInvalidAmount
	}

	var newBalance int64
	err := s.withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			newBalance, err = s.applyGift(tx, senderID, receiverID, amount, memo)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		s.notifier.GiftReceived(receiverID, senderID, amount)
	}
	return newBalance, nil
}

// applyGift performs the transfer inside an open transaction scope. Split
// out so failure injection can wrap it and abort the scope after the debit.
func (s *LedgerService) applyGift(tx *gorm.DB, senderID, receiverID uint, amount int64, memo string) (int64, error) {
	sender, err := s.wallets.LockForUpdate(tx, senderID)
	if err != nil {
		return 0, err
	}
	if sender.Balance < amount {
		return 0, ErrInsufficientFunds
	}
	sender.Balance -= amount
	if err := s.wallets.SavePools(tx, sender); err != nil {
		return 0, err
	}

	receiver, err := s.wallets.LockForUpdate(tx, receiverID)
	if err != nil {
		return 0, err
	}
	receiver.Earnings += amount
	if err := s.wallets.SavePools(tx, receiver); err != nil {
		return 0, err
	}

	desc := memo
	if desc == "" {
		desc = "coin gift"
	}
	sent := &models.Transaction{
		UserID:        senderID,
		Type:          domain.TxGiftSent,
		Amount:        -amount,
		RelatedUserID: &receiverID,
		Description:   desc,
		Status:        domain.TxStatusCompleted,
	}
	received := &models.Transaction{
		UserID:        receiverID,
		Type:          domain.TxGiftReceived,
		Amount:        amount,
		RelatedUserID: &senderID,
		Description:   desc,
		Status:        domain.TxStatusCompleted,
	}
	if err := s.transactions.Append(tx, sent); err != nil {
		return 0, err
	}
	if err := s.transactions.Append(tx, received); err != nil {
		return 0, err
	}
	return sender.Balance, nil
}

// Grant credits a wallet with admin-issued coins. Grants manufacture coins,
// so there is no debit counterpart and no conservation check.
func (s *LedgerService) Grant(adminID, userID uint, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var newBalance int64
	err := s.withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			w, err := s.wallets.LockForUpdate(tx, userID)
			if err != nil {
				return err
			}
			w.Balance += amount
			if err := s.wallets.SavePools(tx, w); err != nil {
				return err
			}
			desc := reason
			if desc == "" {
				desc = "admin grant"
			}
			entry := &models.Transaction{
				UserID:        userID,
				Type:          domain.TxAdminGrant,
				Amount:        amount,
				RelatedUserID: &adminID,
				Description:   desc,
				Status:        domain.TxStatusCompleted,
			}
			if err := s.transactions.Append(tx, entry); err != nil {
				return err
			}
			newBalance = w.Balance
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		s.notifier.CoinsGranted(userID, amount, reason)
	}
	return newBalance, nil
}

// TopUp settles an external store purchase. Idempotent on platformTxID: a
// replayed settlement is rejected with ErrDuplicateTransaction, backed by
// both an in-scope pre-check and the unique index on platform_tx_id.
func (s *LedgerService) TopUp(userID uint, amount int64, platformTxID string) (*models.Wallet, error) {
	if amount <= 0 || (s.cfg.MaxTopUpAmount > 0 && amount > s.cfg.MaxTopUpAmount) {
		return nil, ErrInvalidAmount
	}
	if platformTxID == "" {
		return nil, fmt.Errorf("%w: missing platform transaction id", ErrInvalidOperation)
	}

	var snapshot *models.Wallet
	err := s.withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if _, err := s.transactions.GetByPlatformTxID(tx, platformTxID); err == nil {
				return ErrDuplicateTransaction
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			w, err := s.wallets.LockForUpdate(tx, userID)
			if err != nil {
				return err
			}
			w.Balance += amount
			if err := s.wallets.SavePools(tx, w); err != nil {
				return err
			}
			ref := platformTxID
			entry := &models.Transaction{
				UserID:       userID,
				Type:         domain.TxPurchase,
				Amount:       amount,
				PlatformTxID: &ref,
				Description:  "coin top-up",
				Status:       domain.TxStatusCompleted,
			}
			if err := s.transactions.Append(tx, entry); err != nil {
				if isDuplicateKey(err) {
					return ErrDuplicateTransaction
				}
				return err
			}
			snapshot = w
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.TopUpConfirmed(userID, amount, platformTxID)
	}
	return snapshot, nil
}

// Purchase spends balance on a catalog badge. The debit commits first, then
// ownership is recorded; if recording fails the debit is compensated with a
// refund so the user is never left charged without the badge.
func (s *LedgerService) Purchase(userID, badgeID uint) (int64, *models.Transaction, error) {
	badge, err := s.badges.GetByID(badgeID)
	if err != nil {
		return 0, nil, err
	}
	if badge.IsExclusive || !badge.IsActive {
		return 0, nil, ErrNotPurchasable
	}
	owned, err := s.badges.IsOwned(userID, badgeID)
	if err != nil {
		return 0, nil, err
	}
	if owned {
		return 0, nil, ErrAlreadyOwned
	}

	var (
		remaining int64
		entry     *models.Transaction
	)
	err = s.withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			w, err := s.wallets.LockForUpdate(tx, userID)
			if err != nil {
				return err
			}
			if w.Balance < badge.PriceCoins {
				return ErrInsufficientFunds
			}
			w.Balance -= badge.PriceCoins
			if err := s.wallets.SavePools(tx, w); err != nil {
				return err
			}
			entry = &models.Transaction{
				UserID:      userID,
				Type:        domain.TxPurchase,
				Amount:      -badge.PriceCoins,
				Description: "badge: " + badge.Name,
				Status:      domain.TxStatusCompleted,
			}
			if err := s.transactions.Append(tx, entry); err != nil {
				return err
			}
			remaining = w.Balance
			return nil
		})
	})
	if err != nil {
		return 0, nil, err
	}

	// Ownership lives in a different aggregate; compensate the debit when
	// recording fails rather than leaving the user charged.
	if err := s.badges.GrantOwnership(userID, badgeID); err != nil {
		if isDuplicateKey(err) {
			err = ErrAlreadyOwned
		}
		if _, compErr := s.Refund(entry.ID); compErr != nil {
			log.Printf("[LEDGER] FATAL inconsistency: user %d charged %d for badge %d, ownership failed (%v) and compensation failed (%v); manual reconciliation required",
				userID, badge.PriceCoins, badgeID, err, compErr)
		}
		return 0, nil, err
	}
	return remaining, entry, nil
}

// Refund reverses a completed transaction: the original flips to REFUNDED
// (one-way) and a new compensating entry applies the opposite delta to the
// wallet balance, rejected if it would drive the balance negative.
func (s *LedgerService) Refund(transactionID uint) (*models.Transaction, error) {
	var updated *models.Transaction
	err := s.withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var original models.Transaction
			if err := tx.First(&original, transactionID).Error; err != nil {
				return err
			}
			if original.Status != domain.TxStatusCompleted || original.Type == domain.TxRefund {
				return ErrNotRefundable
			}
			w, err := s.wallets.LockForUpdate(tx, original.UserID)
			if err != nil {
				return err
			}
			delta := -original.Amount
			if w.Balance+delta < 0 {
				// The user already spent the refunded coins elsewhere.
				return ErrInsufficientFunds
			}
			w.Balance += delta
			if err := s.wallets.SavePools(tx, w); err != nil {
				return err
			}
			if err := s.transactions.MarkRefunded(tx, original.ID); err != nil {
				return err
			}
			compensating := &models.Transaction{
				UserID:        original.UserID,
				Type:          domain.TxRefund,
				Amount:        delta,
				RelatedUserID: original.RelatedUserID,
				Description:   fmt.Sprintf("refund of tx %d", original.ID),
				Status:        domain.TxStatusCompleted,
			}
			if err := s.transactions.Append(tx, compensating); err != nil {
				return err
			}
			original.Status = domain.TxStatusRefunded
			updated = &original
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.RefundIssued(updated.UserID, -updated.Amount, updated.ID)
	}
	return updated, nil
}

// Withdraw debits the earnings pool and opens a payout order. The external
// payout leg reconciles against the returned order id.
func (s *LedgerService) Withdraw(userID uint, amount int64) (*models.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	order := &models.Withdrawal{
		UserID:  userID,
		OrderID: "wd-" + uuid.New().String(),
		Amount:  amount,
		Status:  domain.WithdrawalStatusPending,
	}
	err := s.withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			w, err := s.wallets.LockForUpdate(tx, userID)
			if err != nil {
				return err
			}
			if w.Earnings < amount {
				return ErrInsufficientFunds
			}
			w.Earnings -= amount
			if err := s.wallets.SavePools(tx, w); err != nil {
				return err
			}
			entry := &models.Transaction{
				UserID:      userID,
				Type:        domain.TxWithdrawal,
				Amount:      -amount,
				Description: "withdrawal " + order.OrderID,
				Status:      domain.TxStatusCompleted,
			}
			if err := s.transactions.Append(tx, entry); err != nil {
				return err
			}
			return s.withdrawals.Create(tx, order)
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GiftBadge grants ownership of an exclusive badge without a balance debit.
// Admin only; the purchasable path for everything else is Purchase.
func (s *LedgerService) GiftBadge(userID, badgeID uint) error {
	badge, err := s.badges.GetByID(badgeID)
	if err != nil {
		return err
	}
	owned, err := s.badges.IsOwned(userID, badgeID)
	if err != nil {
		return err
	}
	if owned {
		return ErrAlreadyOwned
	}
	if err := s.badges.GrantOwnership(userID, badgeID); err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyOwned
		}
		return err
	}
	if s.notifier != nil {
		s.notifier.BadgeGifted(userID, badge.Name)
	}
	return nil
}

// ListTransactions returns the user's ledger entries, newest first.
func (s *LedgerService) ListTransactions(userID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > s.cfg.HistoryPageSize {
		limit = s.cfg.HistoryPageSize
	}
	return s.transactions.ListByUserID(userID, limit, offset)
}

// withRetry re-runs op when the storage layer reports a serialization
// conflict. These are expected under contention (two gifts locking the same
// wallets in opposite order), not logic errors.
func (s *LedgerService) withRetry(op func() error) error {
	attempts := s.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || !isRetryable(err) {
			return err
		}
		time.Sleep(s.cfg.RetryBackoff * time.Duration(i+1))
	}
	return fmt.Errorf("%w: %v", ErrTransientConflict, err)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Deadlock found") || // MySQL 1213
		strings.Contains(msg, "Lock wait timeout") || // MySQL 1205
		strings.Contains(msg, "database is locked") || // SQLite busy
		strings.Contains(msg, "database table is locked")
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || // MySQL 1062
		strings.Contains(msg, "UNIQUE constraint failed") // SQLite
}
