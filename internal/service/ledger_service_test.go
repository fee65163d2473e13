package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"tikbook/config"
	"tikbook/internal/domain"
	"tikbook/internal/models"
	"tikbook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every goroutine on the same in-memory
	// database and serializes transaction scopes deterministically.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Withdrawal{},
		&models.Notification{},
	))
	return db
}

func newTestLedger(t *testing.T) (*LedgerService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := config.LedgerConfig{
		RetryAttempts:   3,
		RetryBackoff:    0,
		MaxGiftAmount:   1_000_000,
		MaxTopUpAmount:  1_000_000,
		HistoryPageSize: 50,
	}
	notifier := NewNotificationService(repository.NewNotificationRepository(db))
	svc := NewLedgerService(
		db,
		repository.NewWalletRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewBadgeRepository(db),
		repository.NewWithdrawalRepository(db),
		notifier,
		cfg,
	)
	return svc, db
}

func newUser(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	u := &models.User{
		Username: name,
		Email:    name + "@tikbook.test",
		Role:     domain.RoleUser,
	}
	require.NoError(t, db.Create(u).Error)
	return u.ID
}

// seedWallet puts coins directly into the pools, bypassing the ledger, so
// tests can start from a known state.
func seedWallet(t *testing.T, db *gorm.DB, userID uint, balance, earnings int64) {
	t.Helper()
	w := &models.Wallet{UserID: userID, Balance: balance, Earnings: earnings}
	require.NoError(t, db.Create(w).Error)
}

func walletOf(t *testing.T, db *gorm.DB, userID uint) *models.Wallet {
	t.Helper()
	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&w).Error)
	return &w
}

func txCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&n).Error)
	return n
}

func newBadge(t *testing.T, db *gorm.DB, name string, price int64, exclusive bool) uint {
	t.Helper()
	b := &models.Badge{Name: name, PriceCoins: price, IsExclusive: exclusive, IsActive: true}
	require.NoError(t, db.Create(b).Error)
	return b.ID
}

// =============================================================================
// TRANSFER (GIFT)
// =============================================================================

func TestTransfer_SimpleGift(t *testing.T) {
	// GIVEN: sender balance 500, receiver earnings 0
	// WHEN: transfer(sender, receiver, 200, "tip")
	// THEN: sender balance 300, receiver earnings 200, two ledger entries

	svc, db := newTestLedger(t)
	sender := newUser(t, db, "sender")
	receiver := newUser(t, db, "receiver")
	seedWallet(t, db, sender, 500, 0)

	newBalance, err := svc.Transfer(sender, receiver, 200, "tip")
	require.NoError(t, err)
	assert.Equal(t, int64(300), newBalance)

	assert.Equal(t, int64(300), walletOf(t, db, sender).Balance)
	assert.Equal(t, int64(200), walletOf(t, db, receiver).Earnings)
	assert.Equal(t, int64(0), walletOf(t, db, receiver).Balance)

	var sent, received models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", sender, domain.TxGiftSent).First(&sent).Error)
	require.NoError(t, db.Where("user_id = ? AND type = ?", receiver, domain.TxGiftReceived).First(&received).Error)
	assert.Equal(t, int64(-200), sent.Amount)
	assert.Equal(t, int64(200), received.Amount)
	require.NotNil(t, sent.RelatedUserID)
	require.NotNil(t, received.RelatedUserID)
	assert.Equal(t, receiver, *sent.RelatedUserID)
	assert.Equal(t, sender, *received.RelatedUserID)
	assert.Equal(t, domain.TxStatusCompleted, sent.Status)
	assert.Equal(t, "tip", sent.Description)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	// GIVEN: sender balance 50
	// WHEN: transfer of 200
	// THEN: InsufficientFunds, balance unchanged, zero ledger entries

	svc, db := newTestLedger(t)
	sender := newUser(t, db, "sender")
	receiver := newUser(t, db, "receiver")
	seedWallet(t, db, sender, 50, 0)

	_, err := svc.Transfer(sender, receiver, 200, "tip")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, int64(50), walletOf(t, db, sender).Balance)
	assert.Equal(t, int64(0), txCount(t, db))
}

func TestTransfer_SelfGiftRejected(t *testing.T) {
	svc, db := newTestLedger(t)
	sender := newUser(t, db, "sender")
	seedWallet(t, db, sender, 500, 0)

	_, err := svc.Transfer(sender, sender, 100, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Equal(t, int64(0), txCount(t, db))
}

func TestTransfer_InvalidAmounts(t *testing.T) {
	svc, db := newTestLedger(t)
	sender := newUser(t, db, "sender")
	receiver := newUser(t, db, "receiver")
	seedWallet(t, db, sender, 500, 0)

	for _, amount := range []int64{0, -10} {
		_, err := svc.Transfer(sender, receiver, amount, "")
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}
	assert.Equal(t, int64(0), txCount(t, db))
}

func TestTransfer_AutoVivifiesReceiverWallet(t *testing.T) {
	// Writes auto-create missing wallets; the receiver never transacted.
	svc, db := newTestLedger(t)
	sender := newUser(t, db, "sender")
	receiver := newUser(t, db, "receiver")
	seedWallet(t, db, sender, 100, 0)

	_, err := svc.Transfer(sender, receiver, 40, "")
	require.NoError(t, err)
	assert.Equal(t, int64(40), walletOf(t, db, receiver).Earnings)
}

func TestTransfer_Conservation(t *testing.T) {
	// GIVEN: three wallets with only transfers interleaved
	// THEN: the sum of all balance+earnings pools is invariant

	svc, db := newTestLedger(t)
	a := newUser(t, db, "a")
	b := newUser(t, db, "b")
	c := newUser(t, db, "c")
	seedWallet(t, db, a, 1000, 0)
	seedWallet(t, db, b, 500, 0)
	seedWallet(t, db, c, 0, 0)

	total := func() int64 {
		var sum int64
		var wallets []models.Wallet
		require.NoError(t, db.Find(&wallets).Error)
		for _, w := range wallets {
			sum += w.Balance + w.Earnings
		}
		return sum
	}
	before := total()

	moves := []struct {
		from, to uint
		amount   int64
	}{
		{a, b, 300}, {a, c, 150}, {b, a, 200}, {b, c, 75}, {a, b, 25},
	}
	for _, m := range moves {
		_, err := svc.Transfer(m.from, m.to, m.amount, "")
		require.NoError(t, err)
		assert.Equal(t, before, total())
	}
}

func TestTransfer_AtomicityUnderInjectedCommitFailure(t *testing.T) {
	// GIVEN: the storage commit fails after the debit and credit applied
	// THEN: sender balance unchanged, no ledger entries from the attempt

	svc, db := newTestLedger(t)
	sender := newUser(t, db, "sender")
	receiver := newUser(t, db, "receiver")
	seedWallet(t, db, sender, 500, 0)

	errInjected := errors.New("injected commit failure")
	err := db.Transaction(func(tx *gorm.DB) error {
		newBalance, err := svc.applyGift(tx, sender, receiver, 200, "tip")
		require.NoError(t, err)
		require.Equal(t, int64(300), newBalance)
		return errInjected
	})
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(500), walletOf(t, db, sender).Balance)
	var receiverWallets int64
	require.NoError(t, db.Model(&models.Wallet{}).Where("user_id = ?", receiver).Count(&receiverWallets).Error)
	assert.Equal(t, int64(0), receiverWallets, "receiver wallet create must roll back")
	assert.Equal(t, int64(0), txCount(t, db))
}

func TestTransfer_ConcurrentDebitsSerialize(t *testing.T) {
	// GIVEN: a wallet with balance 100
	// WHEN: two concurrent transfers each debit 80
	// THEN: exactly one succeeds and one fails with InsufficientFunds

	svc, db := newTestLedger(t)
	sender := newUser(t, db, "sender")
	r1 := newUser(t, db, "r1")
	r2 := newUser(t, db, "r2")
	seedWallet(t, db, sender, 100, 0)

	receivers := []uint{r1, r2}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transfer(sender, receivers[i], 80, "")
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one transfer must win")
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, int64(20), walletOf(t, db, sender).Balance)
}

// =============================================================================
// GRANT / TOP-UP
// =============================================================================

func TestGrant_CreditsBalance(t *testing.T) {
	svc, db := newTestLedger(t)
	admin := newUser(t, db, "admin")
	user := newUser(t, db, "user")

	newBalance, err := svc.Grant(admin, user, 500, "welcome bonus")
	require.NoError(t, err)
	assert.Equal(t, int64(500), newBalance)

	var entry models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user, domain.TxAdminGrant).First(&entry).Error)
	assert.Equal(t, int64(500), entry.Amount)
	require.NotNil(t, entry.RelatedUserID)
	assert.Equal(t, admin, *entry.RelatedUserID)
}

func TestGrant_InvalidAmount(t *testing.T) {
	svc, db := newTestLedger(t)
	admin := newUser(t, db, "admin")
	user := newUser(t, db, "user")

	_, err := svc.Grant(admin, user, -5, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTopUp_Idempotent(t *testing.T) {
	// GIVEN: a settled top-up with platform tx "TX-ABC"
	// WHEN: the same settlement is replayed
	// THEN: DuplicateTransaction, and exactly one +100 credit exists

	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")

	w, err := svc.TopUp(user, 100, "TX-ABC")
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Balance)

	_, err = svc.TopUp(user, 100, "TX-ABC")
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	assert.Equal(t, int64(100), walletOf(t, db, user).Balance)
	assert.Equal(t, int64(1), txCount(t, db))
}

func TestTopUp_MissingPlatformTxID(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")

	_, err := svc.TopUp(user, 100, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

// =============================================================================
// PURCHASE
// =============================================================================

func TestPurchase_Success(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 400, 0)
	badgeID := newBadge(t, db, "Super Fan", 250, false)

	remaining, txn, err := svc.Purchase(user, badgeID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), remaining)
	require.NotNil(t, txn)
	assert.Equal(t, int64(-250), txn.Amount)
	assert.Equal(t, domain.TxPurchase, txn.Type)

	owned, err := repository.NewBadgeRepository(db).IsOwned(user, badgeID)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestPurchase_AlreadyOwned(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 1000, 0)
	badgeID := newBadge(t, db, "Super Fan", 250, false)

	_, _, err := svc.Purchase(user, badgeID)
	require.NoError(t, err)

	_, _, err = svc.Purchase(user, badgeID)
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	assert.Equal(t, int64(750), walletOf(t, db, user).Balance, "second attempt must not charge")
}

func TestPurchase_ExclusiveNotPurchasable(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 1000, 0)
	badgeID := newBadge(t, db, "Founder", 0, true)

	_, _, err := svc.Purchase(user, badgeID)
	assert.ErrorIs(t, err, ErrNotPurchasable)
	assert.Equal(t, int64(0), txCount(t, db))
}

func TestPurchase_InsufficientFunds(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 100, 0)
	badgeID := newBadge(t, db, "Diamond", 1000, false)

	_, _, err := svc.Purchase(user, badgeID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(100), walletOf(t, db, user).Balance)
	assert.Equal(t, int64(0), txCount(t, db))
}

func TestPurchase_CompensatesWhenOwnershipFails(t *testing.T) {
	// GIVEN: the debit committed but ownership recording fails
	// THEN: the debit is refunded; the user is not charged without the badge

	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 400, 0)
	badgeID := newBadge(t, db, "Super Fan", 250, false)

	// Block the ownership insert only; the pre-debit ownership check still
	// reads the table normally.
	require.NoError(t, db.Exec(`CREATE TRIGGER block_badge_grants BEFORE INSERT ON user_badges
		BEGIN SELECT RAISE(ABORT, 'injected ownership failure'); END`).Error)

	_, _, err := svc.Purchase(user, badgeID)
	require.Error(t, err)

	assert.Equal(t, int64(400), walletOf(t, db, user).Balance, "compensating refund must restore balance")

	var original models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ? AND amount = ?", user, domain.TxPurchase, -250).First(&original).Error)
	assert.Equal(t, domain.TxStatusRefunded, original.Status)

	var compensating models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user, domain.TxRefund).First(&compensating).Error)
	assert.Equal(t, int64(250), compensating.Amount)
}

// =============================================================================
// REFUND
// =============================================================================

func TestRefund_CompletedPurchase(t *testing.T) {
	// GIVEN: a completed -300 purchase entry against a wallet at 700
	// WHEN: refund(txId)
	// THEN: original REFUNDED, new +300 entry, balance 1000

	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 700, 0)
	entry := &models.Transaction{
		UserID:      user,
		Type:        domain.TxPurchase,
		Amount:      -300,
		Description: "badge: Diamond",
		Status:      domain.TxStatusCompleted,
	}
	require.NoError(t, db.Create(entry).Error)

	updated, err := svc.Refund(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusRefunded, updated.Status)

	assert.Equal(t, int64(1000), walletOf(t, db, user).Balance)

	var compensating models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user, domain.TxRefund).First(&compensating).Error)
	assert.Equal(t, int64(300), compensating.Amount)
	assert.Equal(t, domain.TxStatusCompleted, compensating.Status)
}

func TestRefund_OneWay(t *testing.T) {
	// A refunded entry cannot be refunded again, and the compensating
	// REFUND entry itself is not reversible.

	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 700, 0)
	entry := &models.Transaction{
		UserID: user, Type: domain.TxPurchase, Amount: -300,
		Status: domain.TxStatusCompleted,
	}
	require.NoError(t, db.Create(entry).Error)

	_, err := svc.Refund(entry.ID)
	require.NoError(t, err)

	_, err = svc.Refund(entry.ID)
	assert.ErrorIs(t, err, ErrNotRefundable)

	var compensating models.Transaction
	require.NoError(t, db.Where("type = ?", domain.TxRefund).First(&compensating).Error)
	_, err = svc.Refund(compensating.ID)
	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestRefund_PendingNotRefundable(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 100, 0)
	entry := &models.Transaction{
		UserID: user, Type: domain.TxPurchase, Amount: -50,
		Status: domain.TxStatusPending,
	}
	require.NoError(t, db.Create(entry).Error)

	_, err := svc.Refund(entry.ID)
	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestRefund_CreditEntryNeedsSpendableBalance(t *testing.T) {
	// Refunding a credit entry debits balance; if the user already spent
	// the coins the reversal is rejected.

	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 50, 0)
	entry := &models.Transaction{
		UserID: user, Type: domain.TxAdminGrant, Amount: 100,
		Status: domain.TxStatusCompleted,
	}
	require.NoError(t, db.Create(entry).Error)

	_, err := svc.Refund(entry.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(50), walletOf(t, db, user).Balance)
}

// =============================================================================
// WITHDRAW
// =============================================================================

func TestWithdraw_DebitsEarnings(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 0, 800)

	order, err := svc.Withdraw(user, 500)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, order.Status)
	assert.NotEmpty(t, order.OrderID)

	w := walletOf(t, db, user)
	assert.Equal(t, int64(300), w.Earnings)
	assert.Equal(t, int64(0), w.Balance, "withdrawals never touch spendable balance")

	var entry models.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", user, domain.TxWithdrawal).First(&entry).Error)
	assert.Equal(t, int64(-500), entry.Amount)
}

func TestWithdraw_InsufficientEarnings(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")
	seedWallet(t, db, user, 1000, 100)

	_, err := svc.Withdraw(user, 500)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(100), walletOf(t, db, user).Earnings)
	assert.Equal(t, int64(0), txCount(t, db))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestGetBalance_AutoCreatesZeroWallet(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")

	w, err := svc.GetBalance(user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)
	assert.Equal(t, int64(0), w.Earnings)
	assert.NotZero(t, walletOf(t, db, user).ID)
}

func TestInspectWallet_NotFound(t *testing.T) {
	svc, db := newTestLedger(t)
	user := newUser(t, db, "user")

	_, err := svc.InspectWallet(user)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestListTransactions_NewestFirst(t *testing.T) {
	svc, db := newTestLedger(t)
	admin := newUser(t, db, "admin")
	user := newUser(t, db, "user")

	for i := 1; i <= 3; i++ {
		_, err := svc.Grant(admin, user, int64(i*10), fmt.Sprintf("grant %d", i))
		require.NoError(t, err)
	}

	list, err := svc.ListTransactions(user, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(30), list[0].Amount)
	assert.Equal(t, int64(20), list[1].Amount)
	assert.Equal(t, int64(10), list[2].Amount)
}

func TestListTransactions_ReplaySumsToBalance(t *testing.T) {
	// The log reflects commit order, so replaying it reproduces the
	// current pools by summation.

	svc, db := newTestLedger(t)
	admin := newUser(t, db, "admin")
	user := newUser(t, db, "user")
	other := newUser(t, db, "other")

	_, err := svc.Grant(admin, user, 1000, "")
	require.NoError(t, err)
	_, err = svc.Transfer(user, other, 400, "")
	require.NoError(t, err)
	_, err = svc.TopUp(user, 250, "TX-1")
	require.NoError(t, err)

	list, err := svc.ListTransactions(user, 50, 0)
	require.NoError(t, err)
	var sum int64
	for _, e := range list {
		sum += e.Amount
	}
	w := walletOf(t, db, user)
	assert.Equal(t, w.Balance+w.Earnings, sum)
}
