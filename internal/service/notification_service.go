package service

import (
	"encoding/json"
	"fmt"
	"log"

	"tikbook/internal/domain"
	"tikbook/internal/models"
	"tikbook/internal/repository"
)

// NotificationService persists notification rows for the client to poll.
// It implements NotificationSink: failures are logged and swallowed so a
// broken sink can never fail a committed ledger mutation.
type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) notify(userID uint, notifType, title, body string, data map[string]interface{}) {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(&models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		log.Printf("[NOTIFY] %s for user %d dropped: %v", notifType, userID, err)
	}
}

func (s *NotificationService) GiftReceived(userID, fromUserID uint, amount int64) {
	s.notify(userID, domain.NotifGiftReceived, "Gift received",
		fmt.Sprintf("You received %d coins", amount),
		map[string]interface{}{"from_user_id": fromUserID, "amount": amount})
}

func (s *NotificationService) CoinsGranted(userID uint, amount int64, reason string) {
	body := fmt.Sprintf("%d coins were added to your wallet", amount)
	if reason != "" {
		body += ": " + reason
	}
	s.notify(userID, domain.NotifCoinsGranted, "Coins granted", body,
		map[string]interface{}{"amount": amount})
}

func (s *NotificationService) TopUpConfirmed(userID uint, amount int64, platformTxID string) {
	s.notify(userID, domain.NotifTopUpDone, "Top-up confirmed",
		fmt.Sprintf("Your purchase of %d coins is complete", amount),
		map[string]interface{}{"amount": amount, "platform_tx_id": platformTxID})
}

func (s *NotificationService) RefundIssued(userID uint, amount int64, transactionID uint) {
	s.notify(userID, domain.NotifRefundIssued, "Refund issued",
		fmt.Sprintf("A transaction was refunded (%d coins)", amount),
		map[string]interface{}{"amount": amount, "transaction_id": transactionID})
}

func (s *NotificationService) BadgeGifted(userID uint, badgeName string) {
	s.notify(userID, domain.NotifBadgeGifted, "Badge unlocked",
		"You were gifted the "+badgeName+" badge",
		map[string]interface{}{"badge": badgeName})
}
