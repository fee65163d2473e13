package handler

import (
	"net/http"

	"tikbook/internal/middleware"
	"tikbook/internal/service"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	ledger *service.LedgerService
}

func NewWalletHandler(ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetBalance returns the current user's coin pools, creating a zero wallet
// on first access.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	w, err := h.ledger.GetBalance(userID)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":  w.Balance,
		"earnings": w.Earnings,
	})
}

type GiftRequest struct {
	ReceiverID uint   `json:"receiver_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
	Memo       string `json:"memo" binding:"max=255"`
}

// Gift transfers coins from the caller's balance to another user's earnings.
func (h *WalletHandler) Gift(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newBalance, err := h.ledger.Transfer(userID, req.ReceiverID, req.Amount, req.Memo)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": newBalance})
}

type TopUpRequest struct {
	Amount       int64  `json:"amount" binding:"required"`
	PlatformTxID string `json:"platform_tx_id" binding:"required,max=128"`
}

// TopUp settles a store purchase of coins, idempotent on platform_tx_id.
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.ledger.TopUp(userID, req.Amount, req.PlatformTxID)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":  w.Balance,
		"earnings": w.Earnings,
	})
}

// GetTransactions lists the caller's ledger history, newest first.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit := intQuery(c, "limit", 0)
	offset := intQuery(c, "offset", 0)
	list, err := h.ledger.ListTransactions(userID, limit, offset)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}

type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// Withdraw debits earnings and opens a payout order.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.ledger.Withdraw(userID, req.Amount)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order_id": order.OrderID,
		"amount":   order.Amount,
		"status":   order.Status,
	})
}
