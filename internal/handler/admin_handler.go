package handler

import (
	"net/http"

	"tikbook/internal/middleware"
	"tikbook/internal/models"
	"tikbook/internal/repository"
	"tikbook/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	ledger    *service.LedgerService
	badgeRepo *repository.BadgeRepository
}

func NewAdminHandler(ledger *service.LedgerService, badgeRepo *repository.BadgeRepository) *AdminHandler {
	return &AdminHandler{ledger: ledger, badgeRepo: badgeRepo}
}

type GrantRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"max=255"`
}

// Grant credits coins to a user's wallet.
func (h *AdminHandler) Grant(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	userID := uintParam(c, "user_id")
	if userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newBalance, err := h.ledger.Grant(adminID, userID, req.Amount, req.Reason)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": newBalance})
}

// Refund reverses a completed transaction.
func (h *AdminHandler) Refund(c *gin.Context) {
	txID := uintParam(c, "id")
	if txID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}
	txn, err := h.ledger.Refund(txID)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// InspectWallet looks up another user's wallet without creating it.
func (h *AdminHandler) InspectWallet(c *gin.Context) {
	userID := uintParam(c, "user_id")
	if userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	w, err := h.ledger.InspectWallet(userID)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  w.UserID,
		"balance":  w.Balance,
		"earnings": w.Earnings,
	})
}

type CreateBadgeRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Icon        string `json:"icon" binding:"max=512"`
	Description string `json:"description" binding:"max=255"`
	PriceCoins  int64  `json:"price_coins" binding:"min=0"`
	IsExclusive bool   `json:"is_exclusive"`
}

// CreateBadge adds a catalog item.
func (h *AdminHandler) CreateBadge(c *gin.Context) {
	var req CreateBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b := &models.Badge{
		Name:        req.Name,
		Icon:        req.Icon,
		Description: req.Description,
		PriceCoins:  req.PriceCoins,
		IsExclusive: req.IsExclusive,
		IsActive:    true,
	}
	if err := h.badgeRepo.Create(b); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type GiftBadgeRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// GiftBadge grants a badge (exclusive or not) without a debit.
func (h *AdminHandler) GiftBadge(c *gin.Context) {
	badgeID := uintParam(c, "id")
	if badgeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid badge id"})
		return
	}
	var req GiftBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ledger.GiftBadge(req.UserID, badgeID); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
