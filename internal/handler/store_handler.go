package handler

import (
	"net/http"
	"strconv"

	"tikbook/internal/middleware"
	"tikbook/internal/repository"
	"tikbook/internal/service"

	"github.com/gin-gonic/gin"
)

type StoreHandler struct {
	ledger    *service.LedgerService
	badgeRepo *repository.BadgeRepository
}

func NewStoreHandler(ledger *service.LedgerService, badgeRepo *repository.BadgeRepository) *StoreHandler {
	return &StoreHandler{ledger: ledger, badgeRepo: badgeRepo}
}

// ListBadges returns the purchasable catalog.
func (h *StoreHandler) ListBadges(c *gin.Context) {
	list, err := h.badgeRepo.ListActive()
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": list})
}

// Purchase spends balance on a badge.
func (h *StoreHandler) Purchase(c *gin.Context) {
	userID := middleware.GetUserID(c)
	badgeID := uintParam(c, "id")
	if badgeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid badge id"})
		return
	}
	remaining, txn, err := h.ledger.Purchase(userID, badgeID)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":     remaining,
		"transaction": txn,
	})
}

// ListOwned returns the caller's badges.
func (h *StoreHandler) ListOwned(c *gin.Context) {
	userID := middleware.GetUserID(c)
	list, err := h.badgeRepo.ListOwned(userID)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": list})
}

func uintParam(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
