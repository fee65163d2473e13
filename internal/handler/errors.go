package handler

import (
	"errors"
	"log"
	"net/http"

	"tikbook/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ledgerError writes the JSON rejection for a ledger service error: a
// human-readable message plus the stable machine-readable kind.
func ledgerError(c *gin.Context, err error) {
	kind := service.ErrorKind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidOperation),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrNotPurchasable):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyOwned),
		errors.Is(err, service.ErrNotRefundable),
		errors.Is(err, service.ErrDuplicateTransaction):
		status = http.StatusConflict
	case errors.Is(err, service.ErrWalletNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrTransientConflict):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("[LEDGER] internal error: %v", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if kind != "" {
		body["kind"] = kind
	}
	c.JSON(status, body)
}
