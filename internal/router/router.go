package router

import (
	"time"

	"tikbook/config"
	"tikbook/internal/handler"
	"tikbook/internal/middleware"
	"tikbook/internal/repository"
	"tikbook/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	notifSvc := service.NewNotificationService(notificationRepo)
	ledgerSvc := service.NewLedgerService(db, walletRepo, txRepo, badgeRepo, withdrawalRepo, notifSvc, cfg.Ledger)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	walletHandler := handler.NewWalletHandler(ledgerSvc)
	storeHandler := handler.NewStoreHandler(ledgerSvc, badgeRepo)
	adminHandler := handler.NewAdminHandler(ledgerSvc, badgeRepo)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/wallet", walletHandler.GetBalance)
			me.GET("/wallet/transactions", walletHandler.GetTransactions)
			me.POST("/wallet/gift", walletHandler.Gift)
			me.POST("/wallet/topup", walletHandler.TopUp)
			me.POST("/withdraw", walletHandler.Withdraw)
			me.GET("/badges", storeHandler.ListOwned)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}

		store := api.Group("/store")
		store.Use(authMw)
		{
			store.GET("/badges", storeHandler.ListBadges)
			store.POST("/badges/:id/purchase", storeHandler.Purchase)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/wallets/:user_id", adminHandler.InspectWallet)
			admin.POST("/wallets/:user_id/grant", adminHandler.Grant)
			admin.POST("/transactions/:id/refund", adminHandler.Refund)
			admin.POST("/badges", adminHandler.CreateBadge)
			admin.POST("/badges/:id/gift", adminHandler.GiftBadge)
		}
	}

	return r
}
