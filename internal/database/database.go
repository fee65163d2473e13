package database

import (
	"log"

	"tikbook/config"
	"tikbook/internal/domain"
	"tikbook/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Withdrawal{},
		&models.Notification{},
	)
}

// SeedAdmin creates the initial admin account if it does not exist yet.
func SeedAdmin(db *gorm.DB, cfg *config.AdminConfig) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[SEED] admin password hash: %v", err)
		return
	}
	admin := &models.User{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		log.Printf("[SEED] admin user: %v", err)
		return
	}
	log.Printf("[SEED] admin user %q created", cfg.Username)
}

// SeedBadges inserts the starter badge catalog on an empty table.
func SeedBadges(db *gorm.DB) {
	var count int64
	db.Model(&models.Badge{}).Count(&count)
	if count > 0 {
		return
	}
	badges := []models.Badge{
		{Name: "Rising Star", Icon: "⭐", Description: "For up-and-coming creators", PriceCoins: 100, IsActive: true},
		{Name: "Super Fan", Icon: "🔥", Description: "Show your support", PriceCoins: 250, IsActive: true},
		{Name: "Diamond", Icon: "💎", Description: "Top-shelf flair", PriceCoins: 1000, IsActive: true},
		{Name: "Founder", Icon: "🏆", Description: "Early community member", PriceCoins: 0, IsExclusive: true, IsActive: true},
	}
	if err := db.Create(&badges).Error; err != nil {
		log.Printf("[SEED] badge catalog: %v", err)
		return
	}
	log.Printf("[SEED] badge catalog created (%d badges)", len(badges))
}
