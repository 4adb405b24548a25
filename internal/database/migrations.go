package database

import (
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.Query{},
		&models.QueryResponse{},
		&models.ReminderLog{},
		&models.Circular{},
		&models.ChatMessage{},
		&models.AttendanceEntry{},
		&models.DocumentCategory{},
		&models.DocumentUpload{},
	)
}

// SeedData ensures the DDPU office account exists. The password is a random
// token that must be rotated through the admin flow on first use; colleges are
// registered by the DDPU account.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleDDPU).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	ddpu := models.User{
		Username: "ddpu",
		Name:     "DDPU Office",
		Email:    "ddpu@example.org",
		Password: "!locked", // not a valid bcrypt hash; login is impossible until reset
		Role:     models.RoleDDPU,
	}
	return db.Create(&ddpu).Error
}
