package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/farellandr/eventive/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDatabase(cfg *Config, log *slog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := seedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		log.Info("admin account ensured", "email", cfg.AdminEmail)
	}

	return db, nil
}

// Migrate creates the schema and the fixed role rows. It is shared by the
// postgres bootstrap and the sqlite databases used in tests.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Event{},
		&models.TicketType{},
		&models.Ticket{},
		&models.CheckIn{},
		&models.PaymentEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return seedRoles(db)
}

func seedRoles(db *gorm.DB) error {
	for _, name := range models.Roles {
		role := models.Role{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

func seedAdmin(db *gorm.DB, email, password string) error {
	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var role models.Role
	if err := db.Where("name = ?", models.RoleAdmin).First(&role).Error; err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Create(&models.User{
		Email:    email,
		Name:     "Administrator",
		Password: string(hashedPassword),
		RoleID:   role.ID,
	}).Error
}
