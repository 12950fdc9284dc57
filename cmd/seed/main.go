package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"cardvault/internal/config"
	"cardvault/internal/db"
	"cardvault/internal/logging"
	"cardvault/internal/repository"
	"cardvault/internal/service"
)

// seed creates or refreshes the admin account from ADMIN_* variables.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("Starting seed script...")

	if cfg.AdminPassword == "" {
		log.Fatal("ADMIN_PASSWORD is required")
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN, cfg.LockWaitTimeout, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	log.Info("Connected to database")

	// Run migrations to ensure schema is up to date
	if err := db.Migrate(gormDB); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.Info("Database migrations completed")

	store := repository.NewGormStore(gormDB)
	admin, created, err := service.EnsureAdmin(context.Background(), store, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.WithError(err).Fatal("Failed to seed admin")
	}

	log.WithFields(logrus.Fields{
		"user_id": admin.ID,
		"email":   admin.Email,
		"created": created,
	}).Info("Seed completed successfully")
}
