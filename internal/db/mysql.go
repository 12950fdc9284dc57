package db

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cardvault/internal/model"
)

// NewMySQL returns a connected GORM DB instance. lockWaitSeconds bounds
// every row lock wait on the session.
func NewMySQL(dsn string, lockWaitSeconds int, log logrus.FieldLogger) (*gorm.DB, error) {
	dsn, err := withLockWaitTimeout(dsn, lockWaitSeconds)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// withLockWaitTimeout sets innodb_lock_wait_timeout as a session variable
// so it applies to every pooled connection.
func withLockWaitTimeout(dsn string, seconds int) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if seconds > 0 {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params["innodb_lock_wait_timeout"] = strconv.Itoa(seconds)
	}
	return cfg.FormatDSN(), nil
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Card{},
		&model.Transaction{},
		&model.CardEvent{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table. Development only.
func Reset(db *gorm.DB, log logrus.FieldLogger) {
	tables := []interface{}{
		&model.CardEvent{},
		&model.Transaction{},
		&model.Card{},
		&model.User{},
	}
	for _, table := range tables {
		if err := db.Migrator().DropTable(table); err != nil {
			log.WithError(err).Warn("failed to drop table (may not exist)")
		}
	}
}
