package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// performAutoMigration creates or updates the history tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType string) error {
	migrationStart := time.Now()
	migrationLogger := GetLogger().With(logger.String("db_type", dbType))

	migrationLogger.Debug("Starting database migration")

	for _, model := range []any{&Capture{}, &Results{}} {
		if err := db.AutoMigrate(model); err != nil {
			return errors.New(fmt.Errorf("failed to auto-migrate %T: %w", model, err)).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("db_type", dbType).
				Build()
		}
	}

	if debug {
		migrationLogger.Info("Database migration completed",
			logger.Duration("duration", time.Since(migrationStart)))
	}
	return nil
}

// closeDB closes the pool behind db.
func closeDB(db *gorm.DB) error {
	if db == nil {
		return errNotOpen()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return errors.New(fmt.Errorf("failed to close database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}
