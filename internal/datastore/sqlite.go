package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Path  string
	Debug bool
}

// NewSQLiteStore returns an unopened SQLite store at path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{Path: path}
}

func validateSQLiteConfig(path string) error {
	if path == "" {
		return errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Open creates the database file if needed and migrates the schema.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Path); err != nil {
		return err
	}

	if dir := filepath.Dir(store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(fmt.Errorf("failed to create database directory: %w", err)).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Build()
		}
	}

	// foreign keys are off by default in SQLite
	dsn := store.Path + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			FileContext(store.Path, 0).
			Build()
	}

	// a single writer avoids "database is locked" under concurrent saves
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get generic DB object: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	GetLogger().Info("opened SQLite database", logger.String("path", store.Path))
	return performAutoMigration(db, store.Debug, "SQLite")
}

// Close closes the SQLite database connection
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB)
}
