package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings conf.MySQLSettings
	Debug    bool
}

func validateMySQLConfig(s conf.MySQLSettings) error {
	if s.Host == "" || s.Database == "" || s.Username == "" {
		return errors.Newf("mysql host, database and username are required").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// dsn builds the go-sql-driver connection string.
func (store *MySQLStore) dsn() string {
	port := store.Settings.Port
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		store.Settings.Username, store.Settings.Password,
		store.Settings.Host, port, store.Settings.Database)
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	log := GetLogger().Module("mysql")

	db, err := gorm.Open(mysql.Open(store.dsn()), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		log.Error("Failed to open MySQL database",
			logger.String("host", store.Settings.Host),
			logger.String("port", store.Settings.Port),
			logger.String("database", store.Settings.Database),
			logger.Error(err))
		return errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	store.DB = db
	return performAutoMigration(db, store.Debug, "MySQL")
}

// Close MySQL database connections
func (store *MySQLStore) Close() error {
	return closeDB(store.DB)
}
