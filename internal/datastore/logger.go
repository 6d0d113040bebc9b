package datastore

import (
	"sync"
	"time"

	gorm_logger "gorm.io/gorm/logger"

	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// slowQueryThreshold marks queries logged at WARN.
const slowQueryThreshold = 200 * time.Millisecond

var (
	datastoreLogger     logger.Logger
	datastoreLoggerOnce sync.Once
)

// GetLogger returns the datastore package logger
func GetLogger() logger.Logger {
	datastoreLoggerOnce.Do(func() {
		datastoreLogger = logger.Global().Module("datastore")
	})
	return datastoreLogger
}

// createGormLogger routes GORM output through the datastore logger.
func createGormLogger() gorm_logger.Interface {
	return logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)
}
