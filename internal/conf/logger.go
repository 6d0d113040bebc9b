package conf

import (
	"sync"

	"github.com/tphakala/imageclassifier-go/internal/logger"
)

var (
	confLogger     logger.Logger
	confLoggerOnce sync.Once
)

// GetLogger returns the conf package logger
func GetLogger() logger.Logger {
	confLoggerOnce.Do(func() {
		confLogger = logger.Global().Module("conf")
	})
	return confLogger
}
