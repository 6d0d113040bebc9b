package classifier

import (
	"sync"

	"github.com/tphakala/imageclassifier-go/internal/logger"
)

var (
	classifierLogger     logger.Logger
	classifierLoggerOnce sync.Once
)

// GetLogger returns the classifier package logger
func GetLogger() logger.Logger {
	classifierLoggerOnce.Do(func() {
		classifierLogger = logger.Global().Module(componentName)
	})
	return classifierLogger
}
