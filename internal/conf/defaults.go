package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default classifier values. MaxResults matches the five-entry result list of the
// reference application.
const (
	DefaultMaxResults   = 5
	DefaultWorkers      = 1
	DefaultQueueSize    = 16
	DefaultMaxUploadMB  = 10
	DefaultResizeMethod = "nearest"
)

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "imageclassifier")
	viper.SetDefault("main.log.default_level", "info")
	viper.SetDefault("main.log.timezone", "Local")
	viper.SetDefault("main.log.console.enabled", true)
	viper.SetDefault("main.log.console.level", "info")
	viper.SetDefault("main.log.file_output.enabled", false)
	viper.SetDefault("main.log.file_output.path", "logs/imageclassifier.log")
	viper.SetDefault("main.log.file_output.level", "info")

	viper.SetDefault("classifier.modelpath", "model/model.tflite")
	viper.SetDefault("classifier.labelpath", "model/labels.txt")
	viper.SetDefault("classifier.maxresults", DefaultMaxResults)
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.usexnnpack", false)
	viper.SetDefault("classifier.resizemethod", DefaultResizeMethod)
	viper.SetDefault("classifier.workers", DefaultWorkers)
	viper.SetDefault("classifier.queuesize", DefaultQueueSize)
	viper.SetDefault("classifier.normalization.imagemean", 0.0)
	viper.SetDefault("classifier.normalization.imagestd", 1.0)
	viper.SetDefault("classifier.normalization.probabilitymean", 0.0)
	viper.SetDefault("classifier.normalization.probabilitystd", 0.0)

	viper.SetDefault("assets.path", "assets")
	viper.SetDefault("assets.cachettl", 30*time.Minute)
	viper.SetDefault("assets.thumbnailsize", 0)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.maxuploadmb", DefaultMaxUploadMB)

	viper.SetDefault("telemetry.metrics", true)
	viper.SetDefault("telemetry.sentry", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "history.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "imageclassifier")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "imageclassifier/recognitions")
	viper.SetDefault("mqtt.retain", false)
}
