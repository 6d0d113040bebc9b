// Package conf loads, validates and persists imageclassifier settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// NormalizationSettings holds the affine constants applied around inference.
// Input pixels become (v - ImageMean) / ImageStd and raw outputs become
// (raw - ProbabilityMean) / ProbabilityStd. A ProbabilityStd of 0 derives the
// divisor from the model output type: 255 for uint8, 1 for float32.
type NormalizationSettings struct {
	ImageMean       float32 `yaml:"imagemean"`
	ImageStd        float32 `yaml:"imagestd"`
	ProbabilityMean float32 `yaml:"probabilitymean"`
	ProbabilityStd  float32 `yaml:"probabilitystd"`
}

// ClassifierSettings contains model and inference settings
type ClassifierSettings struct {
	ModelPath     string                `yaml:"modelpath"`    // path to the .tflite model container
	LabelPath     string                `yaml:"labelpath"`    // path to the labels file, one label per line
	MaxResults    int                   `yaml:"maxresults"`   // number of ranked results returned
	Threads       int                   `yaml:"threads"`      // interpreter threads, 0 for auto
	UseXNNPACK    bool                  `yaml:"usexnnpack"`   // use the XNNPACK delegate
	ResizeMethod  string                `yaml:"resizemethod"` // nearest or bilinear
	Workers       int                   `yaml:"workers"`      // recognition worker goroutines
	QueueSize     int                   `yaml:"queuesize"`    // pending recognition requests
	Normalization NormalizationSettings `yaml:"normalization"`
}

// AssetSettings locates per-label detail text and images
type AssetSettings struct {
	Path          string        `yaml:"path"`          // directory with text/ and images/ subdirectories
	CacheTTL      time.Duration `yaml:"cachettl"`      // how long looked-up details stay cached
	ThumbnailSize uint          `yaml:"thumbnailsize"` // max edge of served label images, 0 keeps originals
}

// WebServerSettings contains HTTP API settings
type WebServerSettings struct {
	Enabled     bool   `yaml:"enabled"`
	Listen      string `yaml:"listen"`      // listen address, e.g. ":8080"
	MaxUploadMB int    `yaml:"maxuploadmb"` // maximum accepted image upload size
}

// TelemetrySettings controls metrics and error reporting
type TelemetrySettings struct {
	Metrics bool   `yaml:"metrics"` // expose Prometheus metrics on /metrics
	Sentry  bool   `yaml:"sentry"`  // report errors to Sentry
	DSN     string `yaml:"dsn"`
}

// SQLiteSettings configures the SQLite history store
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings configures the MySQL history store
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// OutputSettings selects where classification history is written
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// MQTTSettings configures result publishing
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Retain   bool   `yaml:"retain"`
}

// Settings contains all configuration options
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string               `yaml:"name"`
		Log  logger.LoggingConfig `yaml:"log"`
	} `yaml:"main"`

	Classifier ClassifierSettings `yaml:"classifier"`
	Assets     AssetSettings      `yaml:"assets"`
	WebServer  WebServerSettings  `yaml:"webserver"`
	Telemetry  TelemetrySettings  `yaml:"telemetry"`
	Output     OutputSettings     `yaml:"output"`
	MQTT       MQTTSettings       `yaml:"mqtt"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
// An explicit configFile overrides the search paths.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, binds environment variables and reads the config file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("environment variable problems", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				FileContext(configFile, 0).
				Context("operation", "read-config").
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig(), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// defaultConfig returns the embedded config.yaml
func defaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// embedded at build time
		panic(err)
	}
	return data
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath, replacing the file atomically.
// Comments and key order of the previous file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
