package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps an environment variable onto a viper key
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "IMAGECLASSIFIER_DEBUG", validateEnvBool},
		{"classifier.modelpath", "IMAGECLASSIFIER_MODELPATH", nil},
		{"classifier.labelpath", "IMAGECLASSIFIER_LABELPATH", nil},
		{"classifier.maxresults", "IMAGECLASSIFIER_MAXRESULTS", validateEnvPositiveInt},
		{"classifier.threads", "IMAGECLASSIFIER_THREADS", validateEnvThreads},
		{"classifier.usexnnpack", "IMAGECLASSIFIER_USEXNNPACK", validateEnvBool},
		{"assets.path", "IMAGECLASSIFIER_ASSETS", nil},
		{"webserver.listen", "IMAGECLASSIFIER_LISTEN", nil},
		{"telemetry.dsn", "IMAGECLASSIFIER_SENTRY_DSN", nil},
		{"mqtt.broker", "IMAGECLASSIFIER_MQTT_BROKER", nil},
		{"mqtt.password", "IMAGECLASSIFIER_MQTT_PASSWORD", nil},
		{"output.mysql.password", "IMAGECLASSIFIER_MYSQL_PASSWORD", nil},
	}
}

// bindEnvVars binds environment variables and reports invalid values
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvThreads(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("must be 0 or a positive integer")
	}
	return nil
}
