package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateClassifierSettings(&settings.Classifier); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if settings.Telemetry.Sentry && settings.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry: sentry enabled without dsn")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateClassifierSettings(settings *ClassifierSettings) error {
	var errs []string

	if settings.ModelPath == "" {
		errs = append(errs, "model path must be set")
	}
	if settings.LabelPath == "" {
		errs = append(errs, "label path must be set")
	}
	if settings.MaxResults < 1 {
		errs = append(errs, "maxresults must be at least 1")
	}
	if settings.Threads < 0 {
		errs = append(errs, "threads must be 0 or positive")
	}
	if settings.Workers < 1 {
		errs = append(errs, "workers must be at least 1")
	}
	if settings.QueueSize < 1 {
		errs = append(errs, "queuesize must be at least 1")
	}
	switch strings.ToLower(settings.ResizeMethod) {
	case "", "nearest", "bilinear":
	default:
		errs = append(errs, fmt.Sprintf("unknown resize method %q", settings.ResizeMethod))
	}
	if settings.Normalization.ImageStd == 0 {
		errs = append(errs, "normalization imagestd must not be zero")
	}
	if settings.Normalization.ProbabilityStd < 0 {
		errs = append(errs, "normalization probabilitystd must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("classifier settings errors: %v", errs)
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("webserver listen address %q is invalid: %w", settings.Listen, err)
	}
	if settings.MaxUploadMB < 1 {
		return fmt.Errorf("webserver maxuploadmb must be at least 1")
	}
	return nil
}

func validateOutputSettings(settings *OutputSettings) error {
	if settings.SQLite.Enabled && settings.MySQL.Enabled {
		return fmt.Errorf("output: enable either sqlite or mysql, not both")
	}
	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		return fmt.Errorf("output: sqlite path must be set")
	}
	if settings.MySQL.Enabled && (settings.MySQL.Host == "" || settings.MySQL.Database == "") {
		return fmt.Errorf("output: mysql host and database must be set")
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.Topic == "" {
		return fmt.Errorf("mqtt: topic must be set")
	}
	u, err := url.Parse(settings.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("mqtt: broker %q must be a URL like tcp://host:1883", settings.Broker)
	}
	return nil
}
