// config_validation.go - Startup validation of the environment configuration.
//
// Validates all environment variables at startup to fail fast with clear
// error messages rather than runtime failures.
package server

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator validates application configuration.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateURL validates that a value is a URL using one of the given schemes.
func (v *ConfigValidator) ValidateURL(key, value string, schemes ...string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Host == "" {
		v.AddError(key, "URL must include a host")
		return
	}

	for _, s := range schemes {
		if parsed.Scheme == s {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("URL must use one of the schemes: %s", strings.Join(schemes, ", ")))
}

// ValidateListenAddr validates ":port" or "host:port".
func (v *ConfigValidator) ValidateListenAddr(key, value string) {
	if value == "" {
		return
	}

	_, portStr, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(key, "must be host:port or :port")
		return
	}
	v.validatePortNumber(key, portStr)
}

// ValidateHostPorts validates a comma-separated list of host:port pairs.
func (v *ConfigValidator) ValidateHostPorts(key, value string) {
	if value == "" {
		return
	}

	for _, hp := range strings.Split(value, ",") {
		host, portStr, err := net.SplitHostPort(strings.TrimSpace(hp))
		if err != nil || host == "" {
			v.AddError(key, fmt.Sprintf("invalid host:port %q", strings.TrimSpace(hp)))
			return
		}
		v.validatePortNumber(key, portStr)
	}
}

func (v *ConfigValidator) validatePortNumber(key, portStr string) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	if value == "" {
		return
	}

	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidatePositiveInt validates that a value is a positive integer.
func (v *ConfigValidator) ValidatePositiveInt(key, value string) {
	if value == "" {
		return
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return
	}

	if num <= 0 {
		v.AddError(key, "must be a positive integer")
	}
}

// ValidateDuration validates a positive time.ParseDuration value.
func (v *ConfigValidator) ValidateDuration(key, value string) {
	if value == "" {
		return
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid duration: %v", err))
		return
	}
	if d <= 0 {
		v.AddError(key, "must be a positive duration")
	}
}

// ValidateAllOrNone reports keys missing from a group where only some are set.
func (v *ConfigValidator) ValidateAllOrNone(keys ...string) {
	var set, missing []string
	for _, k := range keys {
		if os.Getenv(k) != "" {
			set = append(set, k)
		} else {
			missing = append(missing, k)
		}
	}
	if len(set) == 0 || len(missing) == 0 {
		return
	}
	for _, k := range missing {
		v.AddError(k, fmt.Sprintf("required when %s is set", strings.Join(set, ", ")))
	}
}

// ValidateConfiguration checks every LVS_ variable and DATABASE_URL.
// Unset optional variables are valid.
func ValidateConfiguration() error {
	v := NewConfigValidator()

	v.ValidateListenAddr("LVS_ADDR", os.Getenv("LVS_ADDR"))
	v.ValidatePositiveInt("LVS_MAX_UPLOAD_BYTES", os.Getenv("LVS_MAX_UPLOAD_BYTES"))
	v.ValidatePositiveInt("LVS_VERIFY_RATE_PER_MIN", os.Getenv("LVS_VERIFY_RATE_PER_MIN"))
	v.ValidateDuration("LVS_SINK_TIMEOUT", os.Getenv("LVS_SINK_TIMEOUT"))

	if dir := os.Getenv("LVS_UPLOAD_DIR"); dir != "" && strings.TrimSpace(dir) == "" {
		v.AddError("LVS_UPLOAD_DIR", "must not be blank")
	}

	v.ValidateEnum("LVS_LOG_FORMAT", os.Getenv("LVS_LOG_FORMAT"), []string{"json", "text"})
	v.ValidateEnum("LVS_LOG_LEVEL", os.Getenv("LVS_LOG_LEVEL"), []string{"debug", "info", "warn", "error"})

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		if !strings.HasPrefix(dbURL, "postgres://") && !strings.HasPrefix(dbURL, "postgresql://") {
			v.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
		}
	}

	// Object storage mirror
	v.ValidateAllOrNone("LVS_S3_ENDPOINT", "LVS_S3_ACCESS_KEY", "LVS_S3_SECRET_KEY", "LVS_BUCKET")
	if endpoint := os.Getenv("LVS_S3_ENDPOINT"); strings.Contains(endpoint, "://") {
		v.ValidateURL("LVS_S3_ENDPOINT", endpoint, "http", "https")
	}

	// Event publishers
	v.ValidateAllOrNone("LVS_KAFKA_BROKERS", "LVS_KAFKA_TOPIC")
	v.ValidateHostPorts("LVS_KAFKA_BROKERS", os.Getenv("LVS_KAFKA_BROKERS"))

	v.ValidateAllOrNone("LVS_MQTT_BROKER_URL", "LVS_MQTT_TOPIC")
	v.ValidateURL("LVS_MQTT_BROKER_URL", os.Getenv("LVS_MQTT_BROKER_URL"), "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss")
	if topic := os.Getenv("LVS_MQTT_TOPIC"); strings.ContainsAny(topic, "+#") {
		v.AddError("LVS_MQTT_TOPIC", "must not contain wildcards")
	}

	v.ValidateURL("LVS_WEBHOOK_URL", os.Getenv("LVS_WEBHOOK_URL"), "http", "https")
	if os.Getenv("LVS_WEBHOOK_SECRET") != "" && os.Getenv("LVS_WEBHOOK_URL") == "" {
		v.AddError("LVS_WEBHOOK_URL", "required when LVS_WEBHOOK_SECRET is set")
	}

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}
