package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultInvoiceDuration is how long a hosted invoice stays payable (seconds).
const DefaultInvoiceDuration = 86400

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string
	APIKey           string
	LedgerDBPath     string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableLogging    bool
	LoggingLevel     string
	LogRetentionDays int
}

// XenditConfig holds the settings for the Xendit integration.
// It is built once at startup and passed by constructor into every
// component that needs it.
type XenditConfig struct {
	APIKey          string `validate:"required"`
	CallbackToken   string
	BaseURL         string `validate:"required,url"`
	InvoiceDuration int    `validate:"gt=0"`
	PaymentMethods  []string
}

// LoadAppConfig reads the application configuration from the environment
func LoadAppConfig() *AppConfig {
	return &AppConfig{
		Port:             GetEnv("APP_PORT", "9999"),
		APIKey:           GetEnv("API_KEY", ""),
		LedgerDBPath:     GetEnv("LEDGER_DB_PATH", "data/xenbridge.db"),
		OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableLogging:    GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
		LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
		LogRetentionDays: GetIntEnv("LOG_RETENTION_DAYS", 30),
	}
}

// LoadXenditConfig reads the Xendit settings from the environment and
// validates them. An empty callback token disables webhook verification.
func LoadXenditConfig() (*XenditConfig, error) {
	cfg := &XenditConfig{
		APIKey:          GetEnv("XENDIT_API_KEY", ""),
		CallbackToken:   GetEnv("XENDIT_CALLBACK_TOKEN", ""),
		BaseURL:         GetEnv("XENDIT_BASE_URL", "https://api.xendit.co"),
		InvoiceDuration: GetIntEnv("INVOICE_DURATION", DefaultInvoiceDuration),
	}

	if methods := GetEnv("PAYMENT_METHODS", ""); methods != "" {
		for _, m := range strings.Split(methods, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.PaymentMethods = append(cfg.PaymentMethods, strings.ToUpper(m))
			}
		}
	}

	if cfg.APIKey == "" {
		return nil, errors.New("config: XENDIT_API_KEY is required")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
