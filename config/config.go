package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database           DatabaseConfig
	KafkaHost          string
	OrderEventsTopic   string
	PaymentStatusTopic string
	RelayBatchSize     int
	LogLevel           string
	Order              OrderConfig
	Invoice            InvoiceConfig
}

type DatabaseConfig struct {
	MigrationDir string
	DSN          string
}

type OrderConfig struct {
	MaxCodeAttempts int
}

type InvoiceConfig struct {
	TaxRate           decimal.Decimal
	MaxNumberAttempts int
}

var DefaultConfig = Config{
	Database: DatabaseConfig{
		MigrationDir: "migration",
		DSN:          "root:1@tcp(localhost:3306)/storefront?parseTime=true&loc=UTC&multiStatements=true",
	},
	KafkaHost:          "localhost:29092",
	OrderEventsTopic:   "ORDER_EVENTS_TOPIC",
	PaymentStatusTopic: "PAYMENT_STATUS_TOPIC",
	RelayBatchSize:     100,
	LogLevel:           "info",
	Order: OrderConfig{
		MaxCodeAttempts: 5,
	},
	Invoice: InvoiceConfig{
		TaxRate:           decimal.NewFromFloat(0.10),
		MaxNumberAttempts: 5,
	},
}

// Load starts from DefaultConfig and applies a .env file (when present) and the environment.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv applies overrides read through getenv to DefaultConfig.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig

	setString(getenv, "DATABASE_DSN", &cfg.Database.DSN)
	setString(getenv, "MIGRATION_DIR", &cfg.Database.MigrationDir)
	setString(getenv, "KAFKA_HOST", &cfg.KafkaHost)
	setString(getenv, "ORDER_EVENTS_TOPIC", &cfg.OrderEventsTopic)
	setString(getenv, "PAYMENT_STATUS_TOPIC", &cfg.PaymentStatusTopic)
	setString(getenv, "LOG_LEVEL", &cfg.LogLevel)

	if err := setInt(getenv, "RELAY_BATCH_SIZE", &cfg.RelayBatchSize); err != nil {
		return Config{}, err
	}
	if err := setInt(getenv, "ORDER_CODE_MAX_ATTEMPTS", &cfg.Order.MaxCodeAttempts); err != nil {
		return Config{}, err
	}
	if err := setInt(getenv, "INVOICE_MAX_NUMBER_ATTEMPTS", &cfg.Invoice.MaxNumberAttempts); err != nil {
		return Config{}, err
	}
	if v := getenv("INVOICE_TAX_RATE"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("INVOICE_TAX_RATE: %w", err)
		}
		if rate.IsNegative() {
			return Config{}, fmt.Errorf("INVOICE_TAX_RATE must not be negative, got %s", v)
		}
		cfg.Invoice.TaxRate = rate
	}

	if cfg.Order.MaxCodeAttempts < 1 || cfg.Invoice.MaxNumberAttempts < 1 {
		return Config{}, errors.New("retry attempts must be at least 1")
	}
	return cfg, nil
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
