package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/invopay/invopay/internal/types"
	"github.com/invopay/invopay/internal/validator"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig
	Invoice    InvoiceConfig `validate:"required"`
	Scheduler  SchedulerConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// InvoiceConfig is the static, process-wide invoice behaviour surface. It is
// loaded once and injected into services at construction; nothing mutates it
// afterwards.
type InvoiceConfig struct {
	// DefaultCurrency is the 3-letter ISO code applied when a build does not set one
	DefaultCurrency string `mapstructure:"default_currency" validate:"required,len=3"`
	// DueDateDays is the default due-date offset from creation time
	DueDateDays int `mapstructure:"due_date_days" validate:"gte=0"`
	// NumberPrefix is prepended to every generated invoice number, e.g. "INV-"
	NumberPrefix string `mapstructure:"number_prefix" validate:"required"`
	// NumberFormat is the Go reference layout for the date scope of a number, e.g. "20060102"
	NumberFormat string `mapstructure:"number_format" validate:"required"`
	// NumberPadding is the zero-padded width of the sequential suffix
	NumberPadding int `mapstructure:"number_padding" validate:"gte=1"`
	// StrictValidation toggles the default reconciliation mode against the
	// invoiceable's declared amount; individual builds may opt out
	StrictValidation bool `mapstructure:"strict_validation"`
	// CallbacksEnabled globally disables after-create and on-paid callbacks when false
	CallbacksEnabled bool `mapstructure:"callbacks_enabled"`
	// RecurringGraceDays is the due-date offset applied to generated successor invoices
	RecurringGraceDays int `mapstructure:"recurring_grace_days" validate:"gte=0"`
}

type SchedulerConfig struct {
	// Cron is the schedule on which due recurring invoices are generated
	Cron string
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/invopay")

	v.SetEnvPrefix("INVOPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("invoice.default_currency", "usd")
	v.SetDefault("invoice.due_date_days", 30)
	v.SetDefault("invoice.number_prefix", "INV-")
	v.SetDefault("invoice.number_format", "20060102")
	v.SetDefault("invoice.number_padding", 4)
	v.SetDefault("invoice.strict_validation", true)
	v.SetDefault("invoice.callbacks_enabled", true)
	v.SetDefault("invoice.recurring_grace_days", 30)
	v.SetDefault("scheduler.cron", "0 * * * *")
}

func (c Configuration) Validate() error {
	return validator.ValidateRequest(c)
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetDefaultConfig returns a default configuration for local development
// and tests so they do not depend on a config file being present.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Invoice: InvoiceConfig{
			DefaultCurrency:    "usd",
			DueDateDays:        30,
			NumberPrefix:       "INV-",
			NumberFormat:       "20060102",
			NumberPadding:      4,
			StrictValidation:   true,
			CallbacksEnabled:   true,
			RecurringGraceDays: 30,
		},
		Scheduler: SchedulerConfig{Cron: "0 * * * *"},
	}
}
