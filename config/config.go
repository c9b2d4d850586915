// Package config loads mockstate configuration from an optional file and
// MOCKSTATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jacentio/mockstate/internal/logging"
	"github.com/jacentio/mockstate/store"
	"github.com/jacentio/mockstate/store/badgerstore"
	"github.com/jacentio/mockstate/store/dynamo"
)

// EnvPrefix prefixes every environment variable, with dots in the key
// replaced by underscores. Example: MOCKSTATE_STORE_KEY_PREFIX=tenantA.
const EnvPrefix = "MOCKSTATE"

// Backend kinds.
const (
	BackendInMemory = "inmemory"
	BackendDynamoDB = "dynamodb"
	BackendBadger   = "badger"
)

// Config is the complete mockstate configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Store    StoreConfig    `mapstructure:"store"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Badger   BadgerConfig   `mapstructure:"badger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// StoreConfig selects the backend shared by every non-forced store.
type StoreConfig struct {
	// Backend is inmemory, dynamodb or badger.
	Backend string `mapstructure:"backend" validate:"required,oneof=inmemory dynamodb badger"`

	// KeyPrefix is prepended to every key of non-forced stores, verbatim.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DynamoDBConfig configures the dynamodb backend.
type DynamoDBConfig struct {
	TableName string `mapstructure:"table_name" validate:"required"`
	Region    string `mapstructure:"region"`
	Profile   string `mapstructure:"profile"`

	// Endpoint overrides the service endpoint (DynamoDB Local, LocalStack).
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	// Static credentials. When unset the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`

	ListMode       string        `mapstructure:"list_mode" validate:"required,oneof=scan query"`
	ConsistentRead bool          `mapstructure:"consistent_read"`
	RecordTTL      time.Duration `mapstructure:"record_ttl" validate:"gte=0"`
	OpTimeout      time.Duration `mapstructure:"op_timeout" validate:"gte=0"`

	// EnsureTable creates the table at startup when it is missing.
	// EnsureTableTimeout bounds the wait for the table to become active.
	EnsureTable        bool          `mapstructure:"ensure_table"`
	EnsureTableTimeout time.Duration `mapstructure:"ensure_table_timeout" validate:"gt=0"`
}

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	Dir        string `mapstructure:"dir"`
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// MetricsConfig controls Prometheus instrumentation of stores.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	dyn := dynamo.DefaultConfig()
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{Backend: BackendInMemory},
		DynamoDB: DynamoDBConfig{
			TableName:          dyn.TableName,
			ListMode:           string(dyn.ListMode),
			EnsureTableTimeout: 2 * time.Minute,
		},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MOCKSTATE_*)
//  2. Configuration file
//  3. Default values
//
// An empty path looks for mockstate.{yaml,json,toml} in the working
// directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setupViper(v, path)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", store.ErrInvalidConfig, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setupViper registers every key with its default, so that environment
// variables are seen by Unmarshal even when no file mentions the key.
func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.key_prefix", d.Store.KeyPrefix)
	v.SetDefault("dynamodb.table_name", d.DynamoDB.TableName)
	v.SetDefault("dynamodb.region", "")
	v.SetDefault("dynamodb.profile", "")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("dynamodb.access_key_id", "")
	v.SetDefault("dynamodb.secret_access_key", "")
	v.SetDefault("dynamodb.list_mode", d.DynamoDB.ListMode)
	v.SetDefault("dynamodb.consistent_read", false)
	v.SetDefault("dynamodb.record_ttl", time.Duration(0))
	v.SetDefault("dynamodb.op_timeout", time.Duration(0))
	v.SetDefault("dynamodb.ensure_table", false)
	v.SetDefault("dynamodb.ensure_table_timeout", d.DynamoDB.EnsureTableTimeout)
	v.SetDefault("badger.dir", "")
	v.SetDefault("badger.in_memory", false)
	v.SetDefault("badger.sync_writes", false)
	v.SetDefault("metrics.enabled", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("mockstate")
	}
}

// readConfigFile reads the configuration file if there is one.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("%w: read config file: %w", store.ErrInvalidConfig, err)
	}
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.StringToTimeDurationHookFunc()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(backendRules, Config{})
	return v
}

// backendRules checks settings that only matter for the selected backend.
func backendRules(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if cfg.Store.Backend == BackendBadger && cfg.Badger.Dir == "" && !cfg.Badger.InMemory {
		sl.ReportError(cfg.Badger.Dir, "Badger.Dir", "Dir", "required_for_badger", "")
	}
}

// Validate checks cfg. Failures wrap store.ErrInvalidConfig.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidConfig, err)
	}
	return nil
}

// LoggerConfig returns the logging settings for internal/logging.
func (c LoggingConfig) LoggerConfig() logging.Config {
	format := logging.FormatText
	if c.Format == string(logging.FormatJSON) {
		format = logging.FormatJSON
	}
	return logging.Config{Level: logging.ParseLevel(c.Level), Format: format}
}

// StoreConfig returns the dynamo package configuration.
func (c DynamoDBConfig) StoreConfig() dynamo.Config {
	return dynamo.Config{
		TableName:      c.TableName,
		ListMode:       dynamo.ListMode(c.ListMode),
		ConsistentRead: c.ConsistentRead,
		RecordTTL:      c.RecordTTL,
		OpTimeout:      c.OpTimeout,
	}
}

// Options returns the badgerstore options.
func (c BadgerConfig) Options() badgerstore.Options {
	return badgerstore.Options{
		Dir:        c.Dir,
		InMemory:   c.InMemory,
		SyncWrites: c.SyncWrites,
	}
}
