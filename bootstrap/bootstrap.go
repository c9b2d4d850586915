// Package bootstrap assembles a store.Factory and its collaborators from a
// config.Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacentio/mockstate/config"
	"github.com/jacentio/mockstate/internal/logging"
	"github.com/jacentio/mockstate/scope"
	"github.com/jacentio/mockstate/store"
	"github.com/jacentio/mockstate/store/badgerstore"
	"github.com/jacentio/mockstate/store/dynamo"
	"github.com/jacentio/mockstate/store/instrument"
	"github.com/jacentio/mockstate/stream"
)

// Runtime holds everything built from a configuration.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Factory *store.Factory

	// Metrics is nil unless metrics are enabled.
	Metrics *instrument.Metrics

	closers []func() error
}

type options struct {
	logOutput  io.Writer
	registerer prometheus.Registerer
}

// Option customizes New.
type Option func(*options)

// WithLogOutput sends logs to w instead of os.Stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithRegisterer registers metrics with reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New builds a Runtime. Configuration problems surface here, before any
// store is handed out.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	lc := cfg.Logging.LoggerConfig()
	lc.Output = o.logOutput
	logger := logging.New(lc)

	rt := &Runtime{Config: cfg, Logger: logger}

	build, err := rt.backend(ctx)
	if err != nil {
		return nil, errors.Join(err, rt.closeAll())
	}

	factoryOpts := []store.Option{
		store.WithKeyPrefix(cfg.Store.KeyPrefix),
		store.WithRequestScoped(scope.IsRequestScoped),
		store.WithLogger(logger.With("component", "store")),
	}
	if cfg.Metrics.Enabled {
		rt.Metrics = instrument.NewMetrics(o.registerer)
		factoryOpts = append(factoryOpts, store.WithWrapper(rt.Metrics.Wrapper()))
	}
	rt.Factory = store.NewFactory(build, factoryOpts...)

	logger.Info("store layer ready",
		"backend", cfg.Store.Backend,
		"keyPrefix", cfg.Store.KeyPrefix,
		"metrics", cfg.Metrics.Enabled,
	)
	return rt, nil
}

// backend returns the BuildFunc for the configured backend kind.
func (rt *Runtime) backend(ctx context.Context) (store.BuildFunc, error) {
	cfg := rt.Config
	switch cfg.Store.Backend {
	case config.BackendInMemory:
		return store.BuildMemory, nil

	case config.BackendDynamoDB:
		client, err := NewDynamoDBClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		storeCfg := cfg.DynamoDB.StoreConfig()
		if cfg.DynamoDB.EnsureTable {
			if err := dynamo.EnsureTable(ctx, client, storeCfg, cfg.DynamoDB.EnsureTableTimeout); err != nil {
				return nil, fmt.Errorf("ensure table: %w", err)
			}
		}
		return dynamo.Builder(client, storeCfg)

	case config.BackendBadger:
		bopts := cfg.Badger.Options()
		bopts.Logger = rt.Logger
		db, err := badgerstore.Open(bopts)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		return db.Builder(), nil

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", store.ErrInvalidConfig, cfg.Store.Backend)
	}
}

// NewDynamoDBClient creates a DynamoDB client from cfg. The client does not
// contact AWS until first used.
func NewDynamoDBClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// StreamHandler returns a stream handler feeding sink, stripping this
// runtime's key prefix from the records it decodes.
func (rt *Runtime) StreamHandler(sink stream.Sink) *stream.Handler {
	return stream.NewHandler(sink, rt.Config.Store.KeyPrefix, rt.Logger.With("component", "stream"))
}

// Close evicts every store and releases the backend.
func (rt *Runtime) Close() error {
	var err error
	if rt.Factory != nil {
		err = rt.Factory.Close()
	}
	return errors.Join(err, rt.closeAll())
}

func (rt *Runtime) closeAll() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
