package main

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/contact"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/identity"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/locks"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/cockroachdb/errors"
)

// dependencies owns every external handle of the process
type dependencies struct {
	cfg    *config.Config
	logger ectologger.Logger

	db       database.DB
	dbInfo   *database.ServerInfo
	redis    *redis.Client
	producer *kafka.Producer
}

// register adds the dependencies the config asks for to the startup graph
func (d *dependencies) register(s *startup.Startup) {
	if d.cfg.StoreDriver == config.StoreDriverPostgres {
		s.AddDependency(&startup.Dependency{
			Name:    "database",
			OnStart: d.startDatabase,
			OnStop: func(ctx context.Context) error {
				return d.db.Close()
			},
		})
		s.AddDependency(&startup.Dependency{
			Name:     "migrations",
			Requires: []string{"database"},
			OnStart:  d.runMigrations,
		})
	}

	if d.cfg.LockBackend == config.LockBackendRedis {
		s.AddDependency(&startup.Dependency{
			Name: "redis",
			OnStart: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     d.cfg.RedisHost,
					Port:     d.cfg.RedisPort,
					Password: d.cfg.RedisPassword,
					DB:       d.cfg.RedisDB,
				}, d.logger)
				if err != nil {
					return err
				}
				d.redis = client
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return d.redis.Close()
			},
		})
	}

	if d.cfg.KafkaEnabled {
		s.AddDependency(&startup.Dependency{
			Name: "kafka",
			OnStart: func(ctx context.Context) error {
				d.producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      d.cfg.KafkaBrokers,
					Topic:        d.cfg.KafkaOutputTopic,
					BatchSize:    d.cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(d.cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: d.cfg.KafkaRequiredAcks,
					Compression:  d.cfg.KafkaCompression,
				}, d.logger)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return d.producer.Close()
			},
		})
	}
}

func (d *dependencies) startDatabase(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, d.cfg.DatabaseConnectTimeout)
	defer cancel()

	db, err := database.Open(connectCtx, "postgres", d.cfg.DSN(), database.PoolConfig{
		MaxOpenConns:    d.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    d.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: d.cfg.DatabaseConnMaxLifetime,
		ConnMaxIdleTime: d.cfg.DatabaseConnMaxIdleTime,
	}, d.logger)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", database.MaskURL(d.cfg.DSN()))
	}

	info, err := database.Describe(connectCtx, db)
	if err != nil {
		_ = db.Close()
		return errors.Wrap(err, "failed to describe database")
	}

	d.db = db
	d.dbInfo = &info
	return nil
}

func (d *dependencies) runMigrations(ctx context.Context) error {
	ms := database.NewMigrationService(d.logger, &database.MigrationConfig{
		MigrationFolderPath: d.cfg.DatabaseMigrationFolderPath,
		Version:             d.cfg.DatabaseMigrationVersion,
		Force:               d.cfg.DatabaseMigrationForce,
		AutoRollback:        d.cfg.DatabaseMigrationAutoRollback,
	})
	return ms.MigratePostgres(d.dbInfo.Database, d.db)
}

// engine builds the contact store, identifier locker and event sink the
// config selects and returns the reconciliation engine over them.
func (d *dependencies) engine() (*identity.Engine, error) {
	var (
		store  identity.ContactStore
		locker identity.Locker
		sink   identity.EventSink
	)

	switch d.cfg.StoreDriver {
	case config.StoreDriverPostgres:
		repo := contact.NewRepository(d.db, d.logger).WithLockTimeout(d.cfg.LockWait)
		store = repo
		if d.cfg.LockBackend == config.LockBackendPostgres {
			locker = repo
		}
	case config.StoreDriverMemory:
		d.logger.Warn("Using the in-memory contact store; contacts are lost on restart")
		store = contact.NewMemoryRepository()
	default:
		return nil, errors.Newf("unsupported store driver %q", d.cfg.StoreDriver)
	}

	switch d.cfg.LockBackend {
	case config.LockBackendRedis:
		locker = locks.NewRedis(redis.NewLocker(d.redis, d.cfg.RedisKeyPrefix), d.cfg.LockTTL, d.cfg.LockWait, d.logger)
	case config.LockBackendLocal:
		locker = locks.NewKeyed()
	}

	if d.producer != nil {
		sink = events.NewEmitter(d.producer, d.logger)
	}

	return identity.NewEngine(store, d.logger, identity.Options{
		MaxRetries:   d.cfg.ReconcileMaxRetries,
		RetryBackoff: d.cfg.ReconcileRetryBackoff,
		Locker:       locker,
		Events:       sink,
	}), nil
}

// healthChecks lists what /health/ready pings
func (d *dependencies) healthChecks() map[string]health.Pinger {
	checks := map[string]health.Pinger{}
	if d.db != nil {
		checks["database"] = d.db
	}
	if d.redis != nil {
		checks["redis"] = health.PingFunc(d.redis.Ping)
	}
	return checks
}
