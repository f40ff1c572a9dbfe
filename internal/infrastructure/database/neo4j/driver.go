// Package neo4j stores molecules as property graphs: one Molecule node per
// stored molecule, one Atom node per atom and a BOND relationship per bond.
package neo4j

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

// Config holds the connection settings.
type Config struct {
	URI                          string        `mapstructure:"uri"`
	Username                     string        `mapstructure:"username"`
	Password                     string        `mapstructure:"password"`
	Database                     string        `mapstructure:"database"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size"`
	MaxConnectionLifetime        time.Duration `mapstructure:"max_connection_lifetime"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout"`
	ConnectTimeout               time.Duration `mapstructure:"connect_timeout"`
}

// Result is the subset of neo4j.ResultWithContext the store reads.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Transaction runs Cypher inside a managed transaction.
type Transaction interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

type session interface {
	ExecuteRead(ctx context.Context, work func(Transaction) (any, error)) (any, error)
	ExecuteWrite(ctx context.Context, work func(Transaction) (any, error)) (any, error)
	Close(ctx context.Context) error
}

type driverConn interface {
	VerifyConnectivity(ctx context.Context) error
	NewSession(ctx context.Context, config neo4j.SessionConfig) session
	Close(ctx context.Context) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Adapters over the official driver
// ─────────────────────────────────────────────────────────────────────────────

type txAdapter struct{ tx neo4j.ManagedTransaction }

func (t txAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return t.tx.Run(ctx, cypher, params)
}

type sessionAdapter struct{ s neo4j.SessionWithContext }

func (s sessionAdapter) ExecuteRead(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	return s.s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) { return work(txAdapter{tx}) })
}

func (s sessionAdapter) ExecuteWrite(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	return s.s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) { return work(txAdapter{tx}) })
}

func (s sessionAdapter) Close(ctx context.Context) error { return s.s.Close(ctx) }

type driverAdapter struct{ d neo4j.DriverWithContext }

func (d driverAdapter) VerifyConnectivity(ctx context.Context) error {
	return d.d.VerifyConnectivity(ctx)
}

func (d driverAdapter) NewSession(ctx context.Context, cfg neo4j.SessionConfig) session {
	return sessionAdapter{d.d.NewSession(ctx, cfg)}
}

func (d driverAdapter) Close(ctx context.Context) error { return d.d.Close(ctx) }

// ─────────────────────────────────────────────────────────────────────────────
// Driver
// ─────────────────────────────────────────────────────────────────────────────

// Driver runs read and write transactions against one database.
type Driver struct {
	conn     driverConn
	database string
	logger   logging.Logger
	once     sync.Once
}

// NewDriver connects and verifies connectivity within cfg.ConnectTimeout.
func NewDriver(ctx context.Context, cfg Config, log logging.Logger) (*Driver, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrCodeValidation, "neo4j uri is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	d, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 50
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		c.MaxConnectionLifetime = time.Hour
		if cfg.MaxConnectionLifetime > 0 {
			c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
		}
		c.ConnectionAcquisitionTimeout = time.Minute
		if cfg.ConnectionAcquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionAcquisitionTimeout
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create neo4j driver")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.VerifyConnectivity(vctx); err != nil {
		_ = d.Close(context.Background())
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to connect to neo4j")
	}

	log.Info("connected to neo4j", logging.String("uri", cfg.URI), logging.String("database", cfg.Database))
	return newDriver(driverAdapter{d}, cfg.Database, log), nil
}

func newDriver(conn driverConn, database string, log logging.Logger) *Driver {
	if database == "" {
		database = "neo4j"
	}
	return &Driver{conn: conn, database: database, logger: log}
}

func (d *Driver) session(ctx context.Context, mode neo4j.AccessMode) session {
	return d.conn.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database, AccessMode: mode})
}

// ExecuteRead runs work in a read transaction.
func (d *Driver) ExecuteRead(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	s := d.session(ctx, neo4j.AccessModeRead)
	defer s.Close(ctx)
	return s.ExecuteRead(ctx, work)
}

// ExecuteWrite runs work in a write transaction.
func (d *Driver) ExecuteWrite(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	s := d.session(ctx, neo4j.AccessModeWrite)
	defer s.Close(ctx)
	return s.ExecuteWrite(ctx, work)
}

// HealthCheck verifies connectivity and runs a trivial query.
func (d *Driver) HealthCheck(ctx context.Context) error {
	if err := d.conn.VerifyConnectivity(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "neo4j connectivity check failed")
	}
	_, err := d.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, "RETURN 1 AS ok", nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
		}
		return nil, res.Err()
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "neo4j health query failed")
	}
	return nil
}

// Close shuts the driver down once.
func (d *Driver) Close() error {
	var err error
	d.once.Do(func() {
		err = d.conn.Close(context.Background())
		if err != nil {
			d.logger.Warn("failed to close neo4j driver", logging.Err(err))
		}
	})
	return err
}

// collect maps every remaining record of res.
func collect[T any](ctx context.Context, res Result, mapper func(*neo4j.Record) (T, error)) ([]T, error) {
	var items []T
	for res.Next(ctx) {
		item, err := mapper(res.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

//Personal.AI order the ending
