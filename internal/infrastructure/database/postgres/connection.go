// Package postgres opens the PostgreSQL pool used by the molecule repository
// and applies the embedded schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

const applicationName = "molstruct"

// openDB turns a parsed pgx config into a database/sql pool.  Tests swap it
// for sqlmock.
var openDB = func(cc *pgx.ConnConfig) (*sql.DB, error) {
	return stdlib.OpenDB(*cc), nil
}

// PostgresConfig holds the database configuration.
type PostgresConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Database         string        `mapstructure:"database"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
}

// Connection owns the pool.
type Connection struct {
	db     *sql.DB
	logger logging.Logger
	once   sync.Once
}

// NewConnection parses cfg, opens the pool and pings within ConnectTimeout.
func NewConnection(cfg PostgresConfig, log logging.Logger) (*Connection, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	cc, err := connConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid postgres configuration")
	}
	db, err := openDB(cc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open database connection")
	}
	configurePool(db, cfg)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "database connection failed")
	}

	log.Info("connected to postgres",
		logging.String("host", cc.Host),
		logging.Int("port", int(cc.Port)),
		logging.String("database", cc.Database),
	)
	return &Connection{db: db, logger: log}, nil
}

// NewConnectionWithDB wraps an existing pool, typically a sqlmock in tests.
func NewConnectionWithDB(db *sql.DB, log logging.Logger) *Connection {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Connection{db: db, logger: log}
}

// DB returns the pool.
func (c *Connection) DB() *sql.DB { return c.db }

// HealthCheck pings the server and warns when the pool is nearly exhausted.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "database health check failed")
	}
	st := c.db.Stats()
	if st.MaxOpenConnections > 0 && st.InUse*5 >= st.MaxOpenConnections*4 {
		c.logger.Warn("postgres pool nearly exhausted",
			logging.Int("in_use", st.InUse),
			logging.Int("max_open", st.MaxOpenConnections),
			logging.Int64("wait_count", st.WaitCount),
		)
	}
	return nil
}

// InTx runs fn in a transaction, committing when it returns nil.
func (c *Connection) InTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Warn("rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// Close closes the pool once.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		if err = c.db.Close(); err != nil {
			c.logger.Error("failed to close postgres pool", logging.Err(err))
			return
		}
		c.logger.Info("postgres pool closed")
	})
	return err
}

func configurePool(db *sql.DB, cfg PostgresConfig) {
	db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 25))
	db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 10))
	db.SetConnMaxLifetime(orDefault(cfg.ConnMaxLifetime, 30*time.Minute))
	db.SetConnMaxIdleTime(orDefault(cfg.ConnMaxIdleTime, 5*time.Minute))
}

func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// connConfig parses the connection URL and sets the session parameters
// every pooled connection starts with.
func connConfig(cfg PostgresConfig) (*pgx.ConnConfig, error) {
	cc, err := pgx.ParseConfig(buildDSN(cfg))
	if err != nil {
		return nil, err
	}
	cc.RuntimeParams["application_name"] = applicationName
	cc.RuntimeParams["statement_timeout"] = millis(orDefault(cfg.StatementTimeout, 30*time.Second))
	cc.RuntimeParams["lock_timeout"] = millis(orDefault(cfg.LockTimeout, 10*time.Second))
	if cfg.ConnectTimeout > 0 {
		cc.ConnectTimeout = cfg.ConnectTimeout
	}
	return cc, nil
}

func millis(d time.Duration) string { return strconv.FormatInt(d.Milliseconds(), 10) }

// buildDSN renders the connection URL.  Session parameters are not part of
// it; connConfig sets them.
func buildDSN(cfg PostgresConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

//Personal.AI order the ending
