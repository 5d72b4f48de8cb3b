// Package sqlstore implements the drilldown.QueryBuilder contract on top of
// database/sql with squirrel-built statements. Join paths become LEFT JOINs
// resolved in the base round trip; batch paths become one keyed query each.
package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"

	"github.com/relux-works/drilldown"
	"github.com/relux-works/drilldown/logger"
)

var tracer = otel.Tracer("drilldown/sqlstore")

// Config defines the configuration parameters for setting up and managing a
// sql connection.
type Config struct {
	Logger          logger.Logger
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// DatastoreOption defines a function type used for configuring a Config
// object.
type DatastoreOption func(*Config)

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the maximum number of
// open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the maximum number of
// idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets the maximum idle
// time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets the maximum
// lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// Datastore provides a SQL-backed implementation of the query engine.
type Datastore struct {
	db      *sql.DB
	stbl    sq.StatementBuilderType
	mapping Mapping
	logger  logger.Logger
	dollar  bool // postgres-style placeholders and ILIKE support
}

// New opens a SQL connection for the given driver ("pgx", "mysql") and URI
// and returns a datastore over it. The mapping must cover every entity that
// queries will traverse.
func New(driver, uri string, mapping Mapping, opts ...DatastoreOption) (*Datastore, error) {
	cfg := &Config{Logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open(driver, uri)
	if err != nil {
		return nil, fmt.Errorf("initialize %s connection: %w", driver, err)
	}
	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewWithDB(db, driver, mapping, cfg.Logger), nil
}

// NewWithDB wraps an existing database handle. Tests use it with a stub
// driver; New is the production path.
func NewWithDB(db *sql.DB, driver string, mapping Mapping, log logger.Logger) *Datastore {
	dollar := driver == "pgx" || driver == "postgres"
	stbl := sq.StatementBuilder
	if dollar {
		stbl = stbl.PlaceholderFormat(sq.Dollar)
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Datastore{
		db:      db,
		stbl:    stbl,
		mapping: mapping,
		logger:  log,
		dollar:  dollar,
	}
}

// Close closes the underlying database handle.
func (d *Datastore) Close() error {
	return d.db.Close()
}

// Query starts a query over the entity's table.
func (d *Datastore) Query(entity *drilldown.EntityType) drilldown.QueryBuilder {
	return newQuery(d, entity)
}
