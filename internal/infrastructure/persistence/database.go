package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/feerecon/backend/internal/infrastructure/config"
	"github.com/feerecon/backend/internal/infrastructure/logger"
	"github.com/feerecon/backend/internal/infrastructure/migration"
	"github.com/feerecon/backend/internal/infrastructure/persistence/models"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the mirror store connection
type Database struct {
	DB     *gorm.DB
	driver string
	logger *zap.Logger
}

type dbOptions struct {
	logLevel gormlogger.LogLevel
	tracing  bool
}

// Option configures NewDatabase
type Option func(*dbOptions)

// WithLogLevel sets the GORM log level
func WithLogLevel(level gormlogger.LogLevel) Option {
	return func(o *dbOptions) { o.logLevel = level }
}

// WithTracing registers the otelgorm plugin so every query becomes a span
func WithTracing(enabled bool) Option {
	return func(o *dbOptions) { o.tracing = enabled }
}

// NewDatabase opens the mirror store for the configured driver
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger, opts ...Option) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := dbOptions{logLevel: gormlogger.Warn}
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite", "":
		path := cfg.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(log, o.logLevel, logger.DefaultSlowQuery),
		SkipDefaultTransaction: true,
		PrepareStmt:            cfg.Driver == "postgres",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if o.tracing {
		if err := db.Use(otelgorm.NewPlugin(
			otelgorm.WithDBName(cfg.DBName),
			otelgorm.WithoutQueryVariables(),
		)); err != nil {
			return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, driver: dialector.Name(), logger: log}, nil
}

// Driver returns the dialect name in use
func (d *Database) Driver() string {
	return d.driver
}

// Migrate brings the mirror schema up to date. Postgres runs the versioned
// SQL migrations; sqlite tables are created from the models.
func (d *Database) Migrate(ctx context.Context) error {
	if d.driver != "postgres" {
		if err := d.DB.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("failed to migrate mirror schema: %w", err)
		}
		return nil
	}

	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration connection: %w", err)
	}
	m, err := migration.NewWithConn(ctx, conn, d.logger)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			d.logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}
