package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/VoidMesh/txlab/internal/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationReport describes one bootstrap run.
type MigrationReport struct {
	VersionBefore uint `json:"version_before"`
	VersionAfter  uint `json:"version_after"`
	Applied       bool `json:"applied"`
}

// MigrationStatus is the current position in the migration history.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// EmbeddedMigrations returns the schema scripts compiled into the binary.
func EmbeddedMigrations() (source.Driver, error) {
	return iofs.New(migrationFiles, "migrations")
}

// Migrator applies versioned scripts, each at most once, tracked in the
// schema_migrations table.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator builds a migrator from already opened source and database drivers.
func NewMigrator(src source.Driver, drv database.Driver, dbName string) (*Migrator, error) {
	m, err := migrate.NewWithInstance("iofs", src, dbName, drv)
	if err != nil {
		return nil, &MigrationError{Err: fmt.Errorf("failed to create migration instance: %w", err)}
	}
	return &Migrator{m: m}, nil
}

// NewPostgresMigrator opens a database/sql handle through pgx and wraps it in
// golang-migrate's pgx driver. An empty sourceURL selects the embedded scripts.
func NewPostgresMigrator(ctx context.Context, p *Provider, sourceURL string) (*Migrator, error) {
	connCfg, err := p.ConnConfig()
	if err != nil {
		return nil, err
	}

	sqlDB := stdlib.OpenDB(*connCfg)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, &ConnectionError{URL: redact(connCfg), Err: err}
	}

	logger := logging.GetLogger()
	logger.Debug("Creating migration driver")
	driver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, &MigrationError{Err: fmt.Errorf("failed to create migration driver: %w", err)}
	}

	if sourceURL != "" {
		logger.Debug("Creating migration instance", "source", sourceURL)
		m, err := migrate.NewWithDatabaseInstance(sourceURL, "pgx5", driver)
		if err != nil {
			driver.Close()
			return nil, &MigrationError{Err: fmt.Errorf("failed to create migration instance: %w", err)}
		}
		return &Migrator{m: m}, nil
	}

	logger.Debug("Creating migration instance", "source", "embedded")
	src, err := EmbeddedMigrations()
	if err != nil {
		driver.Close()
		return nil, &MigrationError{Err: fmt.Errorf("failed to open embedded migrations: %w", err)}
	}
	migrator, err := NewMigrator(src, driver, "pgx5")
	if err != nil {
		driver.Close()
		return nil, err
	}
	return migrator, nil
}

// Status returns the current version. A fresh database reports version 0.
func (mg *Migrator) Status() (MigrationStatus, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, &MigrationError{Err: fmt.Errorf("failed to read migration version: %w", err)}
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// Up applies every pending script in ascending order. A dirty history or a
// failing script is a *MigrationError and leaves the caller unable to start.
func (mg *Migrator) Up() (MigrationReport, error) {
	before, err := mg.Status()
	if err != nil {
		return MigrationReport{}, err
	}
	if before.Dirty {
		return MigrationReport{}, &MigrationError{Version: before.Version, Dirty: true, Err: migrate.ErrDirty{Version: int(before.Version)}}
	}

	report := MigrationReport{VersionBefore: before.Version, VersionAfter: before.Version}

	logger := logging.GetLogger()
	logger.Debug("Running database migrations", "version", before.Version)
	err = mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("No new migrations to apply")
		return report, nil
	}
	if err != nil {
		after, _ := mg.Status()
		return report, &MigrationError{Version: after.Version, Dirty: after.Dirty, Err: fmt.Errorf("failed to run migrations: %w", err)}
	}

	after, err := mg.Status()
	if err != nil {
		return report, err
	}
	report.VersionAfter = after.Version
	report.Applied = true
	logger.Info("Database migrations completed", "from", report.VersionBefore, "to", report.VersionAfter)
	return report, nil
}

// Close releases the source and database drivers.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Migrate runs the bootstrap against Postgres and closes the migrator.
func Migrate(ctx context.Context, p *Provider, sourceURL string) (MigrationReport, error) {
	migrator, err := NewPostgresMigrator(ctx, p, sourceURL)
	if err != nil {
		return MigrationReport{}, err
	}
	defer migrator.Close()

	return migrator.Up()
}
