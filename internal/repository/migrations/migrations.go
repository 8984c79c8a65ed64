package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed *.sql
var migrations embed.FS

type embedFSDriver struct {
	httpfs.PartialDriver
}

func init() {
	source.Register("embed", &embedFSDriver{})
}

func (d *embedFSDriver) Open(rawURL string) (source.Driver, error) {
	err := d.PartialDriver.Init(http.FS(migrations), ".")
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Migrate применяет встроенные миграции схемы магазина к PostgreSQL
// и пишет в лог версию, на которой оказалась база.
func Migrate(dsn string, log logrus.FieldLogger) error {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open DB: %w", err)
	}
	defer sqlDB.Close()

	d, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"embed://", "postgres", d)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	err = m.Up()
	applied := !errors.Is(err, migrate.ErrNoChange)
	if err != nil && applied {
		return fmt.Errorf("migrate: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
		"applied": applied,
	}).Info("storefront schema is up to date")

	return nil
}
