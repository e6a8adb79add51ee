package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQL stores snapshots in a relational table. Both supported drivers accept
// the same statements, so only the migration driver differs.
type SQL struct {
	db     *sql.DB
	driver string
}

func NewSQL(driver, dsn string) (*SQL, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQL{db: db, driver: driver}, nil
}

func (s *SQL) RunMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch s.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT payload
		FROM snapshots
		WHERE snapshot_key = $1
	`

	var payload string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return []byte(payload), nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO snapshots (snapshot_key, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (snapshot_key)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE snapshot_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
