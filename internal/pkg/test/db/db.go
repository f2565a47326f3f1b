// Package testdb starts throwaway Postgres containers and prepares schemas for
// integration tests.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:17-alpine"

type PostgresConfig struct {
	Image    string
	User     string
	Password string
	DB       string
}

type Postgres struct {
	Host string
	Port string
	DSN  string

	container testcontainers.Container
}

func StartPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	image := cfg.Image
	if image == "" {
		image = defaultImage
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     cfg.User,
				"POSTGRES_PASSWORD": cfg.Password,
				"POSTGRES_DB":       cfg.DB,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	pg := &Postgres{container: cont}
	if pg.Host, err = cont.Host(ctx); err != nil {
		_ = cont.Terminate(ctx)
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := cont.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = cont.Terminate(ctx)
		return nil, fmt.Errorf("get mapped port: %w", err)
	}
	pg.Port = port.Port()
	pg.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.User, cfg.Password, pg.Host, pg.Port, cfg.DB)

	return pg, nil
}

func (p *Postgres) Terminate(ctx context.Context) error {
	return p.container.Terminate(ctx)
}

// RunMigrations drops everything and re-applies the migrations found in dir of fsys,
// giving every test an empty schema.
func RunMigrations(t testing.TB, db *sql.DB, fsys fs.FS, dir string) {
	t.Helper()

	src, err := iofs.New(fsys, dir)
	require.NoError(t, err, "open migrations")

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	require.NoError(t, err, "postgres migrate driver")

	migrator, err := migrate.NewWithInstance("iofs", src, "test", driver)
	require.NoError(t, err, "create migrator")

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err, "drop existing schema")
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err, "apply migrations")
	}
}

// Row wraps a single row query for scanning one column in assertions.
type Row struct {
	t   testing.TB
	row *sql.Row
}

func Query(t testing.TB, db *sql.DB, query string, args ...any) *Row {
	t.Helper()

	row := db.QueryRowContext(context.Background(), query, args...)
	require.NoError(t, row.Err())

	return &Row{t: t, row: row}
}

func (r *Row) AsInt64() int64 {
	r.t.Helper()

	var v int64
	require.NoError(r.t, r.row.Scan(&v))
	return v
}

func (r *Row) AsString() string {
	r.t.Helper()

	var v string
	require.NoError(r.t, r.row.Scan(&v))
	return v
}

func (r *Row) AsNullString() sql.NullString {
	r.t.Helper()

	var v sql.NullString
	require.NoError(r.t, r.row.Scan(&v))
	return v
}
