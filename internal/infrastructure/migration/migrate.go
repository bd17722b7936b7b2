// Package migration applies the embedded SQL migrations with
// golang-migrate. The public set builds the tenant registry; the tenant
// set is applied once per tenant schema, with its own bookkeeping table
// inside that schema.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

//go:embed sql/public/*.sql sql/tenant/*.sql
var embedded embed.FS

// Set is a directory of migrations applied to one kind of schema
type Set string

const (
	SetPublic Set = "public"
	SetTenant Set = "tenant"
)

// MigrationsTable is golang-migrate's bookkeeping table, one per schema
const MigrationsTable = "schema_migrations"

// Files returns the embedded files of the set
func (s Set) Files() (fs.FS, error) {
	if s != SetPublic && s != SetTenant {
		return nil, fmt.Errorf("unknown migration set %q", s)
	}
	return fs.Sub(embedded, "sql/"+string(s))
}

// Status is the bookkeeping state of a schema. Version 0 means no
// migration was applied.
type Status struct {
	Version uint
	Dirty   bool
}

// Migrator runs one set against one schema
type Migrator struct {
	m      *migrate.Migrate
	schema string
	log    *zap.Logger
}

// New returns a Migrator for the public schema
func New(db *sql.DB, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: MigrationsTable,
		SchemaName:      "public",
	})
	if err != nil {
		return nil, fmt.Errorf("postgres migrate driver: %w", err)
	}
	return open(SetPublic, driver, "public", log)
}

// NewForTenant returns a Migrator for the schema of tenantID, which must
// exist. The tenant set uses unqualified table names, so the migrator
// holds one connection with search_path pointing at the schema.
func NewForTenant(ctx context.Context, db *sql.DB, tenantID uuid.UUID, log *zap.Logger) (*Migrator, error) {
	schema, err := tenant.SchemaFor(tenantID)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for %s: %w", schema.Name(), err)
	}
	if _, err := conn.ExecContext(ctx, "SET search_path TO "+quoteIdent(schema.Name())+", public"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("point search_path at %s: %w", schema.Name(), err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{
		MigrationsTable: MigrationsTable,
		SchemaName:      schema.Name(),
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("postgres migrate driver: %w", err)
	}
	return open(SetTenant, driver, schema.Name(), log)
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func open(set Set, driver database.Driver, schema string, log *zap.Logger) (*Migrator, error) {
	m, err := func() (*migrate.Migrate, error) {
		files, err := set.Files()
		if err != nil {
			return nil, err
		}
		source, err := iofs.New(files, ".")
		if err != nil {
			return nil, fmt.Errorf("embedded %s migrations: %w", set, err)
		}
		return migrate.NewWithInstance("iofs", source, "postgres", driver)
	}()
	if err != nil {
		_ = driver.Close()
		return nil, err
	}
	return &Migrator{m: m, schema: schema, log: log.With(zap.String("schema", schema))}, nil
}

func (m *Migrator) Schema() string {
	return m.schema
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.run("up", m.m.Up)
}

// Down reverts every applied migration
func (m *Migrator) Down() error {
	return m.run("down", m.m.Down)
}

// Steps moves n migrations forward, or back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps %+d", n), func() error { return m.m.Steps(n) })
}

// Force records version as applied and clean without running anything.
// It repairs the bookkeeping after a failed migration was fixed by hand.
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force %s to version %d: %w", m.schema, version, err)
	}
	return nil
}

// Status reads the bookkeeping table
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return Status{}, nil
	case err != nil:
		return Status{}, fmt.Errorf("read version of %s: %w", m.schema, err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// run executes one golang-migrate operation. ErrNoChange is success.
func (m *Migrator) run(op string, fn func() error) error {
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.log.Info("Schema already current", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s %s: %w", m.schema, op, err)
	}

	status, err := m.Status()
	if err != nil {
		return err
	}
	m.log.Info("Migrated",
		zap.String("op", op),
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty),
	)
	return nil
}

// Close releases the source and the database connection
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.m.Close()
	return errors.Join(sourceErr, dbErr)
}
