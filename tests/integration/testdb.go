// Package integration runs the repositories, services and HTTP stack
// against PostgreSQL started with testcontainers.
package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/infrastructure/config"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/migration"
	"github.com/helpdesk/backend/internal/infrastructure/persistence"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormlogger "gorm.io/gorm/logger"
)

const postgresImage = "postgres:16-alpine"

// TestDB is a migrated public schema plus helpers to create tenants in it
type TestDB struct {
	*persistence.Database
	t *testing.T
}

// sharedPostgres is started by the first NewSharedTestDB call and
// terminated by TestMain
var sharedPostgres struct {
	once      sync.Once
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
	err       error
}

// NewTestDB starts a dedicated container for tests that count schemas or
// registry rows
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, cfg, err := startPostgres(ctx, "helpdesk_test")
	require.NoError(t, err, "start postgres")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	db := connect(t, cfg)
	migratePublic(t, db)
	return db
}

// NewSharedTestDB connects to the package wide container. Tests sharing it
// must only use tenants they created.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedPostgres.once.Do(func() {
		ctx := context.Background()
		sharedPostgres.container, sharedPostgres.cfg, sharedPostgres.err = startPostgres(ctx, "helpdesk_shared")
		if sharedPostgres.err != nil {
			return
		}
		db := connect(t, sharedPostgres.cfg)
		migratePublic(t, db)
	})
	require.NoError(t, sharedPostgres.err, "start shared postgres")
	return connect(t, sharedPostgres.cfg)
}

func startPostgres(ctx context.Context, dbName string) (*tcpostgres.PostgresContainer, config.DatabaseConfig, error) {
	cfg := config.DatabaseConfig{
		User:             "helpdesk",
		Password:         "helpdesk",
		DBName:           dbName,
		SSLMode:          "disable",
		MaxOpenConns:     10,
		MaxIdleConns:     2,
		ConnMaxLifetime:  5 * time.Minute,
		ApplicationName:  "helpdesk-integration",
		StatementTimeout: 30 * time.Second,
	}

	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase(cfg.DBName),
		tcpostgres.WithUsername(cfg.User),
		tcpostgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategyAndDeadline(time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		return nil, cfg, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, cfg, fmt.Errorf("resolve postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, cfg, fmt.Errorf("resolve postgres port: %w", err)
	}
	cfg.Host, cfg.Port = host, port.Int()
	return container, cfg, nil
}

// connect opens the database the way the server does. SQL is logged to the
// test output when HELPDESK_TEST_SQL is set.
func connect(t *testing.T, cfg config.DatabaseConfig) *TestDB {
	t.Helper()

	level := gormlogger.Warn
	if os.Getenv("HELPDESK_TEST_SQL") != "" {
		level = gormlogger.Info
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persistence.Open(ctx, &cfg,
		persistence.WithGormLogger(logger.NewGormLogger(zaptest.NewLogger(t), level)))
	require.NoError(t, err, "connect to postgres")
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{Database: db, t: t}
}

func migratePublic(t *testing.T, db *TestDB) {
	t.Helper()
	m, err := migration.New(db.SQL, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up(), "apply public migrations")
}

// Provisioner returns a schema provisioner bound to this database
func (db *TestDB) Provisioner() *migration.Provisioner {
	return migration.NewProvisioner(db.SQL, zap.NewNop())
}

// ProvisionTenant builds the schema of tenantID without registering it
func (db *TestDB) ProvisionTenant(tenantID uuid.UUID) {
	db.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(db.t, db.Provisioner().Provision(ctx, tenantID), "provision tenant schema")
}

// NewTenant registers an active tenant with a random ID and builds its
// schema
func (db *TestDB) NewTenant() uuid.UUID {
	db.t.Helper()

	id := uuid.New()
	tn, err := identity.NewTenant("Tenant "+id.String()[:8], "t-"+id.String()[:8])
	require.NoError(db.t, err)
	tn.ID = id
	require.NoError(db.t, persistence.NewGormTenantRepository(db.DB).Create(context.Background(), tn))

	db.ProvisionTenant(id)
	return id
}

// SchemaExists reports whether the schema of tenantID is present
func (db *TestDB) SchemaExists(tenantID uuid.UUID) bool {
	db.t.Helper()
	schema, err := tenant.SchemaFor(tenantID)
	require.NoError(db.t, err)

	var exists bool
	require.NoError(db.t, db.DB.Raw(
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = ?)`, schema.Name(),
	).Scan(&exists).Error)
	return exists
}

// CountRows counts the rows of one table of the tenant's schema
func (db *TestDB) CountRows(tenantID uuid.UUID, table string) int64 {
	db.t.Helper()
	schema, err := tenant.SchemaFor(tenantID)
	require.NoError(db.t, err)

	var n int64
	require.NoError(db.t, db.DB.Raw("SELECT COUNT(*) FROM "+schema.Quoted(table)).Scan(&n).Error)
	return n
}

// TenantSchemaCount counts the tenant schemas in the database
func (db *TestDB) TenantSchemaCount() int64 {
	db.t.Helper()
	var n int64
	require.NoError(db.t, db.DB.Raw(
		`SELECT COUNT(*) FROM information_schema.schemata WHERE starts_with(schema_name, ?)`, tenant.SchemaPrefix,
	).Scan(&n).Error)
	return n
}
