package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantsSQL = `"public"\."tenants"`

func tenantRows(entries ...*identity.Tenant) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "name", "slug", "status"})
	for _, t := range entries {
		rows.AddRow(t.ID.String(), t.CreatedAt, t.UpdatedAt, t.Name, t.Slug, string(t.Status))
	}
	return rows
}

func registeredTenant(t *testing.T, slug string) *identity.Tenant {
	t.Helper()
	tn, err := identity.NewTenant("Acme Support", slug)
	require.NoError(t, err)
	tn.ID = testTenantID
	tn.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tn.UpdatedAt = tn.CreatedAt
	return tn
}

func TestGormTenantRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM `+tenantsSQL+` WHERE id = \$1`).
			WithArgs(testTenantID, 1).
			WillReturnRows(tenantRows(registeredTenant(t, "acme")))

		got, err := NewGormTenantRepository(gormDB).Get(ctx, testTenantID)
		require.NoError(t, err)
		assert.Equal(t, "acme", got.Slug)
		assert.True(t, got.IsActive())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("by slug ignores case", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM `+tenantsSQL+` WHERE slug = \$1`).
			WithArgs("acme", 1).
			WillReturnRows(tenantRows(registeredTenant(t, "acme")))

		got, err := NewGormTenantRepository(gormDB).GetBySlug(ctx, "ACME")
		require.NoError(t, err)
		assert.Equal(t, testTenantID, got.ID)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM ` + tenantsSQL).WillReturnRows(tenantRows())

		_, err := NewGormTenantRepository(gormDB).Get(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormTenantRepository_List(t *testing.T) {
	filter := shared.DefaultFilter().With("status", "active")
	filter.Search = "ac"
	filter.OrderBy = "slug"
	filter.OrderDir = "asc"

	t.Run("counts then pages", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		where := `WHERE \(+name ILIKE \$1 OR slug ILIKE \$2\)+ AND status = \$3`
		mock.ExpectQuery(`SELECT count\(\*\) FROM `+tenantsSQL+` `+where).
			WithArgs("%ac%", "%ac%", "active").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
		mock.ExpectQuery(`SELECT \* FROM `+tenantsSQL+` `+where+` ORDER BY slug ASC,\s*id ASC LIMIT \$4`).
			WithArgs("%ac%", "%ac%", "active", 20).
			WillReturnRows(tenantRows(registeredTenant(t, "acme")))

		tenants, total, err := NewGormTenantRepository(gormDB).List(context.Background(), filter)
		require.NoError(t, err)
		assert.Equal(t, int64(21), total)
		require.Len(t, tenants, 1)
		assert.Equal(t, "acme", tenants[0].Slug)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty registry skips the page query", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM ` + tenantsSQL).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		tenants, total, err := NewGormTenantRepository(gormDB).List(context.Background(), filter)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.NotNil(t, tenants)
		assert.Empty(t, tenants)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTenantRepository_SlugInUse(t *testing.T) {
	gormDB, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM ` + tenantsSQL + ` WHERE slug = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	inUse, err := NewGormTenantRepository(gormDB).SlugInUse(context.Background(), "Acme")
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestGormTenantRepository_Create(t *testing.T) {
	t.Run("inserts the registry row", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO ` + tenantsSQL).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewGormTenantRepository(gormDB).Create(context.Background(), registeredTenant(t, "acme")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation means the slug is taken", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO ` + tenantsSQL).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_tenants_slug"})

		err := NewGormTenantRepository(gormDB).Create(context.Background(), registeredTenant(t, "acme"))
		assert.ErrorIs(t, err, identity.ErrSlugTaken)
	})
}

func TestGormTenantRepository_UpdateStatus(t *testing.T) {
	tn := registeredTenant(t, "acme")
	require.NoError(t, tn.Suspend())

	t.Run("writes status and timestamp", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE `+tenantsSQL+` SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3`).
			WithArgs("suspended", sqlmock.AnyArg(), testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewGormTenantRepository(gormDB).UpdateStatus(context.Background(), tn))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE ` + tenantsSQL).WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewGormTenantRepository(gormDB).UpdateStatus(context.Background(), tn)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
