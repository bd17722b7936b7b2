package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTenantID = uuid.MustParse("3f2a8c1e-4b7d-4e2f-9a1c-5d6e7f8a9b0c")
	otherTenant  = uuid.MustParse("9b1d2c3e-0000-4aaa-8bbb-1234567890ab")
)

const (
	testSchemaSQL  = `"tenant_3f2a8c1e_4b7d_4e2f_9a1c_5d6e7f8a9b0c"`
	otherSchemaSQL = `"tenant_9b1d2c3e_0000_4aaa_8bbb_1234567890ab"`
	locationsSQL   = testSchemaSQL + `\."locations"`
)

var locationColumns = []string{
	"id", "tenant_id", "created_by", "name", "description", "location_type", "geometry_type",
	"coordinates", "status", "tags", "is_favorite", "parent_id", "attachments", "address",
	"created_at", "updated_at",
}

func newMockLocationRepository(t *testing.T) (*GormLocationRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormLocationRepository(gormDB), mock, mockDB
}

func addLocationRow(rows *sqlmock.Rows, id, tenantID uuid.UUID, name string, parentID *uuid.UUID) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var parent interface{}
	if parentID != nil {
		parent = parentID.String()
	}
	return rows.AddRow(
		id.String(), tenantID.String(), nil, name, "", "point", "Point",
		[]byte(`{"lat":-23.5,"lng":-46.6}`), "active", []byte(`["north"]`), false, parent,
		[]byte(`{}`), "", now, now,
	)
}

func TestGormLocationRepository_FindByIDForTenant(t *testing.T) {
	t.Run("queries the tenant schema with the tenant predicate", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM `+locationsSQL+` WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT \$3`).
			WithArgs(testTenantID, id, 1).
			WillReturnRows(addLocationRow(sqlmock.NewRows(locationColumns), id, testTenantID, "Dock 4", nil))

		loc, err := repo.FindByIDForTenant(context.Background(), testTenantID, id)

		require.NoError(t, err)
		assert.Equal(t, id, loc.ID)
		assert.Equal(t, "Dock 4", loc.Name)
		assert.Equal(t, []string{"north"}, loc.Tags)
		assert.JSONEq(t, `{"lat":-23.5,"lng":-46.6}`, string(loc.Coordinates))
		assert.NotNil(t, loc.Attachments)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row of another tenant is not found", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM `+otherSchemaSQL+`\."locations" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(otherTenant, id, 1).
			WillReturnRows(sqlmock.NewRows(locationColumns))

		loc, err := repo.FindByIDForTenant(context.Background(), otherTenant, id)

		assert.Nil(t, loc)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil tenant fails before any SQL", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		_, err := repo.FindByIDForTenant(context.Background(), uuid.Nil, uuid.New())

		assert.ErrorIs(t, err, tenant.ErrTenantIDRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLocationRepository_FindAllForTenant(t *testing.T) {
	t.Run("appends filters as AND clauses and paginates", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		filter := shared.Filter{
			Page:     2,
			PageSize: 10,
			Search:   "dock",
			OrderBy:  "name",
			OrderDir: "asc",
			Filters:  map[string]interface{}{"status": "active", "ignored": "x"},
		}

		mock.ExpectQuery(`SELECT \* FROM `+locationsSQL+` WHERE tenant_id = \$1 AND \(+name ILIKE \$2 OR description ILIKE \$3 OR address ILIKE \$4\)+ AND status = \$5 ORDER BY name ASC,\s*id ASC LIMIT \$6 OFFSET \$7`).
			WithArgs(testTenantID, "%dock%", "%dock%", "%dock%", "active", 10, 10).
			WillReturnRows(addLocationRow(sqlmock.NewRows(locationColumns), uuid.New(), testTenantID, "Dock 4", nil))

		locations, err := repo.FindAllForTenant(context.Background(), testTenantID, filter)

		require.NoError(t, err)
		assert.Len(t, locations, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tag filter uses jsonb containment", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		filter := shared.DefaultFilter().With("tag", " North ")

		mock.ExpectQuery(`SELECT \* FROM `+locationsSQL+` WHERE tenant_id = \$1 AND tags @> \$2::jsonb ORDER BY created_at DESC`).
			WithArgs(testTenantID, `["north"]`, 20).
			WillReturnRows(sqlmock.NewRows(locationColumns))

		locations, err := repo.FindAllForTenant(context.Background(), testTenantID, filter)

		require.NoError(t, err)
		assert.Empty(t, locations)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown sort column falls back to created_at", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		filter := shared.Filter{OrderBy: "coordinates; DROP TABLE x", OrderDir: "sideways"}

		mock.ExpectQuery(`ORDER BY created_at DESC,\s*id DESC LIMIT \$2`).
			WithArgs(testTenantID, shared.DefaultPageSize).
			WillReturnRows(sqlmock.NewRows(locationColumns))

		_, err := repo.FindAllForTenant(context.Background(), testTenantID, filter)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLocationRepository_CountForTenant(t *testing.T) {
	repo, mock, mockDB := newMockLocationRepository(t)
	defer mockDB.Close()

	filter := shared.Filter{Page: 3, PageSize: 5, Filters: map[string]interface{}{"is_favorite": true}}

	mock.ExpectQuery(`SELECT count\(\*\) FROM `+locationsSQL+` WHERE tenant_id = \$1 AND is_favorite = \$2$`).
		WithArgs(testTenantID, true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountForTenant(context.Background(), testTenantID, filter)

	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLocationRepository_Create(t *testing.T) {
	repo, mock, mockDB := newMockLocationRepository(t)
	defer mockDB.Close()

	loc, err := location.NewLocation(testTenantID, nil, "Dock 4", location.LocationTypePoint,
		json.RawMessage(`{"lat":-23.5,"lng":-46.6}`))
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO ` + locationsSQL).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), loc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectHierarchyCheck expects the statements a parent change runs before
// its UPDATE: the tenant hierarchy lock, the parent lookup and the cycle walk.
func expectHierarchyCheck(mock sqlmock.Sqlmock, id, parent uuid.UUID, parents int, cycle bool) {
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("tenant_3f2a8c1e_4b7d_4e2f_9a1c_5d6e7f8a9b0c.locations.parent_id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM `+locationsSQL+` WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs(testTenantID, parent).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(parents))
	mock.ExpectQuery(`WITH RECURSIVE chain AS`).
		WithArgs(testTenantID, parent, testTenantID, id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(cycle))
}

func TestGormLocationRepository_Update(t *testing.T) {
	t.Run("empty patch reads the row without writing", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM `+locationsSQL).
			WithArgs(testTenantID, id, 1).
			WillReturnRows(addLocationRow(sqlmock.NewRows(locationColumns), id, testTenantID, "Dock 4", nil))

		loc, err := repo.Update(context.Background(), testTenantID, id, shared.Patch{})

		require.NoError(t, err)
		assert.Equal(t, "Dock 4", loc.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("camelCase fields are written as snake_case columns", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		parent := uuid.New()
		patch := shared.Patch{"isFavorite": true, "parentId": &parent, "tags": []string{"a"}}

		mock.ExpectBegin()
		expectHierarchyCheck(mock, id, parent, 1, false)
		mock.ExpectQuery(`UPDATE `+locationsSQL+` SET "is_favorite"=\$1,"parent_id"=\$2,"tags"=\$3,"updated_at"=\$4 WHERE tenant_id = \$5 AND id = \$6 RETURNING \*`).
			WithArgs(true, &parent, sqlmock.AnyArg(), sqlmock.AnyArg(), testTenantID, id).
			WillReturnRows(addLocationRow(sqlmock.NewRows(locationColumns), id, testTenantID, "Dock 4", &parent))
		mock.ExpectCommit()

		loc, err := repo.Update(context.Background(), testTenantID, id, patch)

		require.NoError(t, err)
		require.NotNil(t, loc.ParentID)
		assert.Equal(t, parent, *loc.ParentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("parent that became a descendant is rejected before writing", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		id, parent := uuid.New(), uuid.New()

		mock.ExpectBegin()
		expectHierarchyCheck(mock, id, parent, 1, true)
		mock.ExpectRollback()

		_, err := repo.Update(context.Background(), testTenantID, id, shared.Patch{"parentId": parent})

		assert.ErrorIs(t, err, location.ErrLocationCycle)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("parent deleted meanwhile is not found", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		parent := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM ` + locationsSQL).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectRollback()

		_, err := repo.Update(context.Background(), testTenantID, uuid.New(), shared.Patch{"parentId": parent})

		assert.ErrorIs(t, err, location.ErrParentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clearing the parent skips the hierarchy lock", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectQuery(`UPDATE `+locationsSQL+` SET "parent_id"=\$1,"updated_at"=\$2`).
			WithArgs(nil, sqlmock.AnyArg(), testTenantID, id).
			WillReturnRows(addLocationRow(sqlmock.NewRows(locationColumns), id, testTenantID, "Dock 4", nil))

		loc, err := repo.Update(context.Background(), testTenantID, id, shared.Patch{"parentId": (*uuid.UUID)(nil)})

		require.NoError(t, err)
		assert.Nil(t, loc.ParentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`UPDATE ` + locationsSQL).
			WillReturnRows(sqlmock.NewRows(locationColumns))

		_, err := repo.Update(context.Background(), testTenantID, uuid.New(), shared.Patch{"name": "x"})

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fields outside the allow-list are rejected", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		_, err := repo.Update(context.Background(), testTenantID, uuid.New(), shared.Patch{"tenantId": uuid.New()})

		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormLocationRepository_DeleteForTenant(t *testing.T) {
	t.Run("deletes the row", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		mock.ExpectExec(`DELETE FROM `+locationsSQL+` WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(testTenantID, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DeleteForTenant(context.Background(), testTenantID, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing deleted is not found", func(t *testing.T) {
		repo, mock, mockDB := newMockLocationRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`DELETE FROM ` + locationsSQL).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteForTenant(context.Background(), testTenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormLocationRepository_IsAncestorOrSelf(t *testing.T) {
	for _, found := range []bool{true, false} {
		repo, mock, mockDB := newMockLocationRepository(t)

		id, candidate := uuid.New(), uuid.New()
		mock.ExpectQuery(`WITH RECURSIVE chain AS \(\s*SELECT id, parent_id FROM `+locationsSQL+` WHERE tenant_id = \$1 AND id = \$2\s*UNION\s*SELECT l\.id, l\.parent_id FROM `+locationsSQL+` l JOIN chain c ON l\.id = c\.parent_id WHERE l\.tenant_id = \$3\s*\)\s*SELECT EXISTS \(SELECT 1 FROM chain WHERE id = \$4\)`).
			WithArgs(testTenantID, id, testTenantID, candidate).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(found))

		got, err := repo.IsAncestorOrSelf(context.Background(), testTenantID, id, candidate)

		require.NoError(t, err)
		assert.Equal(t, found, got)
		assert.NoError(t, mock.ExpectationsWereMet())
		mockDB.Close()
	}
}

func TestGormLocationRepository_FindAncestors(t *testing.T) {
	repo, mock, mockDB := newMockLocationRepository(t)
	defer mockDB.Close()

	id, parent, root := uuid.New(), uuid.New(), uuid.New()
	rows := sqlmock.NewRows(locationColumns)
	addLocationRow(rows, root, testTenantID, "Campus", nil)
	addLocationRow(rows, parent, testTenantID, "Building", &root)

	mock.ExpectQuery(`(?s)WITH RECURSIVE chain AS .* UNION ALL .* ORDER BY c\.depth DESC`).
		WithArgs(testTenantID, id, testTenantID, maxHierarchyDepth, testTenantID).
		WillReturnRows(rows)

	ancestors, err := repo.FindAncestors(context.Background(), testTenantID, id)

	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "Campus", ancestors[0].Name)
	assert.Equal(t, "Building", ancestors[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLocationRepository_FindChildren(t *testing.T) {
	repo, mock, mockDB := newMockLocationRepository(t)
	defer mockDB.Close()

	parent := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM `+locationsSQL+` WHERE tenant_id = \$1 AND parent_id = \$2 ORDER BY name ASC`).
		WithArgs(testTenantID, parent).
		WillReturnRows(addLocationRow(sqlmock.NewRows(locationColumns), uuid.New(), testTenantID, "Gate", &parent))

	children, err := repo.FindChildren(context.Background(), testTenantID, parent)

	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLocationRepository_Stats(t *testing.T) {
	repo, mock, mockDB := newMockLocationRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT location_type, status, is_favorite, COUNT\(\*\) AS count FROM ` + locationsSQL + ` WHERE tenant_id = \$1 GROUP BY location_type, status, is_favorite`).
		WithArgs(testTenantID).
		WillReturnRows(sqlmock.NewRows([]string{"location_type", "status", "is_favorite", "count"}).
			AddRow("point", "active", true, 2).
			AddRow("point", "archived", false, 1).
			AddRow("area", "active", false, 4))

	stats, err := repo.Stats(context.Background(), testTenantID)

	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Total)
	assert.Equal(t, int64(2), stats.Favorites)
	assert.Equal(t, int64(3), stats.ByType[location.LocationTypePoint])
	assert.Equal(t, int64(6), stats.ByStatus[location.LocationStatusActive])
	assert.NoError(t, mock.ExpectationsWereMet())
}
