package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/helpdesk/backend/internal/domain/shared"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// namer converts API field names to column names the same way GORM names
// struct fields.
var namer = schema.NamingStrategy{}

// columnName maps a camelCase API field (or an existing snake_case column)
// to its column name.
func columnName(field string) string {
	return namer.ColumnName("", field)
}

// listSpec describes how a list query of one entity honors shared.Filter
type listSpec struct {
	// searchColumns are matched with ILIKE '%term%' and ORed together
	searchColumns []string
	// filterColumns lists the filter keys applied as "column = ?"
	filterColumns map[string]bool
	sortColumns   sortable
	defaultSort   string
	// custom handles filter keys that need more than equality; it reports
	// whether it consumed the key.
	custom func(query *gorm.DB, key string, value interface{}) (*gorm.DB, bool)
}

// applyFilter applies search, equality filters, ordering and pagination
func (s listSpec) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	filter = filter.Normalize()
	query = s.applyFilterWithoutPagination(query, filter)

	orderBy := s.sortColumns.column(filter.OrderBy, s.defaultSort)
	orderDir := sortDirection(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)
	if orderBy != "id" {
		// Stable paging across equal sort keys
		query = query.Order("id " + orderDir)
	}

	return query.Offset(filter.Offset()).Limit(filter.PageSize)
}

// applyFilterWithoutPagination applies search and equality filters only,
// so the count query shares the list query's WHERE clause.
func (s listSpec) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" && len(s.searchColumns) > 0 {
		pattern := "%" + escapeLike(search) + "%"
		clauses := make([]string, len(s.searchColumns))
		args := make([]interface{}, len(s.searchColumns))
		for i, column := range s.searchColumns {
			clauses[i] = column + " ILIKE ?"
			args[i] = pattern
		}
		query = query.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}

	// Sorted keys keep the generated SQL stable
	keys := make([]string, 0, len(filter.Filters))
	for key := range filter.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filter.Filters[key]
		if value == nil {
			continue
		}
		if s.custom != nil {
			if q, ok := s.custom(query, key, value); ok {
				query = q
				continue
			}
		}
		if s.filterColumns[key] {
			query = query.Where(key+" = ?", value)
		}
	}
	return query
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// patchColumns converts a camelCase patch into a column map for Updates.
// Every field must map to an allow-listed column. updated_at is refreshed.
func patchColumns(patch shared.Patch, allowed map[string]bool) (map[string]interface{}, error) {
	updates := make(map[string]interface{}, len(patch)+1)
	for _, field := range patch.Fields() {
		column := columnName(field)
		if !allowed[column] {
			return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Field %q cannot be updated", field))
		}
		value, err := columnValue(patch[field])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", field, err)
		}
		updates[column] = value
	}
	updates["updated_at"] = time.Now().UTC()
	return updates, nil
}

// columnValue prepares a patch value for binding. Composite values become
// jsonb documents; nil pointers become SQL NULL.
func columnValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
	}
	switch val := v.(type) {
	case json.RawMessage:
		if len(val) == 0 {
			return datatypes.JSON(`null`), nil
		}
		return datatypes.JSON(val), nil
	case time.Time, *time.Time:
		return val, nil
	case driver.Valuer:
		return val, nil
	}

	switch reflect.Indirect(rv).Kind() {
	case reflect.Slice, reflect.Map, reflect.Struct:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(raw), nil
	}
	return v, nil
}
