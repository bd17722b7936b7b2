package persistence

import "strings"

// sortable is the set of columns a list query may order by
type sortable map[string]struct{}

// sortableColumns returns a sort set holding the identity and timestamp
// columns every helpdesk table carries plus the given columns
func sortableColumns(columns ...string) sortable {
	s := sortable{"id": {}, "created_at": {}, "updated_at": {}}
	for _, c := range columns {
		s[c] = struct{}{}
	}
	return s
}

// column resolves a client supplied sort key (camelCase or snake_case).
// Unknown keys fall back so raw input never reaches ORDER BY.
func (s sortable) column(key, fallback string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	if c := columnName(key); s.has(c) {
		return c
	}
	return fallback
}

func (s sortable) has(column string) bool {
	_, ok := s[column]
	return ok
}

// sortDirection accepts asc in any case; everything else sorts newest first
func sortDirection(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}

var (
	tenantSortColumns         = sortableColumns("name", "slug", "status")
	locationSortColumns       = sortableColumns("name", "location_type", "status", "is_favorite")
	ticketTemplateSortColumns = sortableColumns("name", "category", "usage_count", "last_used_at", "is_active")
	chatbotSortColumns        = sortableColumns("name", "channel", "is_enabled")
)
