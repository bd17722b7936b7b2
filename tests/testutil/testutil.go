// Package testutil holds fixtures shared by the HTTP and integration tests:
// tenants with their schema, verified identities and JSON requests.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"github.com/stretchr/testify/require"
)

// fixtureNamespace seeds the deterministic IDs of NewTestUUID
var fixtureNamespace = uuid.MustParse("9d3c1f0e-5a1b-4c7d-8e2f-6a4b3c2d1e0f")

// NewTestUUID derives a stable UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(fixtureNamespace, []byte(seed))
}

// Tenant is a tenant ID together with its schema
type Tenant struct {
	ID     uuid.UUID
	Schema tenant.Schema
	t      *testing.T
}

// NewTenant returns the fixture tenant derived from seed
func NewTenant(t *testing.T, seed string) Tenant {
	t.Helper()
	return TenantFor(t, NewTestUUID("tenant/"+seed))
}

// TenantFor wraps an existing tenant ID
func TenantFor(t *testing.T, id uuid.UUID) Tenant {
	t.Helper()
	schema, err := tenant.SchemaFor(id)
	require.NoError(t, err)
	return Tenant{ID: id, Schema: schema, t: t}
}

// Identity is a verified identity of an agent of the tenant. The token
// expires an hour from now.
func (f Tenant) Identity(roles ...string) *auth.Identity {
	return &auth.Identity{
		TenantID:  f.ID,
		UserID:    NewTestUUID("user/" + f.ID.String()),
		Roles:     roles,
		Schema:    f.Schema,
		TokenID:   uuid.NewString(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// Table returns the quoted schema-qualified name of one tenant table
func (f Tenant) Table(name string) string {
	return f.Schema.Quoted(name)
}

// TenantTable is Table for a bare tenant ID
func TenantTable(t *testing.T, tenantID uuid.UUID, table string) string {
	t.Helper()
	return TenantFor(t, tenantID).Table(table)
}

// NewJSONRequest builds a JSON request. An empty token sends no
// Authorization header; a nil body sends no body.
func NewJSONRequest(method, path, token string, body []byte) *http.Request {
	var r io.Reader = http.NoBody
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
