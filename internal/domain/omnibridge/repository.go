package omnibridge

import (
	"context"

	"github.com/google/uuid"
)

// SettingsRepository persists the per-tenant settings row
type SettingsRepository interface {
	// GetOrCreate returns the tenant's row, atomically inserting defaults
	// when none exists. created reports whether this call inserted it.
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, defaults *Settings) (settings *Settings, created bool, err error)
	// Update locks the tenant's row (inserting defaults first if needed),
	// passes it to mutate and writes the result, all in one transaction.
	Update(ctx context.Context, tenantID uuid.UUID, defaults *Settings, mutate func(*Settings) error) (*Settings, error)
	// Delete removes the row; a later GetOrCreate recreates defaults.
	Delete(ctx context.Context, tenantID uuid.UUID) error
}
