package storage

import (
	"context"

	locationapp "github.com/helpdesk/backend/internal/application/location"
)

// DisabledStorage is used when no bucket is configured. Location CRUD
// keeps working; every attachment operation reports that storage is
// unavailable.
type DisabledStorage struct{}

// NewDisabledStorage creates a DisabledStorage
func NewDisabledStorage() *DisabledStorage {
	return &DisabledStorage{}
}

// PresignUpload always fails with ErrStorageUnavailable
func (DisabledStorage) PresignUpload(context.Context, string, string, int64) (locationapp.PresignedURL, error) {
	return locationapp.PresignedURL{}, locationapp.ErrStorageUnavailable
}

// PresignDownload always fails with ErrStorageUnavailable
func (DisabledStorage) PresignDownload(context.Context, string) (locationapp.PresignedURL, error) {
	return locationapp.PresignedURL{}, locationapp.ErrStorageUnavailable
}

// Delete succeeds: nothing was ever stored
func (DisabledStorage) Delete(context.Context, string) error {
	return nil
}

var _ locationapp.ObjectStorage = DisabledStorage{}
