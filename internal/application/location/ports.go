package location

import (
	"context"
	"time"

	"github.com/helpdesk/backend/internal/domain/shared"
)

// ErrStorageUnavailable is returned when no object storage is configured
var ErrStorageUnavailable = shared.NewDomainError("STORAGE_UNAVAILABLE", "Attachment storage is not configured")

// PresignedURL is a time-limited URL for a direct object transfer
type PresignedURL struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectStorage defines the object storage operations attachments need.
// It is implemented by the infrastructure layer (S3, MinIO).
type ObjectStorage interface {
	// PresignUpload returns a URL accepting a PUT of exactly size bytes
	PresignUpload(ctx context.Context, key, contentType string, size int64) (PresignedURL, error)
	PresignDownload(ctx context.Context, key string) (PresignedURL, error)
	// Delete removes the object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error
}
