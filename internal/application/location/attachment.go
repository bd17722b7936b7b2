package location

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AllowedContentTypes is the upload whitelist. SVG is excluded because it
// can carry script.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"text/plain":      true,
	"text/csv":        true,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,

	"application/geo+json":                 true,
	"application/vnd.google-earth.kml+xml": true,
}

// AttachmentConfig limits location attachments
type AttachmentConfig struct {
	MaxUploadSize         int64
	MaxAttachmentsPerItem int
}

// DefaultAttachmentConfig returns the default attachment limits
func DefaultAttachmentConfig() AttachmentConfig {
	return AttachmentConfig{
		MaxUploadSize:         25 << 20,
		MaxAttachmentsPerItem: 20,
	}
}

// InitiateUpload validates the file, records its metadata on the location
// and returns a presigned upload URL. Uploading a file under an existing
// name replaces the previous attachment.
func (s *LocationService) InitiateUpload(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, id uuid.UUID, req InitiateUploadRequest) (_ *InitiateUploadResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "location", "initiate_upload", tenantID, telemetry.LocationID(id))
	defer telemetry.EndSpan(span, &err)

	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	fileName, err := sanitizeFileName(req.FileName)
	if err != nil {
		return nil, err
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if !AllowedContentTypes[contentType] {
		return nil, shared.NewDomainError("INVALID_CONTENT_TYPE",
			fmt.Sprintf("Content type '%s' is not allowed", req.ContentType))
	}
	if req.Size <= 0 || req.Size > s.config.MaxUploadSize {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("File size must be between 1 and %d bytes", s.config.MaxUploadSize))
	}

	loc, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	previous, replacing := loc.Attachments[fileName]
	if !replacing && len(loc.Attachments) >= s.config.MaxAttachmentsPerItem {
		return nil, shared.NewDomainError("ATTACHMENT_LIMIT_EXCEEDED",
			fmt.Sprintf("Maximum %d attachments per location allowed", s.config.MaxAttachmentsPerItem))
	}

	key := storageKey(tenantID, id, fileName)
	upload, err := s.storage.PresignUpload(ctx, key, contentType, req.Size)
	if err != nil {
		return nil, s.translate(ctx, "Failed to generate upload URL", err)
	}

	loc.PutAttachment(fileName, location.Attachment{
		StorageKey:  key,
		ContentType: contentType,
		Size:        req.Size,
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  userID,
	})
	if _, err := s.repo.Update(ctx, tenantID, id, shared.Patch{"attachments": loc.Attachments}); err != nil {
		return nil, s.translate(ctx, "Failed to record attachment", err)
	}

	if replacing {
		s.deleteObject(ctx, id, fileName, previous.StorageKey)
	}
	s.businessMetrics.RecordAttachmentPresigned("upload")

	return &InitiateUploadResponse{
		FileName:   fileName,
		StorageKey: key,
		Upload:     upload,
	}, nil
}

// DownloadURL returns a presigned download URL for one attachment
func (s *LocationService) DownloadURL(ctx context.Context, tenantID, id uuid.UUID, fileName string) (*DownloadResponse, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	loc, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	a, ok := loc.Attachments[fileName]
	if !ok {
		return nil, location.ErrAttachmentAbsent
	}
	download, err := s.storage.PresignDownload(ctx, a.StorageKey)
	if err != nil {
		return nil, s.translate(ctx, "Failed to generate download URL", err)
	}
	s.businessMetrics.RecordAttachmentPresigned("download")

	return &DownloadResponse{
		FileName:    fileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		Download:    download,
	}, nil
}

// DeleteAttachment removes the stored object and its metadata entry
func (s *LocationService) DeleteAttachment(ctx context.Context, tenantID, id uuid.UUID, fileName string) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "location", "delete_attachment", tenantID, telemetry.LocationID(id))
	defer telemetry.EndSpan(span, &err)

	if s.storage == nil {
		return ErrStorageUnavailable
	}
	loc, err := s.find(ctx, tenantID, id)
	if err != nil {
		return err
	}
	a, ok := loc.RemoveAttachment(fileName)
	if !ok {
		return location.ErrAttachmentAbsent
	}
	if err := s.storage.Delete(ctx, a.StorageKey); err != nil {
		return s.translate(ctx, "Failed to delete attachment object", err)
	}
	if _, err := s.repo.Update(ctx, tenantID, id, shared.Patch{"attachments": loc.Attachments}); err != nil {
		return s.translate(ctx, "Failed to remove attachment", err)
	}
	return nil
}

func (s *LocationService) deleteObject(ctx context.Context, id uuid.UUID, fileName, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log(ctx).Warn("Failed to delete replaced attachment object",
			zap.String("location_id", id.String()),
			zap.String("file_name", fileName),
			zap.Error(err))
	}
}

// storageKey builds tenants/{tenant}/locations/{location}/{unique}{ext}.
// The unique part keeps a replaced file from being served from cache.
func storageKey(tenantID, locationID uuid.UUID, fileName string) string {
	return path.Join("tenants", tenantID.String(), "locations", locationID.String(),
		uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))
}

// sanitizeFileName rejects names that are empty, contain path separators
// or control characters
func sanitizeFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	invalid := shared.NewDomainError("INVALID_FILE_NAME", "File name must be a plain name without path separators")
	if name == "" || name == "." || name == ".." || len(name) > 255 {
		return "", invalid
	}
	if strings.ContainsAny(name, `/\`) {
		return "", invalid
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", invalid
		}
	}
	return name, nil
}
