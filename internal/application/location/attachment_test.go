package location

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocationService_InitiateUpload(t *testing.T) {
	upload := PresignedURL{URL: "https://s3.local/put", Method: "PUT", ExpiresAt: time.Now().Add(time.Minute)}

	t.Run("presigns and records metadata", func(t *testing.T) {
		svc, repo, storage := newTestService(t)
		loc := newPoint(t, "HQ", 1, 2)
		keyPrefix := "tenants/" + testTenantID.String() + "/locations/" + loc.ID.String() + "/"

		repo.On("FindByIDForTenant", mock.Anything, testTenantID, loc.ID).Return(loc, nil)
		storage.On("PresignUpload", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, keyPrefix) && strings.HasSuffix(key, ".pdf")
		}), "application/pdf", int64(1024)).Return(upload, nil)
		repo.On("Update", mock.Anything, testTenantID, loc.ID, mock.MatchedBy(func(p shared.Patch) bool {
			attachments, ok := p["attachments"].(map[string]location.Attachment)
			if !ok || len(p) != 1 {
				return false
			}
			a := attachments["site-plan.PDF"]
			return a.Size == 1024 && a.ContentType == "application/pdf" && *a.UploadedBy == testUserID
		})).Return(loc, nil)

		resp, err := svc.InitiateUpload(context.Background(), testTenantID, &testUserID, loc.ID, InitiateUploadRequest{
			FileName:    "site-plan.PDF",
			ContentType: "Application/PDF",
			Size:        1024,
		})
		require.NoError(t, err)
		assert.Equal(t, upload, resp.Upload)
		assert.True(t, strings.HasPrefix(resp.StorageKey, keyPrefix))
	})

	t.Run("replacing a file removes the previous object", func(t *testing.T) {
		svc, repo, storage := newTestService(t)
		loc := newPoint(t, "HQ", 1, 2)
		loc.PutAttachment("plan.png", location.Attachment{StorageKey: "old-key"})

		repo.On("FindByIDForTenant", mock.Anything, testTenantID, loc.ID).Return(loc, nil)
		storage.On("PresignUpload", mock.Anything, mock.Anything, "image/png", int64(10)).Return(upload, nil)
		repo.On("Update", mock.Anything, testTenantID, loc.ID, mock.Anything).Return(loc, nil)
		storage.On("Delete", mock.Anything, "old-key").Return(nil)

		_, err := svc.InitiateUpload(context.Background(), testTenantID, nil, loc.ID, InitiateUploadRequest{
			FileName: "plan.png", ContentType: "image/png", Size: 10,
		})
		require.NoError(t, err)
	})

	t.Run("rejects svg", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.InitiateUpload(context.Background(), testTenantID, nil, uuid.New(), InitiateUploadRequest{
			FileName: "logo.svg", ContentType: "image/svg+xml", Size: 10,
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_CONTENT_TYPE", domainErr.Code)
	})

	t.Run("rejects path separators", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		for _, name := range []string{"../etc/passwd", `a\b.txt`, "..", "bad\x00.txt"} {
			_, err := svc.InitiateUpload(context.Background(), testTenantID, nil, uuid.New(), InitiateUploadRequest{
				FileName: name, ContentType: "text/plain", Size: 10,
			})
			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr, name)
			assert.Equal(t, "INVALID_FILE_NAME", domainErr.Code, name)
		}
	})

	t.Run("rejects oversized files", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		svc.SetAttachmentConfig(AttachmentConfig{MaxUploadSize: 100, MaxAttachmentsPerItem: 5})
		_, err := svc.InitiateUpload(context.Background(), testTenantID, nil, uuid.New(), InitiateUploadRequest{
			FileName: "a.txt", ContentType: "text/plain", Size: 101,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("enforces the attachment limit", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		svc.SetAttachmentConfig(AttachmentConfig{MaxUploadSize: 100, MaxAttachmentsPerItem: 1})
		loc := newPoint(t, "HQ", 1, 2)
		loc.PutAttachment("first.txt", location.Attachment{StorageKey: "k"})
		repo.On("FindByIDForTenant", mock.Anything, testTenantID, loc.ID).Return(loc, nil)

		_, err := svc.InitiateUpload(context.Background(), testTenantID, nil, loc.ID, InitiateUploadRequest{
			FileName: "second.txt", ContentType: "text/plain", Size: 1,
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ATTACHMENT_LIMIT_EXCEEDED", domainErr.Code)
	})

	t.Run("storage not configured", func(t *testing.T) {
		svc := NewLocationService(new(MockLocationRepository), nil, zap.NewNop())
		_, err := svc.InitiateUpload(context.Background(), testTenantID, nil, uuid.New(), InitiateUploadRequest{
			FileName: "a.txt", ContentType: "text/plain", Size: 1,
		})
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})

	t.Run("presign failure is internal", func(t *testing.T) {
		svc, repo, storage := newTestService(t)
		loc := newPoint(t, "HQ", 1, 2)
		repo.On("FindByIDForTenant", mock.Anything, testTenantID, loc.ID).Return(loc, nil)
		storage.On("PresignUpload", mock.Anything, mock.Anything, "text/plain", int64(1)).
			Return(PresignedURL{}, errors.New("signer exploded"))

		_, err := svc.InitiateUpload(context.Background(), testTenantID, nil, loc.ID, InitiateUploadRequest{
			FileName: "a.txt", ContentType: "text/plain", Size: 1,
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
	})
}

func TestLocationService_DownloadURL(t *testing.T) {
	svc, repo, storage := newTestService(t)
	loc := newPoint(t, "HQ", 1, 2)
	loc.PutAttachment("plan.pdf", location.Attachment{StorageKey: "key-1", ContentType: "application/pdf", Size: 9})
	repo.On("FindByIDForTenant", mock.Anything, testTenantID, loc.ID).Return(loc, nil)
	download := PresignedURL{URL: "https://s3.local/get", Method: "GET"}
	storage.On("PresignDownload", mock.Anything, "key-1").Return(download, nil)

	resp, err := svc.DownloadURL(context.Background(), testTenantID, loc.ID, "plan.pdf")
	require.NoError(t, err)
	assert.Equal(t, download, resp.Download)
	assert.Equal(t, int64(9), resp.Size)

	_, err = svc.DownloadURL(context.Background(), testTenantID, loc.ID, "missing.pdf")
	assert.ErrorIs(t, err, location.ErrAttachmentAbsent)
}

func TestLocationService_DeleteAttachment(t *testing.T) {
	svc, repo, storage := newTestService(t)
	loc := newPoint(t, "HQ", 1, 2)
	loc.PutAttachment("plan.pdf", location.Attachment{StorageKey: "key-1"})
	loc.PutAttachment("photo.png", location.Attachment{StorageKey: "key-2"})
	repo.On("FindByIDForTenant", mock.Anything, testTenantID, loc.ID).Return(loc, nil)
	storage.On("Delete", mock.Anything, "key-1").Return(nil)
	repo.On("Update", mock.Anything, testTenantID, loc.ID, mock.MatchedBy(func(p shared.Patch) bool {
		attachments := p["attachments"].(map[string]location.Attachment)
		_, stillThere := attachments["plan.pdf"]
		return len(attachments) == 1 && !stillThere
	})).Return(loc, nil)

	require.NoError(t, svc.DeleteAttachment(context.Background(), testTenantID, loc.ID, "plan.pdf"))
}
