package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainCodesToHTTP(t *testing.T) {
	tests := []struct {
		domainCode string
		apiCode    string
		status     int
	}{
		{"NOT_FOUND", ErrCodeNotFound, http.StatusNotFound},
		{"ALREADY_EXISTS", ErrCodeAlreadyExists, http.StatusConflict},
		{"CONFLICT", ErrCodeConflict, http.StatusConflict},
		{"FORBIDDEN", ErrCodeForbidden, http.StatusForbidden},
		{"UNAUTHORIZED", ErrCodeUnauthorized, http.StatusUnauthorized},
		{"INVALID_STATE", ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{"ATTACHMENT_LIMIT_EXCEEDED", ErrCodeAttachmentLimit, http.StatusUnprocessableEntity},
		{"LOCATION_CYCLE", ErrCodeLocationCycle, http.StatusBadRequest},
		{"PARENT_NOT_FOUND", ErrCodeParentNotFound, http.StatusBadRequest},
		{"INVALID_GRAPH", ErrCodeInvalidGraph, http.StatusBadRequest},
		{"INVALID_COORDINATES", "ERR_INVALID_COORDINATES", http.StatusBadRequest},
		{"INVALID_SECRET", "ERR_INVALID_SECRET", http.StatusBadRequest},
		{"INVALID_SLUG", "ERR_INVALID_SLUG", http.StatusBadRequest},
		{"VALIDATION_ERROR", ErrCodeValidation, http.StatusBadRequest},
		{"STORAGE_UNAVAILABLE", ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"INTERNAL_ERROR", ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_NEW", "ERR_SOMETHING_NEW", http.StatusInternalServerError},
		{"", ErrCodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.domainCode, func(t *testing.T) {
			code := NormalizeErrorCode(tt.domainCode)
			assert.Equal(t, tt.apiCode, code)
			assert.Equal(t, tt.status, GetHTTPStatus(code))
		})
	}
}

func TestMiddlewareCodesToHTTP(t *testing.T) {
	for code, status := range map[string]int{
		ErrCodeTokenExpired:    http.StatusUnauthorized,
		ErrCodeTokenInvalid:    http.StatusUnauthorized,
		ErrCodeTenantInvalid:   http.StatusUnauthorized,
		ErrCodeInvalidJSON:     http.StatusBadRequest,
		ErrCodeBadRequest:      http.StatusBadRequest,
		ErrCodeRateLimited:     http.StatusTooManyRequests,
		ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	} {
		assert.Equal(t, status, GetHTTPStatus(code), code)
		assert.Equal(t, code, NormalizeErrorCode(code), "API codes pass through")
	}
}

func TestEnvelopeJSON(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		data, err := json.Marshal(NewErrorResponseWithRequestID("NOT_FOUND", "Location not found", "req-1"))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"success": false,
			"error": {"code": "ERR_NOT_FOUND", "message": "Location not found", "requestId": "req-1"}
		}`, string(data))
	})

	t.Run("validation", func(t *testing.T) {
		data, err := json.Marshal(NewValidationErrorResponse("Request validation failed", "req-2", []ValidationDetail{
			{Field: "coordinates.lat", Message: "Must be at least -90"},
		}))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"success": false,
			"error": {
				"code": "ERR_VALIDATION",
				"message": "Request validation failed",
				"requestId": "req-2",
				"details": [{"field": "coordinates.lat", "message": "Must be at least -90"}]
			}
		}`, string(data))
	})

	t.Run("page", func(t *testing.T) {
		page := shared.NewPaginated([]string{"Triage bot"}, 41, 2, 20)
		data, err := json.Marshal(NewPageResponse(page))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"success": true,
			"data": ["Triage bot"],
			"meta": {"total": 41, "page": 2, "pageSize": 20, "totalPages": 3}
		}`, string(data))
	})

	t.Run("empty page keeps an empty array", func(t *testing.T) {
		data, err := json.Marshal(NewPageResponse(shared.NewPaginated[string](nil, 0, 1, 20)))
		require.NoError(t, err)
		assert.JSONEq(t, `{"success": true, "data": [], "meta": {"total": 0, "page": 1, "pageSize": 20, "totalPages": 0}}`, string(data))
	})

	t.Run("message", func(t *testing.T) {
		data, err := json.Marshal(NewMessageResponse("Settings reset"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"success": true, "message": "Settings reset"}`, string(data))
	})
}
