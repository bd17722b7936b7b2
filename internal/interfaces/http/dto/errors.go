package dto

import (
	"net/http"
	"strings"
)

// API error codes. Domain errors are reported under their own code with
// the ERR_ prefix added; the codes below are the ones handlers and
// middleware emit directly or that need a non-default status.
const (
	ErrCodeUnknown            = "ERR_UNKNOWN"
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"

	ErrCodeUnauthorized  = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired  = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid  = "ERR_TOKEN_INVALID"
	ErrCodeTenantInvalid = "ERR_TENANT_INVALID"
	ErrCodeForbidden     = "ERR_FORBIDDEN"

	ErrCodeNotFound       = "ERR_NOT_FOUND"
	ErrCodeParentNotFound = "ERR_PARENT_NOT_FOUND"
	ErrCodeAlreadyExists  = "ERR_ALREADY_EXISTS"
	ErrCodeConflict       = "ERR_CONFLICT"

	// ErrCodeLocationCycle rejects a parent that is the location itself or
	// one of its descendants
	ErrCodeLocationCycle = "ERR_LOCATION_CYCLE"
	// ErrCodeInvalidGraph rejects a flow graph whose edges reference
	// unknown nodes
	ErrCodeInvalidGraph    = "ERR_INVALID_GRAPH"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
	ErrCodeAttachmentLimit = "ERR_ATTACHMENT_LIMIT_EXCEEDED"

	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// httpStatusByCode lists every code whose status is not derived from its
// prefix
var httpStatusByCode = map[string]int{
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeLocationCycle:      http.StatusBadRequest,
	ErrCodeParentNotFound:     http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeTokenExpired:       http.StatusUnauthorized,
	ErrCodeTokenInvalid:       http.StatusUnauthorized,
	ErrCodeTenantInvalid:      http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeAlreadyExists:      http.StatusConflict,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeRequestTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeAttachmentLimit:    http.StatusUnprocessableEntity,
	ErrCodeRateLimited:        http.StatusTooManyRequests,
}

// domainCodeAliases renames domain codes whose API name differs
var domainCodeAliases = map[string]string{
	"VALIDATION_ERROR":    ErrCodeValidation,
	"INTERNAL_ERROR":      ErrCodeInternal,
	"STORAGE_UNAVAILABLE": ErrCodeServiceUnavailable,
}

// GetHTTPStatus returns the status for an API error code. ERR_INVALID_*
// codes are rejected fields (400); unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "ERR_INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode maps a domain error code to its API code
func NormalizeErrorCode(code string) string {
	switch {
	case code == "":
		return ErrCodeUnknown
	case strings.HasPrefix(code, "ERR_"):
		return code
	}
	if alias, ok := domainCodeAliases[code]; ok {
		return alias
	}
	return "ERR_" + code
}
