package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
)

const validationFailed = "Request validation failed"

// enumTag is a binding tag accepting the values of a string enum
type enumTag struct {
	valid  validator.Func
	values string
}

func enumOf[T ~string](values []T) enumTag {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return enumTag{
		valid: func(fl validator.FieldLevel) bool {
			for _, v := range values {
				if T(fl.Field().String()) == v {
					return true
				}
			}
			return false
		},
		values: strings.Join(names, " "),
	}
}

var enumTags = map[string]enumTag{
	"location_type":   enumOf(location.LocationTypes),
	"chatbot_channel": enumOf(chatbot.Channels),
}

var setupOnce sync.Once

// SetupValidator names fields in errors after their json (or form) tag and
// registers the enum tags. Only the first call has an effect.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		for tag, enum := range enumTags {
			if err := v.RegisterValidation(tag, enum.valid); err != nil {
				panic(fmt.Sprintf("register %s validation: %v", tag, err))
			}
		}
	})
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		}
		return name
	}
	return ""
}

// HandleValidationError answers a failed bind or decode. Rule violations
// list every field; the other failures get a single code.
func HandleValidationError(c *gin.Context, err error) {
	requestID := GetRequestID(c)
	fail := func(status int, code, message string) {
		c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, requestID))
	}

	var (
		fieldErrs validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		tooLarge  *http.MaxBytesError
		domainErr *shared.DomainError
	)
	switch {
	case errors.As(err, &fieldErrs):
		details := make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: getValidationMessage(fe)})
		}
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(validationFailed, requestID, details))
	case errors.As(err, &tooLarge):
		fail(http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
	case errors.As(err, &domainErr):
		// raised by custom UnmarshalJSON methods, e.g. secret actions
		code := dto.NormalizeErrorCode(domainErr.Code)
		fail(dto.GetHTTPStatus(code), code, domainErr.Message)
	case errors.As(err, &typeErr):
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(validationFailed, requestID, []dto.ValidationDetail{
			{Field: typeErr.Field, Message: "Must be of type " + typeErr.Type.String()},
		}))
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		fail(http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
	default:
		fail(http.StatusBadRequest, dto.ErrCodeBadRequest, "Malformed request")
	}
}

// fixedMessages are the messages that do not depend on the field kind
var fixedMessages = map[string]string{
	"required":         "This field is required",
	"email":            "Invalid email format",
	"uuid":             "Invalid UUID format",
	"url":              "Invalid URL format",
	"hostname":         "Invalid hostname",
	"hostname_rfc1123": "Invalid hostname",
	"numeric":          "Must be numeric",
	"latitude":         "Must be a latitude between -90 and 90",
	"longitude":        "Must be a longitude between -180 and 180",
}

// comparisons maps ordering tags to the phrase put before the parameter
var comparisons = map[string]string{
	"gte": "greater than or equal to",
	"lte": "less than or equal to",
	"gt":  "greater than",
	"lt":  "less than",
}

// getValidationMessage turns a rule violation into a sentence for the
// client. Length rules read differently for strings and lists.
func getValidationMessage(fe validator.FieldError) string {
	tag, param := fe.Tag(), fe.Param()
	if msg, ok := fixedMessages[tag]; ok {
		return msg
	}
	if phrase, ok := comparisons[tag]; ok {
		return "Must be " + phrase + " " + param
	}
	if enum, ok := enumTags[tag]; ok {
		return "Must be one of: " + enum.values
	}

	bound := map[string]string{"min": "at least", "max": "at most"}[tag]
	switch {
	case tag == "oneof":
		return "Must be one of: " + param
	case tag == "len":
		return "Must be exactly " + param + " characters"
	case bound == "":
		return "Invalid value"
	case fe.Kind() == reflect.String:
		return "Must be " + bound + " " + param + " characters"
	case fe.Kind() == reflect.Slice:
		return "Must contain " + bound + " " + param + " items"
	}
	return "Must be " + bound + " " + param
}
