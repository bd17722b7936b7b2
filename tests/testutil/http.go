package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helpdesk/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope is dto.Response with the payload kept raw
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Message string          `json:"message"`
	Meta    *dto.Meta       `json:"meta"`
}

// DecodeEnvelope parses a response body as the API envelope
func DecodeEnvelope(t *testing.T, body []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env
}

// DataAs decodes the envelope payload into T
func DataAs[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

// Serve runs req through h and decodes the envelope of the response
func Serve(t *testing.T, h http.Handler, req *http.Request) (int, Envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code, DecodeEnvelope(t, w.Body.Bytes())
}

// RequireErrorCode asserts env is a failure carrying code
func RequireErrorCode(t *testing.T, env Envelope, code string) {
	t.Helper()
	assert.False(t, env.Success)
	require.NotNil(t, env.Error, "response carries no error")
	assert.Equal(t, code, env.Error.Code)
}

// ToJSON marshals v for use as a request body
func ToJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
