package crypto

import (
	"bytes"
	"testing"

	"github.com/helpdesk/backend/internal/domain/omnibridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) [32]byte {
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{b}, 32))
	return key
}

func TestSecretBoxSealer_RoundTrip(t *testing.T) {
	sealer := NewSecretBoxSealer(testKey(7))

	sealed, err := sealer.Seal("imap-password-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "imap-password-123")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "imap-password-123", opened)
}

func TestSecretBoxSealer_FreshNonce(t *testing.T) {
	sealer := NewSecretBoxSealer(testKey(7))

	a, err := sealer.Seal("same")
	require.NoError(t, err)
	b, err := sealer.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSecretBoxSealer_Open(t *testing.T) {
	sealed, err := NewSecretBoxSealer(testKey(1)).Seal("token")
	require.NoError(t, err)

	tests := []struct {
		name       string
		sealer     *SecretBoxSealer
		ciphertext string
	}{
		{"wrong key", NewSecretBoxSealer(testKey(2)), sealed},
		{"not base64", NewSecretBoxSealer(testKey(1)), "%%%"},
		{"too short", NewSecretBoxSealer(testKey(1)), "AAAA"},
		{"tampered", NewSecretBoxSealer(testKey(1)), sealed[:len(sealed)-4] + "AAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sealer.Open(tt.ciphertext)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}
}

func TestSecretBoxSealer_WithSecretUpdate(t *testing.T) {
	sealer := NewSecretBoxSealer(testKey(9))

	secret, err := omnibridge.ApplySecret(omnibridge.Secret{}, omnibridge.Replace{Value: "123456:ABCDEF-bot-token"}, sealer)
	require.NoError(t, err)
	assert.True(t, secret.Configured())
	assert.Equal(t, "••••oken", secret.Masked())

	plain, err := sealer.Open(secret.Ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "123456:ABCDEF-bot-token", plain)
}

var _ omnibridge.Sealer = (*SecretBoxSealer)(nil)
