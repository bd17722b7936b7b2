package omnibridge

import "unicode/utf8"

// maskPrefix is prepended to the visible tail of a configured secret
const maskPrefix = "••••"

// Sealer encrypts secrets for storage and decrypts them for use
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// Secret is a stored credential. Only the ciphertext and a display hint
// are persisted; the plaintext never leaves the service layer.
type Secret struct {
	Ciphertext string `json:"ciphertext,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

// Configured reports whether a value is stored
func (s Secret) Configured() bool {
	return s.Ciphertext != ""
}

// SecretUpdate is the write-side instruction for one secret field:
// either Unchanged or Replace.
type SecretUpdate interface {
	apply(current Secret, sealer Sealer) (Secret, error)
}

// Unchanged keeps the stored secret as is
type Unchanged struct{}

func (Unchanged) apply(current Secret, _ Sealer) (Secret, error) {
	return current, nil
}

// Replace stores a new value. An empty value clears the secret.
type Replace struct {
	Value string
}

func (r Replace) apply(_ Secret, sealer Sealer) (Secret, error) {
	if r.Value == "" {
		return Secret{}, nil
	}
	ciphertext, err := sealer.Seal(r.Value)
	if err != nil {
		return Secret{}, err
	}
	return Secret{Ciphertext: ciphertext, Hint: hintFor(r.Value)}, nil
}

// ApplySecret resolves an update against the stored secret.
// A nil update behaves as Unchanged.
func ApplySecret(current Secret, update SecretUpdate, sealer Sealer) (Secret, error) {
	if update == nil {
		return current, nil
	}
	return update.apply(current, sealer)
}

// hintFor keeps the last four characters of values long enough that
// revealing them leaks little.
func hintFor(value string) string {
	n := utf8.RuneCountInString(value)
	if n < 8 {
		return maskPrefix
	}
	runes := []rune(value)
	return maskPrefix + string(runes[n-4:])
}

// Masked returns the display hint of a stored secret, or "" when none is set
func (s Secret) Masked() string {
	if !s.Configured() {
		return ""
	}
	if s.Hint == "" {
		return maskPrefix
	}
	return s.Hint
}
