// Package secrets handles generation and verification of console client
// credentials. The simulator stores only bcrypt hashes; plaintext secrets
// exist once, at mint time.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "vigil/pkg/domain-errors"
)

// secretBytes is the entropy of a generated secret before encoding.
const secretBytes = 32

// Generate mints a random client secret, base64url-encoded. tokengen calls
// this when no secret is supplied on the command line.
func Generate() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "mint client secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash bcrypts a plaintext secret for storage. The hash goes in the
// simulator's environment; the plaintext goes in the console's.
func Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", dErrors.New(dErrors.CodeValidation, "client secret is empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	switch {
	case err == nil:
		return string(hashed), nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", dErrors.New(dErrors.CodeValidation, "client secret exceeds the bcrypt length limit")
	default:
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "hash client secret")
	}
}

// Verify compares a presented secret against a stored hash. A mismatch is
// CodeUnauthorized so the token endpoint can answer 401 without inspecting
// the message.
func Verify(plaintext, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return dErrors.New(dErrors.CodeUnauthorized, "client secret mismatch")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "verify client secret")
	}
}
