package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 7 characters")
	ErrPasswordTooWeak  = errors.New(`password must not contain "password"`)
)

// ValidatePassword enforces the signup/update password policy on the
// plaintext, before it is ever hashed.
func ValidatePassword(plain string) error {
	if len(plain) < 7 {
		return ErrPasswordTooShort
	}

	if strings.Contains(strings.ToLower(plain), "password") {
		return ErrPasswordTooWeak
	}

	return nil
}

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
