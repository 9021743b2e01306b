package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizeEmail applies the canonical form used everywhere an email is
// stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewFromCreateRequest builds a persistable User. The caller hashes the
// password first; plaintext never reaches this constructor.
func NewFromCreateRequest(req CreateUserRequest, passwordHash string) User {
	now := time.Now().UTC()

	return User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        NormalizeEmail(req.Email),
		PasswordHash: passwordHash,
		Age:          req.Age,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
