package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUpdates     = errors.New("invalid updates")
	ErrAvatarNotFound     = errors.New("avatar not found")
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Age          int       `json:"age"`
	Avatar       []byte    `json:"-"` // served via the avatar endpoint only
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=7"`
	Age      int    `json:"age" binding:"omitempty,gte=0"`
}

// UpdateUserRequest carries the whitelisted profile fields. Pointers so a
// PATCH can tell "absent" from "zero".
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=7"`
	Age      *int    `json:"age" binding:"omitempty,gte=0"`
}

// allowedUpdates is the fixed whitelist of client-writable fields.
var allowedUpdates = map[string]struct{}{
	"name":     {},
	"email":    {},
	"password": {},
	"age":      {},
}

// ValidateUpdateKeys rejects the whole update when any key falls outside
// the whitelist; nothing is filtered silently.
func ValidateUpdateKeys(keys []string) error {
	for _, k := range keys {
		if _, ok := allowedUpdates[k]; !ok {
			return ErrInvalidUpdates
		}
	}

	return nil
}
