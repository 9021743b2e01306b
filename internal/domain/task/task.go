package task

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("task not found")
	ErrInvalidUpdates = errors.New("invalid updates")
)

type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	OwnerID     string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateTaskRequest struct {
	Description string `json:"description" binding:"required"`
	Completed   bool   `json:"completed"`
}

type UpdateTaskRequest struct {
	Description *string `json:"description" binding:"omitempty,min=1"`
	Completed   *bool   `json:"completed"`
}

// ListFilter mirrors the query surface of the task list endpoint.
// Completed nil means "both".
type ListFilter struct {
	Completed *bool
	Limit     int
	Skip      int
	SortDesc  bool
}

var allowedUpdates = map[string]struct{}{
	"description": {},
	"completed":   {},
}

func ValidateUpdateKeys(keys []string) error {
	for _, k := range keys {
		if _, ok := allowedUpdates[k]; !ok {
			return ErrInvalidUpdates
		}
	}

	return nil
}

// NewFromCreateRequest stamps ownership; the owner always comes from the
// authenticated identity, never the request body.
func NewFromCreateRequest(req CreateTaskRequest, ownerID string) Task {
	now := time.Now().UTC()

	return Task{
		ID:          uuid.NewString(),
		Description: strings.TrimSpace(req.Description),
		Completed:   req.Completed,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
