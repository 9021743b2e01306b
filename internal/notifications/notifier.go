package notifications

import "context"

type EmailInput struct {
	Email string
	Name  string
}

// Notifier sends the two transactional emails the app knows about.
// Sends are dispatched from the worker, never from a request handler.
type Notifier interface {
	SendWelcome(ctx context.Context, input EmailInput) error
	SendCancellation(ctx context.Context, input EmailInput) error
}
