package worker

import (
	"context"
	"fmt"

	"github.com/dkoller/taskhub/internal/domain/job"
	"github.com/dkoller/taskhub/internal/jobs"
	"github.com/dkoller/taskhub/internal/notifications"
)

// EmailExecutor dispatches email jobs through the configured Notifier.
type EmailExecutor struct {
	notifier notifications.Notifier
}

func NewEmailExecutor(notifier notifications.Notifier) *EmailExecutor {
	return &EmailExecutor{notifier: notifier}
}

func (e *EmailExecutor) Execute(ctx context.Context, j job.Job) error {
	if !jobs.IsEmailJob(j.Type) {
		return fmt.Errorf("unknown job type %q", j.Type)
	}

	p, err := jobs.DecodeEmailPayload(j.Payload)

	if err != nil {
		return err
	}

	in := notifications.EmailInput{Email: p.Email, Name: p.Name}

	switch j.Type {
	case jobs.TypeWelcomeEmail:
		return e.notifier.SendWelcome(ctx, in)
	case jobs.TypeCancellationEmail:
		return e.notifier.SendCancellation(ctx, in)
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
}
