package jobs

import (
	"encoding/json"
	"time"
)

const (
	TypeWelcomeEmail      = "email.welcome"
	TypeCancellationEmail = "email.cancellation"
)

// EmailPayload carries everything the worker needs to send without a DB
// lookup. The cancellation mail outlives the user row, so the payload is
// self-contained on purpose.
type EmailPayload struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (p EmailPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func DecodeEmailPayload(raw json.RawMessage) (EmailPayload, error) {
	var p EmailPayload

	err := json.Unmarshal(raw, &p)

	if err != nil {
		return EmailPayload{}, err
	}

	return p, nil
}

func IsEmailJob(jobType string) bool {
	switch jobType {
	case TypeWelcomeEmail, TypeCancellationEmail:
		return true
	default:
		return false
	}
}
