package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPNotifier talks to a SendGrid-style transactional mail API. The API
// key and endpoint come from process configuration at construction time.
type HTTPNotifier struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

func NewHTTPNotifier(apiURL, apiKey, from string) *HTTPNotifier {
	return &HTTPNotifier{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) SendWelcome(ctx context.Context, in EmailInput) error {
	return n.send(ctx, in,
		"Thanks for joining in!",
		fmt.Sprintf("Welcome to the app, %s. Let us know about your opinions.", in.Name),
	)
}

func (n *HTTPNotifier) SendCancellation(ctx context.Context, in EmailInput) error {
	return n.send(ctx, in,
		"Sorry to see you go!",
		fmt.Sprintf("Goodbye %s. We hope to see you back", in.Name),
	)
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (n *HTTPNotifier) send(ctx context.Context, in EmailInput, subject, text string) error {
	body := mailRequest{
		Personalizations: []personalization{{To: []address{{Email: in.Email}}}},
		From:             address{Email: n.from},
		Subject:          subject,
		Content:          []content{{Type: "text/plain", Value: text}},
	}

	raw, err := json.Marshal(body)

	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(raw))

	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)

	if err != nil {
		return err
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail provider returned status %d", resp.StatusCode)
	}

	return nil
}
