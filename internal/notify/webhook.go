/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookTransport posts a JSON representation of a notification to an
// arbitrary HTTP endpoint. It is an additive secondary transport (spec's
// ambient-stack expansion of C5): the state machine only requires mail, but
// reviewers who live in chat tooling benefit from a parallel delivery path,
// adapted from the fleet dispatcher's generic WebhookChannel.
type WebhookTransport struct {
	URL     string
	Headers map[string]string
	client  *http.Client
}

// NewWebhookTransport constructs a WebhookTransport. An empty URL makes
// Functional report false.
func NewWebhookTransport(url string, headers map[string]string) *WebhookTransport {
	return &WebhookTransport{URL: url, Headers: headers, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookTransport) Name() string     { return "webhook" }
func (w *WebhookTransport) Functional() bool { return w.URL != "" }

func (w *WebhookTransport) Send(ctx context.Context, n Notification, renderedBody string) error {
	payload := map[string]any{
		"type":         string(n.Type),
		"subject":      n.Subject,
		"recipients":   n.Recipients,
		"ccRecipients": n.CcRecipients,
		"properties":   n.Properties,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SlackTransport posts a formatted message to a Slack incoming webhook.
// Also additive; unlike the fleet dispatcher's SlackChannel this carries no
// severity emoji since the engine's notifications aren't severity-tagged.
type SlackTransport struct {
	WebhookURL string
	client     *http.Client
}

// NewSlackTransport constructs a SlackTransport. An empty webhook URL makes
// Functional report false.
func NewSlackTransport(webhookURL string) *SlackTransport {
	return &SlackTransport{WebhookURL: webhookURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *SlackTransport) Name() string     { return "slack" }
func (s *SlackTransport) Functional() bool { return s.WebhookURL != "" }

func (s *SlackTransport) Send(ctx context.Context, n Notification, renderedBody string) error {
	text := fmt.Sprintf("*%s*\n%s", n.Subject, n.Properties["JUSTIFICATION"])
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
