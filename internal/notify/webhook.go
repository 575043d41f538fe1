// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/models"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	userAgent             = "Segmentum-Notify/1.0"
	maxErrorBody          = 4096
)

// WebhookPayload is the JSON body POSTed for each event.
type WebhookPayload struct {
	Event       string              `json:"event"`
	Timestamp   time.Time           `json:"timestamp"`
	Achievement models.Achievement  `json:"achievement"`
	Counterpart *models.Achievement `json:"counterpart,omitempty"`
}

// WebhookNotifier POSTs events to one URL. Sends are spaced at least
// minInterval apart.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookNotifier creates a notifier for rawURL. An empty URL yields a
// disabled notifier. minInterval of zero disables rate limiting.
func NewWebhookNotifier(rawURL string, minInterval, timeout time.Duration) (*WebhookNotifier, error) {
	if rawURL != "" {
		if err := ValidateWebhookURL(rawURL); err != nil {
			return nil, err
		}
	}
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}

	return &WebhookNotifier{
		url:     rawURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// ValidateWebhookURL requires an absolute http or https URL.
func ValidateWebhookURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &ConfigError{Reason: fmt.Sprintf("invalid webhook URL: %v", err)}
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return &ConfigError{Reason: "webhook URL must use http or https scheme"}
	}
	if parsed.Host == "" {
		return &ConfigError{Reason: "webhook URL must have a host"}
	}
	return nil
}

func (n *WebhookNotifier) Name() string  { return "webhook" }
func (n *WebhookNotifier) Enabled() bool { return n.url != "" }

// Send POSTs ev as JSON, waiting for the rate limiter first. Non-2xx
// responses are returned as *StatusError.
func (n *WebhookNotifier) Send(ctx context.Context, ev achievements.Event) error {
	if !n.Enabled() {
		return &ConfigError{Reason: "webhook URL is not set"}
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Event:       string(ev.Type),
		Timestamp:   ev.OccurredAt.UTC(),
		Achievement: ev.Achievement,
		Counterpart: ev.Counterpart,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
}
