package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// OneSignalNotifier sends web push notifications through the OneSignal REST API
type OneSignalNotifier struct {
	client *resty.Client
	url    string
	appID  string
	apiKey string
}

// NewOneSignalNotifier creates a notifier, disabled when appID or apiKey is empty
func NewOneSignalNotifier(url, appID, apiKey string) *OneSignalNotifier {
	return &OneSignalNotifier{
		client: resty.New().SetTimeout(15 * time.Second),
		url:    url,
		appID:  appID,
		apiKey: apiKey,
	}
}

// Enabled reports whether credentials are configured
func (n *OneSignalNotifier) Enabled() bool {
	return n != nil && n.appID != "" && n.apiKey != ""
}

type oneSignalPayload struct {
	AppID            string            `json:"app_id"`
	IncludedSegments []string          `json:"included_segments"`
	Headings         map[string]string `json:"headings"`
	Contents         map[string]string `json:"contents"`
	URL              string            `json:"url,omitempty"`
}

// Push notifies every subscriber. Only the HTTP status is checked.
func (n *OneSignalNotifier) Push(ctx context.Context, title, body, link string) error {
	if !n.Enabled() {
		return nil
	}
	payload := oneSignalPayload{
		AppID:            n.appID,
		IncludedSegments: []string{"Subscribed Users"},
		Headings:         map[string]string{"en": title, "it": title},
		Contents:         map[string]string{"en": body, "it": body},
		URL:              link,
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Basic "+n.apiKey).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to push notification: status %d: %s", resp.StatusCode(), resp.String())
	}
	slog.Info("onesignal: notification sent", "status", resp.StatusCode())
	return nil
}
