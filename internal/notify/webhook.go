package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/protocolzero/codepolice/internal/config"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-CodePolice-Signature"

// WebhookChannel sends notifications to a generic HTTP endpoint with optional
// HMAC-SHA256 signing.
type WebhookChannel struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewWebhook creates a WebhookChannel from cfg.
func NewWebhook(cfg config.WebhookConfig) *WebhookChannel {
	return &WebhookChannel{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}}
}

func (w *WebhookChannel) Name() string       { return "webhook" }
func (w *WebhookChannel) IsConfigured() bool { return w.cfg.URL != "" }

func (w *WebhookChannel) Send(ctx context.Context, evt Event) error {
	deliveryID := uuid.NewString()
	payload := map[string]any{
		"id":       deliveryID,
		"type":     evt.Type,
		"title":    evt.Title,
		"body":     evt.Body,
		"severity": evt.Severity,
		"repo":     evt.RepoKey,
		"url":      evt.URL,
		"metadata": evt.Metadata,
		"ts":       time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CodePolice-Delivery", deliveryID)
	if w.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(w.cfg.Secret, b))
	}
	resp, err := w.client.Do(req) // #nosec G107 -- URL is a user-configured webhook endpoint
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
