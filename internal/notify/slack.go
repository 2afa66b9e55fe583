package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/protocolzero/codepolice/internal/config"
)

// SlackChannel sends notifications to a Slack incoming webhook URL.
type SlackChannel struct {
	cfg    config.SlackConfig
	client *http.Client
}

// NewSlack creates a SlackChannel from cfg.
func NewSlack(cfg config.SlackConfig) *SlackChannel {
	return &SlackChannel{cfg: cfg, client: &http.Client{Timeout: 5 * time.Second}}
}

func (s *SlackChannel) Name() string       { return "slack" }
func (s *SlackChannel) IsConfigured() bool { return s.cfg.WebhookURL != "" }

func (s *SlackChannel) Send(ctx context.Context, evt Event) error {
	attachment := map[string]any{
		"color":  eventColor(evt),
		"title":  evt.Title,
		"text":   evt.Body,
		"footer": "codepolice · " + evt.RepoKey,
		"ts":     time.Now().Unix(),
	}
	if evt.URL != "" {
		attachment["title_link"] = evt.URL
	}
	if fields := slackFields(evt.Metadata); len(fields) > 0 {
		attachment["fields"] = fields
	}
	payload := map[string]any{
		"text":        evt.Title,
		"attachments": []map[string]any{attachment},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req) // #nosec G107 -- WebhookURL is a user-configured Slack incoming webhook URL
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

func slackFields(meta map[string]any) []map[string]any {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, map[string]any{
			"title": k,
			"value": fmt.Sprint(meta[k]),
			"short": true,
		})
	}
	return fields
}

func eventColor(evt Event) string {
	if evt.Type == EventAutoFixFailed {
		return "#FF0000"
	}
	switch evt.Severity {
	case "critical":
		return "#FF0000"
	case "high":
		return "#FF6600"
	case "medium":
		return "#FFAA00"
	case "low":
		return "#0099FF"
	default:
		return "#36A64F"
	}
}
