package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/internal/config"
)

type recordingChannel struct {
	name string
	err  error
	sent []Event
}

func (r *recordingChannel) Name() string       { return r.name }
func (r *recordingChannel) IsConfigured() bool { return true }
func (r *recordingChannel) Send(_ context.Context, evt Event) error {
	r.sent = append(r.sent, evt)
	return r.err
}

func TestDispatcherFiltersEventsAndSwallowsErrors(t *testing.T) {
	failing := &recordingChannel{name: "broken", err: errors.New("down")}
	ok := &recordingChannel{name: "ok"}
	d := newDispatcher([]string{EventPROpened}, failing, ok)

	d.Notify(context.Background(), Event{Type: EventPROpened, Title: "PR"})
	d.Notify(context.Background(), Event{Type: EventAutoFixFailed, Title: "boom"})

	require.Len(t, ok.sent, 1)
	assert.Equal(t, "PR", ok.sent[0].Title)
	assert.Len(t, failing.sent, 1)
}

func TestDispatcherSkipsUnconfiguredChannels(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{})
	assert.False(t, d.IsAnyConfigured())
}

func TestWebhookSignsBody(t *testing.T) {
	var gotSig string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		assert.Equal(t, "sha256="+Sign("s3cret", body), gotSig)
		assert.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhook(config.WebhookConfig{URL: srv.URL, Secret: "s3cret"})
	err := ch.Send(context.Background(), Event{
		Type:     EventPROpened,
		Title:    "Code Police opened #7",
		RepoKey:  "acme/api",
		Metadata: map[string]any{"fixes": 3},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, gotSig)
	assert.Equal(t, "acme/api", payload["repo"])
	assert.EqualValues(t, 3, payload["metadata"].(map[string]any)["fixes"])
}

func TestSlackReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlack(config.SlackConfig{WebhookURL: srv.URL}).Send(context.Background(), Event{Type: EventAutoFixFailed})
	assert.Error(t, err)
}
