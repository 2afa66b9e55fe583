package notify

import "context"

// Event types sent by the auto-fix pipeline.
const (
	EventPROpened      = "pr_opened"
	EventAutoFixFailed = "autofix_failed"
)

// Event represents a notification event from codepolice.
type Event struct {
	Type     string // EventPROpened | EventAutoFixFailed
	Title    string
	Body     string
	URL      string         // optional deep link (e.g. PR URL)
	Severity string         // highest issue severity in the run, or ""
	RepoKey  string         // "owner/repo"
	Metadata map[string]any // extra structured data
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
