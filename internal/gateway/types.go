package gateway

// SSEEvent is serialised as JSON and pushed over the GET /events SSE stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Status is a live snapshot of the gateway counters.
type Status struct {
	ActiveRuns    int    `json:"active_runs"`
	RunsStarted   int64  `json:"runs_started"`
	RunsSucceeded int64  `json:"runs_succeeded"`
	RunsFailed    int64  `json:"runs_failed"`
	RunsSkipped   int64  `json:"runs_skipped"`
	GuardEntries  int    `json:"guard_entries"`
	RecordedPRs   int    `json:"recorded_prs"`
	Subscribers   int    `json:"subscribers"`
	LastTriggerAt string `json:"last_trigger_at,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// countRow is a convenience struct for SELECT COUNT(*) AS n queries.
type countRow struct {
	N int `db:"n"`
}
