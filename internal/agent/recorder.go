package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/protocolzero/codepolice/internal/database"
	"github.com/protocolzero/codepolice/models"
)

// Auto-fix statuses written to analysis_runs.auto_fix_status.
const (
	RunStatusPROpened = "pr_opened"
	RunStatusFailed   = "failed"
)

// RunRecorder writes an auto-fix outcome back onto its analysis run.
type RunRecorder interface {
	RecordAutoFix(ctx context.Context, runID, projectID, commitSHA string, res models.AutoFixResult) error
}

// DBRecorder stores outcomes in the analysis_runs table.
type DBRecorder struct {
	db database.DB
}

// NewDBRecorder wraps db.
func NewDBRecorder(db database.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

type analysisRunRow struct {
	ID                  string `db:"id"`
	ProjectID           string `db:"project_id"`
	CommitSHA           string `db:"commit_sha"`
	AutoFixStatus       string `db:"auto_fix_status"`
	AutoFixPRURL        string `db:"auto_fix_pr_url"`
	AutoFixPRNumber     int    `db:"auto_fix_pr_number"`
	AutoFixesGenerated  int    `db:"auto_fixes_generated"`
	AutoFixFilesChanged int    `db:"auto_fix_files_changed"`
	AutoFixError        string `db:"auto_fix_error"`
	UpdatedAt           int64  `db:"updated_at"`
}

func (r *DBRecorder) RecordAutoFix(ctx context.Context, runID, projectID, commitSHA string, res models.AutoFixResult) error {
	status := RunStatusPROpened
	if !res.Success {
		status = RunStatusFailed
	}
	row := analysisRunRow{
		ID:                  runID,
		ProjectID:           projectID,
		CommitSHA:           commitSHA,
		AutoFixStatus:       status,
		AutoFixPRURL:        res.PRURL,
		AutoFixPRNumber:     res.PRNumber,
		AutoFixesGenerated:  res.FixesGenerated,
		AutoFixFilesChanged: res.FilesChanged,
		AutoFixError:        res.Error,
		UpdatedAt:           time.Now().UnixMilli(),
	}
	if err := r.db.Upsert(ctx, "analysis_runs", row, []string{"id"}); err != nil {
		return fmt.Errorf("recording auto-fix for run %s: %w", runID, err)
	}
	return nil
}

// RunRecord is a stored auto-fix outcome.
type RunRecord struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	CommitSHA      string    `json:"commit_sha"`
	Status         string    `json:"status"`
	PRURL          string    `json:"pr_url,omitempty"`
	PRNumber       int       `json:"pr_number,omitempty"`
	FixesGenerated int       `json:"fixes_generated"`
	FilesChanged   int       `json:"files_changed"`
	Error          string    `json:"error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Get loads the outcome recorded for runID, or nil when none exists.
func (r *DBRecorder) Get(ctx context.Context, runID string) (*RunRecord, error) {
	var rows []analysisRunRow
	if err := r.db.Select(ctx, &rows, `
		SELECT id, project_id, commit_sha, auto_fix_status, auto_fix_pr_url, auto_fix_pr_number,
		       auto_fixes_generated, auto_fix_files_changed, auto_fix_error, updated_at
		FROM analysis_runs
		WHERE id = ?`, runID); err != nil {
		return nil, fmt.Errorf("loading analysis run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].record()
	return &rec, nil
}

func (row analysisRunRow) record() RunRecord {
	return RunRecord{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		CommitSHA:      row.CommitSHA,
		Status:         row.AutoFixStatus,
		PRURL:          row.AutoFixPRURL,
		PRNumber:       row.AutoFixPRNumber,
		FixesGenerated: row.AutoFixesGenerated,
		FilesChanged:   row.AutoFixFilesChanged,
		Error:          row.AutoFixError,
		UpdatedAt:      time.UnixMilli(row.UpdatedAt),
	}
}

// Recent returns the latest recorded outcomes, newest first.
func (r *DBRecorder) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []analysisRunRow
	if err := r.db.Select(ctx, &rows, `
		SELECT id, project_id, commit_sha, auto_fix_status, auto_fix_pr_url, auto_fix_pr_number,
		       auto_fixes_generated, auto_fix_files_changed, auto_fix_error, updated_at
		FROM analysis_runs
		ORDER BY updated_at DESC
		LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("listing analysis runs: %w", err)
	}
	out := make([]RunRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}
