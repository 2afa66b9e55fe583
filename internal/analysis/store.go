package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/protocolzero/codepolice/internal/database"
	"github.com/protocolzero/codepolice/models"
)

const cacheTable = "analysis_cache"

// DBStore keeps cache entries in the analysis_cache table so every instance
// pointed at the same database shares them.
type DBStore struct {
	db database.DB
}

// NewDBStore wraps db. The schema comes from database migrations.
func NewDBStore(db database.DB) *DBStore {
	return &DBStore{db: db}
}

type cacheRow struct {
	Key          string `db:"cache_key"`
	ModelVersion string `db:"model_version"`
	IssuesJSON   string `db:"issues_json"`
	CreatedAt    int64  `db:"created_at"`
}

// Get returns the entry for key, or nil when absent.
func (s *DBStore) Get(ctx context.Context, key string) (*Entry, error) {
	var rows []cacheRow
	err := s.db.Select(ctx, &rows,
		`SELECT cache_key, model_version, issues_json, created_at FROM analysis_cache WHERE cache_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("loading cache entry: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	var issues []models.Issue
	if err := json.Unmarshal([]byte(r.IssuesJSON), &issues); err != nil {
		return nil, fmt.Errorf("decoding cached issues: %w", err)
	}
	return &Entry{
		Key:          r.Key,
		Issues:       issues,
		Timestamp:    time.UnixMilli(r.CreatedAt),
		ModelVersion: r.ModelVersion,
	}, nil
}

// Set writes e, replacing any previous entry with the same key.
func (s *DBStore) Set(ctx context.Context, e *Entry) error {
	issues := e.Issues
	if issues == nil {
		issues = []models.Issue{}
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("encoding issues: %w", err)
	}
	row := cacheRow{
		Key:          e.Key,
		ModelVersion: e.ModelVersion,
		IssuesJSON:   string(data),
		CreatedAt:    e.Timestamp.UnixMilli(),
	}
	if err := s.db.Upsert(ctx, cacheTable, row, []string{"cache_key"}); err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes entries created before cutoff.
func (s *DBStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.db.Delete(ctx, cacheTable, "created_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return n, nil
}
