package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/internal/database"
	"github.com/protocolzero/codepolice/models"
)

func TestDBRecorderUpsertsOutcome(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	rec := NewDBRecorder(db)
	require.NoError(t, rec.RecordAutoFix(ctx, "run-9", "proj", "abc", models.AutoFixResult{
		Error: "All 1 file(s) failed to fetch from source control; no fixes could be computed",
	}))
	require.NoError(t, rec.RecordAutoFix(ctx, "run-9", "proj", "abc", models.AutoFixResult{
		Success:        true,
		PRNumber:       4,
		PRURL:          "https://github.com/acme/api/pull/4",
		FixesGenerated: 3,
		FilesChanged:   2,
	}))

	got, err := rec.Get(ctx, "run-9")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, RunStatusPROpened, got.Status)
	assert.Equal(t, 4, got.PRNumber)
	assert.Equal(t, 3, got.FixesGenerated)
	assert.Equal(t, 2, got.FilesChanged)
	assert.Empty(t, got.Error)

	missing, err := rec.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDBRecorderRecent(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	rec := NewDBRecorder(db)
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, rec.RecordAutoFix(ctx, id, "proj", "abc", models.AutoFixResult{Error: "no_fixes"}))
	}

	got, err := rec.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := rec.Recent(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID)
		assert.Equal(t, RunStatusFailed, r.Status)
	}
	assert.ElementsMatch(t, []string{"run-1", "run-2", "run-3"}, ids)
}
