package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
	"github.com/bryanwahyu/texture-automaton/internal/infra/db/sqlstore"
)

func newRepo(t *testing.T) *sqlstore.PassRepository {
	t.Helper()
	db, err := Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := NewPassRepository(context.Background(), db)
	require.NoError(t, err)
	return repo
}

func samplePass(id string, started time.Time) *history.Pass {
	return &history.Pass{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Succeeded:  1,
		Total:      2,
		Outcomes: []history.Outcome{
			{RelativePath: "wall.png", Status: history.StatusSuccess, Stage: history.StageDone, BackupPath: "/b/wall.png", DurationMS: 1200},
			{RelativePath: "corrupt.jpg", Status: history.StatusFailed, Stage: history.StageGenerate, Error: "image dimensions must be positive", DurationMS: 3},
		},
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	started := time.UnixMilli(1_760_000_000_000)
	want := samplePass("p-1", started)

	require.NoError(t, repo.Save(ctx, want))
	got, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.True(t, got.StartedAt.Equal(want.StartedAt))
	assert.True(t, got.FinishedAt.Equal(want.FinishedAt))
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 2, got.Total)
	assert.False(t, got.Interrupted)
	assert.Equal(t, want.Outcomes, got.Outcomes)
}

func TestSaveReplacesExistingPass(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	p := samplePass("p-1", time.UnixMilli(1_760_000_000_000))
	require.NoError(t, repo.Save(ctx, p))

	p.Succeeded = 0
	p.Interrupted = true
	p.Outcomes = p.Outcomes[:1]
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, got.Interrupted)
	assert.Equal(t, 0, got.Succeeded)
	assert.Len(t, got.Outcomes, 1)
}

func TestLatestNewestFirstWithLimit(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.UnixMilli(1_760_000_000_000)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, samplePass(id, base.Add(time.Duration(i)*time.Minute))))
	}

	passes, err := repo.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, passes, 2)
	assert.Equal(t, "c", passes[0].ID)
	assert.Equal(t, "b", passes[1].ID)
	assert.Empty(t, passes[0].Outcomes)
}

func TestGetUnknownPass(t *testing.T) {
	_, err := newRepo(t).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestConnectCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	db, err := Connect(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()
	_, err = NewPassRepository(context.Background(), db)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
