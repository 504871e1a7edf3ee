package textures

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/texture-automaton/internal/application"
	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

func wallRecord(layout Layout, w, h int) *domain.Record {
	return &domain.Record{
		Path:         filepath.Join(layout.AssetsRoot, "wall.png"),
		RelativePath: "wall.png",
		Metadata:     domain.Metadata{Width: w, Height: h, Channels: 3, Mode: "RGB", Format: "PNG"},
		Description: ai.Description{
			Summary:     "Grey stone wall",
			Caption:     "weathered stone",
			Description: "Irregular grey stones. Dark mortar lines.",
			Sentiment:   ai.SentimentNeutral,
		},
	}
}

// dirEntries lists names in dir so tests can spot leftover temp files.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRegenerateOneBacksUpThenReplaces(t *testing.T) {
	layout := newLayout(t)
	original := pngBytes(t, 32, 32)
	target := filepath.Join(layout.AssetsRoot, "wall.png")
	writeFile(t, target, original)

	provider := &fakeProvider{}
	provider.generate = func(req ai.GenerateRequest) ([]byte, error) {
		// The backup must already exist and match the untouched original.
		matches, err := filepath.Glob(filepath.Join(layout.BackupRoot, "*", "wall.png"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		got, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		assert.Equal(t, original, got)
		current, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, original, current)
		return []byte("fresh texture"), nil
	}

	engine := newEngine(layout, provider, fixedClock(backupTime))
	out := engine.RegenerateOne(context.Background(), wallRecord(layout, 32, 32))

	assert.Equal(t, history.StatusSuccess, out.Status)
	assert.Equal(t, history.StageDone, out.Stage)
	assert.Equal(t, filepath.Join(layout.BackupRoot, "20261017_123456", "wall.png"), out.BackupPath)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "fresh texture", string(got))
	assert.Equal(t, []string{"wall.png"}, dirEntries(t, layout.AssetsRoot))

	require.Len(t, provider.generated, 1)
	req := provider.generated[0]
	assert.Equal(t, "Irregular grey stones. Dark mortar lines. weathered stone", req.Prompt)
	assert.Equal(t, 32, req.Width)
	assert.Equal(t, 32, req.Height)
	assert.True(t, req.Texture)
}

func TestRegenerateOneGenerationErrorLeavesOriginal(t *testing.T) {
	layout := newLayout(t)
	original := pngBytes(t, 32, 32)
	target := filepath.Join(layout.AssetsRoot, "wall.png")
	writeFile(t, target, original)
	provider := &fakeProvider{generate: func(ai.GenerateRequest) ([]byte, error) {
		return nil, ai.ErrQuotaExceeded
	}}

	out := newEngine(layout, provider, fixedClock(backupTime)).RegenerateOne(context.Background(), wallRecord(layout, 32, 32))

	assert.Equal(t, history.StatusFailed, out.Status)
	assert.Equal(t, history.StageGenerate, out.Stage)
	assert.Contains(t, out.Error, "quota")
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.FileExists(t, out.BackupPath)
	assert.Equal(t, []string{"wall.png"}, dirEntries(t, layout.AssetsRoot))
}

func TestRegenerateOneEmptyPayloadLeavesOriginal(t *testing.T) {
	layout := newLayout(t)
	target := filepath.Join(layout.AssetsRoot, "wall.png")
	writeFile(t, target, []byte("original"))
	provider := &fakeProvider{generate: func(ai.GenerateRequest) ([]byte, error) { return nil, nil }}

	out := newEngine(layout, provider, fixedClock(backupTime)).RegenerateOne(context.Background(), wallRecord(layout, 32, 32))

	assert.Equal(t, history.StatusFailed, out.Status)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestRegenerateOneMissingFileFails(t *testing.T) {
	layout := newLayout(t)
	provider := &fakeProvider{}

	out := newEngine(layout, provider, fixedClock(backupTime)).RegenerateOne(context.Background(), wallRecord(layout, 32, 32))

	assert.Equal(t, history.StatusFailed, out.Status)
	assert.Equal(t, history.StageResolve, out.Stage)
	_, generates := provider.calls()
	assert.Zero(t, generates)
	assert.NoDirExists(t, layout.BackupRoot)
}

func TestRegenerateOneBackupFailureAborts(t *testing.T) {
	layout := newLayout(t)
	target := filepath.Join(layout.AssetsRoot, "wall.png")
	writeFile(t, target, []byte("original"))
	// A regular file where the backup root should be makes MkdirAll fail.
	writeFile(t, layout.BackupRoot, []byte("in the way"))
	provider := &fakeProvider{}

	out := newEngine(layout, provider, fixedClock(backupTime)).RegenerateOne(context.Background(), wallRecord(layout, 32, 32))

	assert.Equal(t, history.StatusFailed, out.Status)
	assert.Equal(t, history.StageBackup, out.Stage)
	_, generates := provider.calls()
	assert.Zero(t, generates)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestRegenerateOneZeroDimensionsFailBeforeProvider(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "wall.png"), []byte("original"))
	provider := &fakeProvider{}

	out := newEngine(layout, provider, fixedClock(backupTime)).RegenerateOne(context.Background(), wallRecord(layout, 0, 0))

	assert.Equal(t, history.StageGenerate, out.Stage)
	_, generates := provider.calls()
	assert.Zero(t, generates)
}

func TestRegenerateAllRewritesFlagEvenWhenEverythingFails(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, layout.UpdateFlagFile, []byte(UpdateFlagPrefix+"2001-01-01T00:00:00Z\n"))
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), []byte("a"))
	writeFile(t, filepath.Join(layout.AssetsRoot, "b.png"), []byte("b"))
	store := domain.Store{
		"a.png": {RelativePath: "a.png", Metadata: domain.Metadata{Width: 8, Height: 8}},
		"b.png": {RelativePath: "b.png", Metadata: domain.Metadata{Width: 8, Height: 8}},
	}
	provider := &fakeProvider{generate: func(ai.GenerateRequest) ([]byte, error) {
		return nil, errors.New("model unavailable")
	}}

	before := time.Now()
	pass := newEngine(layout, provider, application.SystemClock{}).RegenerateAll(context.Background(), store)

	assert.Equal(t, 0, pass.Succeeded)
	assert.Equal(t, 2, pass.Total)
	stamp, err := ReadUpdateFlag(layout.UpdateFlagFile)
	require.NoError(t, err)
	assert.True(t, stamp.After(before), "flag %v should be after %v", stamp, before)
}

func TestRegenerateAllCancelledSkipsRemainingTextures(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), []byte("a"))
	store := domain.Store{"a.png": {RelativePath: "a.png", Metadata: domain.Metadata{Width: 8, Height: 8}}}
	provider := &fakeProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pass := newEngine(layout, provider, application.SystemClock{}).RegenerateAll(ctx, store)

	assert.True(t, pass.Interrupted)
	require.Len(t, pass.Outcomes, 1)
	assert.Equal(t, history.StatusSkipped, pass.Outcomes[0].Status)
	_, generates := provider.calls()
	assert.Zero(t, generates)
	assert.FileExists(t, layout.UpdateFlagFile)
}

func TestRegenerateAllSavesHistory(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "wall.png"), []byte("x"))
	repo := &fakeHistory{}
	engine := newEngine(layout, &fakeProvider{}, application.SystemClock{})
	engine.History = repo

	pass := engine.RegenerateAll(context.Background(), domain.Store{"wall.png": wallRecord(layout, 16, 16)})

	require.Len(t, repo.passes, 1)
	assert.Equal(t, pass.ID, repo.passes[0].ID)
	assert.Equal(t, 1, repo.passes[0].Succeeded)
}

func TestEndToEndWallAndCorruptTexture(t *testing.T) {
	layout := newLayout(t)
	wall := filepath.Join(layout.AssetsRoot, "wall.png")
	corrupt := filepath.Join(layout.AssetsRoot, "corrupt.jpg")
	writeFile(t, wall, pngBytes(t, 512, 512))
	truncated := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F'}
	writeFile(t, corrupt, truncated)

	provider := &fakeProvider{
		describe: func(req ai.DescribeRequest) (ai.Description, error) {
			if filepath.Base(req.Path) == "corrupt.jpg" {
				return ai.Description{}, errors.New("cannot decode image")
			}
			return ai.Description{
				Summary:     "Grey stone wall texture",
				Caption:     "stone wall",
				Description: "Grey stones. Dark mortar.",
				Sentiment:   ai.SentimentPositive,
			}, nil
		},
		generate: func(req ai.GenerateRequest) ([]byte, error) {
			return []byte("new wall"), nil
		},
	}

	store, err := newAnalyzer(layout, provider).LoadOrBuild(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, store, 2)
	assert.Equal(t, "stone wall", store["wall.png"].Description.Caption)
	assert.Equal(t, 512, store["wall.png"].Metadata.Width)
	assert.Equal(t, PlaceholderDescription("corrupt.jpg"), store["corrupt.jpg"].Description)
	assert.Equal(t, ai.SentimentNeutral, store["corrupt.jpg"].Description.Sentiment)

	pass := newEngine(layout, provider, application.SystemClock{}).RegenerateAll(context.Background(), store)

	assert.Equal(t, 1, pass.Succeeded)
	assert.Equal(t, 2, pass.Total)
	backups, err := filepath.Glob(filepath.Join(layout.BackupRoot, "*", "wall.png"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	got, err := os.ReadFile(wall)
	require.NoError(t, err)
	assert.Equal(t, "new wall", string(got))
	got, err = os.ReadFile(corrupt)
	require.NoError(t, err)
	assert.Equal(t, truncated, got)
	assert.FileExists(t, layout.UpdateFlagFile)
}
