package textures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
)

func seedAssets(t *testing.T, layout Layout) {
	t.Helper()
	png := pngBytes(t, 8, 8)
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), png)
	writeFile(t, filepath.Join(layout.AssetsRoot, "c.jpeg"), []byte("not really a jpeg"))
	writeFile(t, filepath.Join(layout.AssetsRoot, "sub", "B.JPG"), []byte("upper case ext"))
	writeFile(t, filepath.Join(layout.AssetsRoot, "sub", "deep", "d.png"), png)
	writeFile(t, filepath.Join(layout.AssetsRoot, "notes.txt"), []byte("ignored"))
	writeFile(t, filepath.Join(layout.AssetsRoot, "model.obj"), []byte("ignored"))
}

func TestBuildProducesOneRecordPerSupportedFile(t *testing.T) {
	layout := newLayout(t)
	seedAssets(t, layout)
	provider := &fakeProvider{}

	store, err := newAnalyzer(layout, provider).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.png", "c.jpeg", "sub/B.JPG", "sub/deep/d.png"}, store.Keys())
	for rel, rec := range store {
		assert.Equal(t, rel, rec.RelativePath)
		assert.True(t, filepath.IsAbs(rec.Path), rec.Path)
		assert.NotEmpty(t, rec.ContentSHA256)
		_, ok := rec.AnalyzedAt()
		assert.True(t, ok, "last_analyzed %q should parse", rec.LastAnalyzed)
	}
	describes, generates := provider.calls()
	assert.Equal(t, 4, describes)
	assert.Zero(t, generates)
}

func TestScanSkipsBackupRootInsideAssets(t *testing.T) {
	layout := newLayout(t)
	layout.BackupRoot = filepath.Join(layout.AssetsRoot, "texture_backups")
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), pngBytes(t, 4, 4))
	writeFile(t, filepath.Join(layout.BackupRoot, "20260101_000000", "a.png"), pngBytes(t, 4, 4))

	files, err := newAnalyzer(layout, &fakeProvider{}).Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(layout.AssetsRoot, "a.png")}, files)
}

func TestLoadOrBuildReusesPersistedStoreWithoutProviderCalls(t *testing.T) {
	layout := newLayout(t)
	seedAssets(t, layout)

	first, err := newAnalyzer(layout, &fakeProvider{}).LoadOrBuild(context.Background(), false)
	require.NoError(t, err)
	require.FileExists(t, layout.AnalysisFile)

	provider := &fakeProvider{}
	second, err := newAnalyzer(layout, provider).LoadOrBuild(context.Background(), false)
	require.NoError(t, err)

	describes, generates := provider.calls()
	assert.Zero(t, describes)
	assert.Zero(t, generates)
	assert.Equal(t, first, second)
}

func TestLoadOrBuildForceOverwritesStore(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), pngBytes(t, 8, 8))
	writeFile(t, layout.AnalysisFile, []byte(`{"ghost.png": {"path": "/gone/ghost.png", "relative_path": "ghost.png"}}`))

	provider := &fakeProvider{}
	store, err := newAnalyzer(layout, provider).LoadOrBuild(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, store.Keys())

	describes, _ := provider.calls()
	assert.Equal(t, 1, describes)

	onDisk, err := Load(layout.AnalysisFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, onDisk.Keys())
}

func TestLoadOrBuildRebuildsCorruptStore(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), pngBytes(t, 8, 8))
	writeFile(t, layout.AnalysisFile, []byte("{not json"))

	provider := &fakeProvider{}
	store, err := newAnalyzer(layout, provider).LoadOrBuild(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, store, 1)

	describes, _ := provider.calls()
	assert.Equal(t, 1, describes)
}

func TestLoadOrBuildRebuildsStoreWithUnusableRecords(t *testing.T) {
	cases := map[string]string{
		"null record":      `{"a.png": null}`,
		"missing rel path": `{"a.png": {"path": "/x/a.png"}}`,
		"mismatched key":   `{"a.png": {"relative_path": "b.png"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			layout := newLayout(t)
			writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), pngBytes(t, 8, 8))
			writeFile(t, layout.AnalysisFile, []byte(body))

			_, err := Load(layout.AnalysisFile)
			assert.ErrorIs(t, err, ErrInvalidStore)

			provider := &fakeProvider{}
			store, err := newAnalyzer(layout, provider).LoadOrBuild(context.Background(), false)
			require.NoError(t, err)
			require.NotNil(t, store["a.png"])
			assert.Equal(t, "a.png", store["a.png"].RelativePath)
			describes, _ := provider.calls()
			assert.Equal(t, 1, describes)

			pass := newEngine(layout, provider, fixedClock(backupTime)).RegenerateAll(context.Background(), store)
			assert.Equal(t, 1, pass.Succeeded)
		})
	}
}

func TestLoadOrBuildInterruptedDoesNotPersist(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), pngBytes(t, 8, 8))
	writeFile(t, filepath.Join(layout.AssetsRoot, "b.png"), pngBytes(t, 8, 8))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first describe succeeds and cancels; the second sees a dead ctx.
	provider := &fakeProvider{}
	provider.describe = func(req ai.DescribeRequest) (ai.Description, error) {
		if filepath.Base(req.Path) == "a.png" {
			cancel()
			return ai.Description{Summary: "a", Caption: "a", Description: "a"}, nil
		}
		return ai.Description{}, ctx.Err()
	}

	_, err := newAnalyzer(layout, provider).LoadOrBuild(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, layout.AnalysisFile)

	next := &fakeProvider{}
	store, err := newAnalyzer(layout, next).LoadOrBuild(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "A texture b.png", store["b.png"].Description.Summary)
	describes, _ := next.calls()
	assert.Equal(t, 2, describes)
}

func TestDescribeDeadlineIsNotAPlaceholder(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), pngBytes(t, 8, 8))
	provider := &fakeProvider{describe: func(ai.DescribeRequest) (ai.Description, error) {
		return ai.Description{}, fmt.Errorf("gemini: %w", context.DeadlineExceeded)
	}}

	_, err := newAnalyzer(layout, provider).Build(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDescribeFailureUsesPlaceholder(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "rust.png"), pngBytes(t, 8, 8))
	provider := &fakeProvider{describe: func(ai.DescribeRequest) (ai.Description, error) {
		return ai.Description{}, errors.New("boom")
	}}

	store, err := newAnalyzer(layout, provider).Build(context.Background())
	require.NoError(t, err)

	rec := store["rust.png"]
	require.NotNil(t, rec)
	assert.Equal(t, PlaceholderDescription("rust.png"), rec.Description)
	assert.Equal(t, ai.SentimentNeutral, rec.Description.Sentiment)
	assert.Equal(t, 8, rec.Metadata.Width)
}

func TestDescribeRequestsTextureMode(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "a.png"), pngBytes(t, 8, 8))
	var seen []ai.DescribeRequest
	provider := &fakeProvider{describe: func(req ai.DescribeRequest) (ai.Description, error) {
		seen = append(seen, req)
		return ai.Description{Sentiment: ai.SentimentNeutral}, nil
	}}

	_, err := newAnalyzer(layout, provider).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Texture)
	assert.InDelta(t, 0.2, seen[0].Temperature, 1e-6)
}

func TestSaveRoundTripsByteForByte(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "mur.png"), pngBytes(t, 8, 8))
	writeFile(t, filepath.Join(layout.AssetsRoot, "z", "tile.png"), pngBytes(t, 8, 8))
	provider := &fakeProvider{describe: func(ai.DescribeRequest) (ai.Description, error) {
		return ai.Description{
			Summary:     "Mur en pierre, légèrement usé",
			Caption:     "stone <wall> & moss",
			Description: "Süße Steine. 苔むした石.",
			Sentiment:   ai.SentimentNeutral,
		}, nil
	}}
	_, err := newAnalyzer(layout, provider).LoadOrBuild(context.Background(), false)
	require.NoError(t, err)

	original, err := os.ReadFile(layout.AnalysisFile)
	require.NoError(t, err)
	assert.Contains(t, string(original), "légèrement")
	assert.Contains(t, string(original), "stone <wall> & moss")
	assert.True(t, strings.HasPrefix(string(original), "{\n  \"mur.png\": {\n    \"path\""))

	store, err := Load(layout.AnalysisFile)
	require.NoError(t, err)
	copyPath := filepath.Join(t.TempDir(), "copy.json")
	require.NoError(t, Save(copyPath, store))

	again, err := os.ReadFile(copyPath)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(again))
}

func TestVerifyReportsDrift(t *testing.T) {
	layout := newLayout(t)
	writeFile(t, filepath.Join(layout.AssetsRoot, "keep.png"), pngBytes(t, 8, 8))
	writeFile(t, filepath.Join(layout.AssetsRoot, "edit.png"), pngBytes(t, 8, 8))
	writeFile(t, filepath.Join(layout.AssetsRoot, "gone.png"), pngBytes(t, 8, 8))
	a := newAnalyzer(layout, &fakeProvider{})
	store, err := a.Build(context.Background())
	require.NoError(t, err)

	writeFile(t, filepath.Join(layout.AssetsRoot, "edit.png"), pngBytes(t, 9, 9))
	require.NoError(t, os.Remove(filepath.Join(layout.AssetsRoot, "gone.png")))

	drift := a.Verify(store)
	assert.Equal(t, []string{"gone.png"}, drift.Missing)
	assert.Equal(t, []string{"edit.png"}, drift.Changed)
	assert.Len(t, store, 3)
}
