package textures

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/texture-automaton/internal/application"
	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

type fakeProvider struct {
	mu            sync.Mutex
	describeCalls int
	generateCalls int
	generated     []ai.GenerateRequest
	describe      func(req ai.DescribeRequest) (ai.Description, error)
	generate      func(req ai.GenerateRequest) ([]byte, error)
}

func (f *fakeProvider) Describe(_ context.Context, req ai.DescribeRequest) (ai.Description, error) {
	f.mu.Lock()
	f.describeCalls++
	fn := f.describe
	f.mu.Unlock()
	if fn == nil {
		return ai.Description{
			Summary:     "A texture " + filepath.Base(req.Path),
			Caption:     "stone wall",
			Description: "Rough grey stones. Mortar between them.",
			Sentiment:   ai.SentimentPositive,
		}, nil
	}
	return fn(req)
}

func (f *fakeProvider) Generate(_ context.Context, req ai.GenerateRequest) ([]byte, error) {
	f.mu.Lock()
	f.generateCalls++
	f.generated = append(f.generated, req)
	fn := f.generate
	f.mu.Unlock()
	if fn == nil {
		return []byte("generated-image"), nil
	}
	return fn(req)
}

func (f *fakeProvider) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.describeCalls, f.generateCalls
}

type fakeProcess struct {
	done chan struct{}
	once sync.Once
}

func newFakeProcess() *fakeProcess { return &fakeProcess{done: make(chan struct{})} }

func (p *fakeProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) PID() int              { return 4242 }
func (p *fakeProcess) exit()                 { p.once.Do(func() { close(p.done) }) }

// pollOnlyProcess never signals Done; only Alive changes.
type pollOnlyProcess struct{ dead atomic.Bool }

func (p *pollOnlyProcess) Alive() bool           { return !p.dead.Load() }
func (p *pollOnlyProcess) Done() <-chan struct{} { return nil }
func (p *pollOnlyProcess) PID() int              { return 7 }

type fakeLauncher struct {
	proc  domain.Process
	err   error
	calls int
}

func (l *fakeLauncher) Launch(context.Context, string) (domain.Process, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

type fakeMirror struct {
	keys []string
	err  error
}

func (m *fakeMirror) Upload(_ context.Context, localPath, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "mem://" + key, nil
}

type fakeHistory struct {
	mu     sync.Mutex
	passes []*history.Pass
}

func (h *fakeHistory) Save(_ context.Context, p *history.Pass) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.passes = append(h.passes, p)
	return nil
}

func (h *fakeHistory) Latest(context.Context, int) ([]*history.Pass, error) {
	return nil, errors.New("not implemented")
}

func (h *fakeHistory) Get(context.Context, string) (*history.Pass, error) {
	return nil, errors.New("not implemented")
}

func fixedClock(t time.Time) application.Clock {
	return application.ClockFunc(func() time.Time { return t })
}

func newLayout(t *testing.T) Layout {
	t.Helper()
	root := t.TempDir()
	assets := filepath.Join(root, "assets")
	require.NoError(t, os.MkdirAll(assets, 0o755))
	return Layout{
		AssetsRoot:     assets,
		BackupRoot:     filepath.Join(root, "texture_backups"),
		AnalysisFile:   filepath.Join(assets, "texture_analysis.json"),
		UpdateFlagFile: filepath.Join(assets, "UpdateTexture.txt"),
		Extensions:     DefaultExtensions,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newAnalyzer(layout Layout, p ai.Provider) *Analyzer {
	return &Analyzer{
		Layout:      layout,
		Provider:    p,
		Clock:       application.SystemClock{},
		Temperature: 0.2,
	}
}

func newEngine(layout Layout, p ai.Provider, clock application.Clock) *Engine {
	return &Engine{
		Layout:   layout,
		Provider: p,
		Backups:  &BackupManager{Layout: layout, Clock: clock},
		Clock:    clock,
	}
}
