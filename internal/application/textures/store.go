package textures

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/bryanwahyu/texture-automaton/internal/application"
	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

// Analyzer owns the persisted analysis store.
type Analyzer struct {
	Layout      Layout
	Provider    ai.Provider
	Clock       application.Clock
	Temperature float32
	// VerifyOnLoad logs records whose file vanished or changed since analysis.
	VerifyOnLoad bool
}

// LoadOrBuild returns the persisted store when present (and force is false),
// otherwise scans the assets root, describes every texture and persists the
// result. A store file that cannot be read or parsed triggers a rebuild.
func (a *Analyzer) LoadOrBuild(ctx context.Context, force bool) (domain.Store, error) {
	path := a.Layout.AnalysisFile
	if !force {
		store, err := Load(path)
		switch {
		case err == nil:
			log.WithFields(log.Fields{"file": path, "textures": len(store)}).
				Info("analysis: loaded existing store, skipping analysis (use --force-reanalyze to refresh)")
			if a.VerifyOnLoad {
				a.Verify(store)
			}
			return store, nil
		case errors.Is(err, fs.ErrNotExist):
			log.WithField("file", path).Info("analysis: no existing store")
		default:
			log.WithError(err).WithField("file", path).Warn("analysis: existing store unreadable, rebuilding")
		}
	} else if _, err := os.Stat(path); err == nil {
		log.WithField("file", path).Info("analysis: forcing re-analysis")
	}

	store, err := a.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := Save(path, store); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"file": path, "textures": len(store)}).Info("analysis: complete")
	return store, nil
}

// Build scans the assets root and analyzes every supported file.
func (a *Analyzer) Build(ctx context.Context) (domain.Store, error) {
	files, err := a.Scan()
	if err != nil {
		return nil, err
	}
	log.WithField("count", len(files)).Info("analysis: found texture files")

	store := domain.Store{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis: interrupted: %w", err)
		}
		rec, err := a.Analyze(ctx, file)
		if err != nil {
			return nil, err
		}
		store[rec.RelativePath] = rec
	}
	return store, nil
}

// Scan lists supported files under the assets root in lexical order.
func (a *Analyzer) Scan() ([]string, error) {
	var files []string
	err := filepath.WalkDir(a.Layout.AssetsRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && a.Layout.BackupRoot != "" && filepath.Clean(path) == filepath.Clean(a.Layout.BackupRoot) {
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if a.Layout.Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: scan %s: %w", a.Layout.AssetsRoot, err)
	}
	sort.Strings(files)
	return files, nil
}

// Analyze builds the record for one texture. Provider failures are replaced by
// a placeholder description. A path outside the assets root or a cancelled
// ctx is an error.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*domain.Record, error) {
	rel, err := a.Layout.Rel(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	log.WithField("texture", rel).Info("analysis: analyzing texture")

	meta := ReadMetadata(path)
	desc, err := a.Provider.Describe(ctx, ai.DescribeRequest{
		Path:        path,
		Texture:     true,
		Temperature: a.Temperature,
	})
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil) {
		return nil, fmt.Errorf("analysis: describe %s interrupted: %w", rel, err)
	}
	if err != nil {
		log.WithError(err).WithField("texture", rel).Warn("analysis: describe failed, using placeholder")
		desc = PlaceholderDescription(name)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	digest, err := fileSHA256(path)
	if err != nil {
		log.WithError(err).WithField("texture", rel).Warn("analysis: digest failed")
	}
	log.WithFields(log.Fields{
		"texture": rel,
		"size":    humanize.Bytes(uint64(meta.SizeBytes)),
		"dims":    fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		"mode":    meta.Mode,
	}).Debug("analysis: metadata")

	return &domain.Record{
		Path:          abs,
		RelativePath:  rel,
		Metadata:      meta,
		Description:   desc,
		ContentSHA256: digest,
		LastAnalyzed:  domain.FormatTimestamp(a.Clock.Now()),
	}, nil
}

// PlaceholderDescription is used when the provider cannot describe a file.
func PlaceholderDescription(name string) ai.Description {
	return ai.Description{
		Summary:     "Texture file: " + name,
		Caption:     "Unknown texture",
		Description: "Could not analyze texture " + name,
		Sentiment:   ai.SentimentNeutral,
	}
}

// Drift lists the records whose backing file is gone or has different bytes.
type Drift struct {
	Missing []string
	Changed []string
}

// Verify compares each record's digest against the file on disk and logs the
// drift. It never touches the store.
func (a *Analyzer) Verify(store domain.Store) Drift {
	var d Drift
	for _, rel := range store.Keys() {
		rec := store[rel]
		if rec == nil {
			continue
		}
		path := a.Layout.Abs(rel)
		digest, err := fileSHA256(path)
		if err != nil {
			d.Missing = append(d.Missing, rel)
			continue
		}
		if rec.ContentSHA256 != "" && rec.ContentSHA256 != digest {
			d.Changed = append(d.Changed, rel)
		}
	}
	if len(d.Missing)+len(d.Changed) > 0 {
		log.WithFields(log.Fields{
			"missing": d.Missing,
			"changed": d.Changed,
		}).Warn("analysis: cached records are stale")
	}
	return d
}

// ErrInvalidStore marks a store file that parses but cannot be trusted.
var ErrInvalidStore = errors.New("invalid analysis store")

// Load reads a persisted store. Null entries and entries whose relative path
// disagrees with their key are rejected.
func Load(path string) (domain.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var store domain.Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("analysis: parse %s: %w", path, err)
	}
	if store == nil {
		store = domain.Store{}
	}
	for key, rec := range store {
		if rec == nil {
			return nil, fmt.Errorf("analysis: parse %s: %w: %q has no record", path, ErrInvalidStore, key)
		}
		if rec.RelativePath == "" || filepath.ToSlash(rec.RelativePath) != key {
			return nil, fmt.Errorf("analysis: parse %s: %w: %q has relative path %q", path, ErrInvalidStore, key, rec.RelativePath)
		}
	}
	return store, nil
}

// Save writes the store as indented JSON with sorted keys, replacing the
// previous file atomically.
func Save(path string, store domain.Store) error {
	data, err := Encode(store)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("analysis: write %s: %w", path, err)
	}
	return nil
}

// Encode renders the on-disk form of the store.
func Encode(store domain.Store) ([]byte, error) {
	if store == nil {
		store = domain.Store{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(store); err != nil {
		return nil, fmt.Errorf("analysis: encode store: %w", err)
	}
	return buf.Bytes(), nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
