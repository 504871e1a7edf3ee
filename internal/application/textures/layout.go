// Package textures implements the texture lifecycle: analysis cache,
// backups, regeneration passes and the liveness-gated scheduler.
package textures

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// Layout is the immutable set of paths every texture operation works from.
type Layout struct {
	AssetsRoot     string
	BackupRoot     string
	AnalysisFile   string
	UpdateFlagFile string
	Extensions     []string
}

// Supported reports whether path has an allow-listed extension, ignoring case.
func (l Layout) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	exts := l.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Rel returns path relative to the assets root as a slash-separated key.
func (l Layout) Rel(path string) (string, error) {
	rel, err := filepath.Rel(l.AssetsRoot, path)
	if err != nil {
		return "", fmt.Errorf("textures: relative path for %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("textures: %s is outside assets root %s", path, l.AssetsRoot)
	}
	return filepath.ToSlash(rel), nil
}

// Abs resolves a relative key back to a path under the assets root.
func (l Layout) Abs(rel string) string {
	return filepath.Join(l.AssetsRoot, filepath.FromSlash(rel))
}
