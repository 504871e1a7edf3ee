package textures

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/bryanwahyu/texture-automaton/internal/application"
	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
	"github.com/bryanwahyu/texture-automaton/internal/metrics"
)

// BackupStampLayout names the per-backup directory, whole seconds.
const BackupStampLayout = "20060102_150405"

// BackupManager copies textures into <BackupRoot>/<stamp>/<relative path>
// before they are overwritten. Backups are never pruned.
type BackupManager struct {
	Layout Layout
	Clock  application.Clock
	// Mirror is optional; failures to mirror are logged and ignored.
	Mirror domain.BackupMirror
}

// Backup copies texturePath and returns the backup location. Two backups of
// the same file within one second land on the same path and the later wins.
func (b *BackupManager) Backup(ctx context.Context, texturePath string) (string, error) {
	rel, err := b.Layout.Rel(texturePath)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	stamp := b.Clock.Now().Format(BackupStampLayout)
	dst := filepath.Join(b.Layout.BackupRoot, stamp, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("backup: create dir: %w", err)
	}
	if err := copyFile(texturePath, dst); err != nil {
		return "", fmt.Errorf("backup: copy %s: %w", rel, err)
	}
	metrics.IncrementBackups()

	if b.Mirror != nil {
		key := path.Join(stamp, rel)
		url, err := b.Mirror.Upload(ctx, dst, key)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("backup: mirror upload failed")
		} else {
			metrics.IncrementMirrored()
			log.WithFields(log.Fields{"key": key, "url": url}).Debug("backup: mirrored")
		}
	}
	return dst, nil
}
