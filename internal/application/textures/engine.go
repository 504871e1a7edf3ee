package textures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bryanwahyu/texture-automaton/internal/application"
	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
	"github.com/bryanwahyu/texture-automaton/internal/metrics"
)

// Engine regenerates textures from their stored descriptions.
type Engine struct {
	Layout   Layout
	Provider ai.Provider
	Backups  *BackupManager
	Clock    application.Clock
	// History is optional.
	History history.Repository
}

// RegenerateOne backs up, regenerates and swaps a single texture. It reports
// failure through the returned Outcome and never returns an error.
func (e *Engine) RegenerateOne(ctx context.Context, rec *domain.Record) history.Outcome {
	start := e.Clock.Now()
	out := history.Outcome{RelativePath: rec.RelativePath}
	fail := func(stage history.Stage, err error) history.Outcome {
		out.Status = history.StatusFailed
		out.Stage = stage
		out.Error = err.Error()
		out.DurationMS = e.Clock.Now().Sub(start).Milliseconds()
		log.WithError(err).WithFields(log.Fields{
			"texture": rec.RelativePath,
			"stage":   stage,
		}).Warn("regenerate: failed")
		return out
	}

	target := e.resolve(rec)
	info, err := os.Stat(target)
	if err != nil {
		return fail(history.StageResolve, fmt.Errorf("texture missing: %w", err))
	}
	if !info.Mode().IsRegular() {
		return fail(history.StageResolve, fmt.Errorf("texture %s is not a regular file", target))
	}
	log.WithField("texture", rec.RelativePath).Info("regenerate: start")

	backup, err := e.Backups.Backup(ctx, target)
	if err != nil {
		return fail(history.StageBackup, err)
	}
	out.BackupPath = backup
	log.WithFields(log.Fields{"texture": rec.RelativePath, "backup": backup}).Info("regenerate: backed up")

	req := ai.GenerateRequest{
		Prompt:  ComposePrompt(rec.Description),
		Width:   rec.Metadata.Width,
		Height:  rec.Metadata.Height,
		Texture: true,
	}
	if err := req.Validate(); err != nil {
		return fail(history.StageGenerate, err)
	}
	data, err := e.Provider.Generate(ctx, req)
	if err != nil {
		return fail(history.StageGenerate, err)
	}
	if len(data) == 0 {
		return fail(history.StageGenerate, ai.ErrNoImage)
	}

	tmp := tempSibling(target)
	if err := writeSynced(tmp, data, info.Mode().Perm()); err != nil {
		os.Remove(tmp)
		return fail(history.StageWrite, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fail(history.StageReplace, err)
	}

	out.Status = history.StatusSuccess
	out.Stage = history.StageDone
	out.DurationMS = e.Clock.Now().Sub(start).Milliseconds()
	log.WithFields(log.Fields{
		"texture":     rec.RelativePath,
		"duration_ms": out.DurationMS,
	}).Info("regenerate: replaced")
	return out
}

// RegenerateAll runs RegenerateOne over every record in key order and always
// rewrites the update flag afterwards. Cancelling ctx stops the pass between
// textures; the texture in flight finishes without the cancellation.
func (e *Engine) RegenerateAll(ctx context.Context, store domain.Store) *history.Pass {
	pass := &history.Pass{
		ID:        uuid.NewString(),
		StartedAt: e.Clock.Now(),
		Total:     len(store),
	}
	log.WithFields(log.Fields{"pass": pass.ID, "textures": pass.Total}).Info("regenerate: pass started")

	work := context.WithoutCancel(ctx)
	for _, rel := range store.Keys() {
		if ctx.Err() != nil {
			pass.Interrupted = true
			pass.Outcomes = append(pass.Outcomes, history.Outcome{
				RelativePath: rel,
				Status:       history.StatusSkipped,
				Stage:        history.StageResolve,
				Error:        ctx.Err().Error(),
			})
			continue
		}
		rec := store[rel]
		if rec == nil {
			metrics.IncrementFailed()
			pass.Outcomes = append(pass.Outcomes, history.Outcome{
				RelativePath: rel,
				Status:       history.StatusFailed,
				Stage:        history.StageResolve,
				Error:        "no analysis record",
			})
			continue
		}
		out := e.RegenerateOne(work, rec)
		if out.OK() {
			pass.Succeeded++
			metrics.IncrementRegenerated()
		} else {
			metrics.IncrementFailed()
		}
		pass.Outcomes = append(pass.Outcomes, out)
	}
	pass.FinishedAt = e.Clock.Now()
	metrics.IncrementPasses()
	if pass.Interrupted {
		metrics.IncrementInterrupted()
	}

	log.WithFields(log.Fields{
		"pass":        pass.ID,
		"succeeded":   pass.Succeeded,
		"total":       pass.Total,
		"interrupted": pass.Interrupted,
	}).Infof("regenerate: pass complete %d/%d", pass.Succeeded, pass.Total)

	if err := e.WriteUpdateFlag(pass.FinishedAt); err != nil {
		log.WithError(err).Error("regenerate: update flag not written")
	}
	if e.History != nil {
		if err := e.History.Save(work, pass); err != nil {
			log.WithError(err).WithField("pass", pass.ID).Warn("regenerate: history not saved")
		}
	}
	return pass
}

// UpdateFlagPrefix starts the single line written to the update flag.
const UpdateFlagPrefix = "Textures updated at: "

// WriteUpdateFlag replaces the flag file with the completion timestamp.
func (e *Engine) WriteUpdateFlag(at time.Time) error {
	line := UpdateFlagPrefix + domain.FormatTimestamp(at) + "\n"
	if err := writeFileAtomic(e.Layout.UpdateFlagFile, []byte(line), 0o644); err != nil {
		return fmt.Errorf("regenerate: write flag %s: %w", e.Layout.UpdateFlagFile, err)
	}
	log.WithField("file", e.Layout.UpdateFlagFile).Info("regenerate: update flag written")
	return nil
}

// ReadUpdateFlag parses the timestamp written by WriteUpdateFlag.
func ReadUpdateFlag(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, UpdateFlagPrefix) {
		return time.Time{}, errors.New("regenerate: unrecognised update flag")
	}
	return time.Parse(time.RFC3339Nano, strings.TrimPrefix(line, UpdateFlagPrefix))
}

// ComposePrompt turns a stored description into a generation prompt.
func ComposePrompt(d ai.Description) string {
	return strings.TrimSpace(d.Description + " " + d.Caption)
}

func (e *Engine) resolve(rec *domain.Record) string {
	if rec.RelativePath != "" {
		p := e.Layout.Abs(rec.RelativePath)
		if _, err := os.Stat(p); err == nil || rec.Path == "" {
			return p
		}
	}
	if filepath.IsAbs(rec.Path) {
		return rec.Path
	}
	return e.Layout.Abs(rec.RelativePath)
}
