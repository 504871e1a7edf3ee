package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/texture-automaton/internal/domain/history"
)

// PassRepository implements history.Repository on database/sql.
type PassRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ history.Repository = (*PassRepository)(nil)

func NewPassRepository(db *sql.DB, d Dialect) *PassRepository {
	return &PassRepository{db: db, dialect: d}
}

// Migrate creates the history tables when they do not exist yet.
func (r *PassRepository) Migrate(ctx context.Context) error {
	for _, stmt := range r.dialect.Schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate %s: %w", r.dialect.Name, err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *PassRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save replaces the pass and its outcomes in one transaction.
func (r *PassRepository) Save(ctx context.Context, p *history.Pass) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM regeneration_outcomes WHERE pass_id=?`), p.ID); err != nil {
		return fmt.Errorf("sqlstore: clear outcomes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM regeneration_passes WHERE id=?`), p.ID); err != nil {
		return fmt.Errorf("sqlstore: clear pass: %w", err)
	}

	const insertPass = `
INSERT INTO regeneration_passes
(id, started_at, finished_at, succeeded, total, interrupted)
VALUES (?,?,?,?,?,?)`
	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(insertPass),
		p.ID, toMillis(p.StartedAt), toMillis(p.FinishedAt), p.Succeeded, p.Total, boolToInt(p.Interrupted),
	); err != nil {
		return fmt.Errorf("sqlstore: insert pass: %w", err)
	}

	const insertOutcome = `
INSERT INTO regeneration_outcomes
(pass_id, seq, relative_path, status, stage, error_message, backup_path, duration_ms)
VALUES (?,?,?,?,?,?,?,?)`
	stmt, err := tx.PrepareContext(ctx, r.dialect.Rebind(insertOutcome))
	if err != nil {
		return fmt.Errorf("sqlstore: prepare outcome: %w", err)
	}
	defer stmt.Close()
	for i, o := range p.Outcomes {
		if _, err := stmt.ExecContext(ctx,
			p.ID, i, o.RelativePath, string(o.Status), string(o.Stage), o.Error, o.BackupPath, o.DurationMS,
		); err != nil {
			return fmt.Errorf("sqlstore: insert outcome %s: %w", o.RelativePath, err)
		}
	}
	return tx.Commit()
}

// Latest returns the newest passes first, without outcomes.
func (r *PassRepository) Latest(ctx context.Context, limit int) ([]*history.Pass, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, started_at, finished_at, succeeded, total, interrupted
FROM regeneration_passes
ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(q), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: latest: %w", err)
	}
	defer rows.Close()

	var out []*history.Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get loads one pass with its outcomes in their original order.
func (r *PassRepository) Get(ctx context.Context, id string) (*history.Pass, error) {
	const q = `
SELECT id, started_at, finished_at, succeeded, total, interrupted
FROM regeneration_passes WHERE id=?`
	p, err := scanPass(r.db.QueryRowContext(ctx, r.dialect.Rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	const qo = `
SELECT relative_path, status, stage, error_message, backup_path, duration_ms
FROM regeneration_outcomes WHERE pass_id=? ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(qo), id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o history.Outcome
		if err := rows.Scan(&o.RelativePath, &o.Status, &o.Stage, &o.Error, &o.BackupPath, &o.DurationMS); err != nil {
			return nil, fmt.Errorf("sqlstore: scan outcome: %w", err)
		}
		p.Outcomes = append(p.Outcomes, o)
	}
	return p, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(s scanner) (*history.Pass, error) {
	var (
		p                 history.Pass
		started, finished int64
		interrupted       int
	)
	if err := s.Scan(&p.ID, &started, &finished, &p.Succeeded, &p.Total, &interrupted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlstore: scan pass: %w", err)
	}
	p.StartedAt = fromMillis(started)
	p.FinishedAt = fromMillis(finished)
	p.Interrupted = interrupted != 0
	return &p, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
