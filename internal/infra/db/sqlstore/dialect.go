// Package sqlstore holds the regeneration history schema and queries shared
// by the sqlite, mysql and postgres drivers.
package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
	Schema   []string
}

var SQLite = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS regeneration_passes (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	interrupted INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_passes_started ON regeneration_passes (started_at)`,
		`CREATE TABLE IF NOT EXISTS regeneration_outcomes (
	pass_id       TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	relative_path TEXT NOT NULL,
	status        TEXT NOT NULL,
	stage         TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	backup_path   TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL,
	PRIMARY KEY (pass_id, seq)
)`,
	},
}

var MySQL = Dialect{
	Name: "mysql",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS regeneration_passes (
	id          VARCHAR(36) PRIMARY KEY,
	started_at  BIGINT NOT NULL,
	finished_at BIGINT NOT NULL,
	succeeded   INT NOT NULL,
	total       INT NOT NULL,
	interrupted TINYINT NOT NULL DEFAULT 0,
	KEY idx_passes_started (started_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS regeneration_outcomes (
	pass_id       VARCHAR(36) NOT NULL,
	seq           INT NOT NULL,
	relative_path VARCHAR(1024) NOT NULL,
	status        VARCHAR(16) NOT NULL,
	stage         VARCHAR(16) NOT NULL,
	error_message TEXT NOT NULL,
	backup_path   VARCHAR(2048) NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL,
	PRIMARY KEY (pass_id, seq)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

var Postgres = Dialect{
	Name:     "postgres",
	Numbered: true,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS regeneration_passes (
	id          VARCHAR(36) PRIMARY KEY,
	started_at  BIGINT NOT NULL,
	finished_at BIGINT NOT NULL,
	succeeded   INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	interrupted SMALLINT NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_passes_started ON regeneration_passes (started_at)`,
		`CREATE TABLE IF NOT EXISTS regeneration_outcomes (
	pass_id       VARCHAR(36) NOT NULL,
	seq           INTEGER NOT NULL,
	relative_path TEXT NOT NULL,
	status        VARCHAR(16) NOT NULL,
	stage         VARCHAR(16) NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	backup_path   TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL,
	PRIMARY KEY (pass_id, seq)
)`,
	},
}

// Rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
