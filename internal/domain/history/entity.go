package history

import "time"

// Status of a single texture inside a pass.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Stage names the step of a regeneration where an outcome was decided.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageBackup   Stage = "backup"
	StageGenerate Stage = "generate"
	StageWrite    Stage = "write"
	StageReplace  Stage = "replace"
	StageDone     Stage = "done"
)

// Outcome is the result of regenerating one texture.
type Outcome struct {
	RelativePath string `json:"relative_path"`
	Status       Status `json:"status"`
	Stage        Stage  `json:"stage"`
	Error        string `json:"error,omitempty"`
	BackupPath   string `json:"backup_path,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// OK reports whether the texture was replaced.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Pass aggregates one sweep over the whole analysis store.
type Pass struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Succeeded   int       `json:"succeeded"`
	Total       int       `json:"total"`
	Interrupted bool      `json:"interrupted"`
	Outcomes    []Outcome `json:"outcomes,omitempty"`
}
