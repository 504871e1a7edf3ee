package history

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for an unknown pass id.
var ErrNotFound = errors.New("pass not found")

// Repository persists regeneration passes.
type Repository interface {
	Save(ctx context.Context, p *Pass) error
	// Latest returns the most recent passes, newest first, without outcomes.
	Latest(ctx context.Context, limit int) ([]*Pass, error)
	// Get returns one pass with its outcomes.
	Get(ctx context.Context, id string) (*Pass, error)
}
