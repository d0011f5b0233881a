package bridge

import (
	"context"

	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

// StartResult is the outcome of beginning or resuming a test.
type StartResult struct {
	Message string
	// HasProgress is the server's hint; nil when the server did not say.
	HasProgress *bool
}

// LoadResult is a stored assignment. Found is false when the student has no
// saved progress yet.
type LoadResult struct {
	Values  map[string]int
	Found   bool
	SavedAt string
}

// SubmitResult is the server's scoring of a final submission.
type SubmitResult struct {
	TotalScore      int
	PrimaryInterest string
	PrimaryLevel    int
	RedirectURL     string
	Message         string
}

// Store is a remote progress store. Every method must leave the caller's
// session untouched; errors are *rmib.NetworkError or *rmib.DataIntegrityError.
type Store interface {
	Start(ctx context.Context) (*StartResult, error)
	Load(ctx context.Context, mode rmib.Mode) (*LoadResult, error)
	Save(ctx context.Context, snap rmib.Snapshot) error
	Submit(ctx context.Context, snap rmib.Snapshot) (*SubmitResult, error)
}

// PayloadFor builds the wire body: levels for level mode, rankings for rank mode.
func PayloadFor(snap rmib.Snapshot) model.ProgressPayload {
	if snap.Mode == rmib.ModeRank {
		return model.ProgressPayload{Rankings: snap.Values}
	}
	return model.ProgressPayload{Levels: snap.Values}
}

// valuesFor picks the map matching the mode and falls back to the other key,
// since older pages always sent levels.
func valuesFor(mode rmib.Mode, levels, rankings map[string]int) map[string]int {
	primary, secondary := levels, rankings
	if mode == rmib.ModeRank {
		primary, secondary = rankings, levels
	}
	if len(primary) > 0 {
		return primary
	}
	return secondary
}
