// Package store persists census source snapshots and the run ledger so
// generation can replay offline from the last sync.
package store

import (
	"context"
	"time"

	"github.com/sells-group/hui-cli/internal/geo"
	"github.com/sells-group/hui-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	Community string          `json:"community,omitempty"`
	County    string          `json:"county,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// SyncRecord captures one source snapshot load for a county.
type SyncRecord struct {
	Source   string    `json:"source"`
	County   string    `json:"county"`
	Vintage  int       `json:"vintage"`
	Rows     int64     `json:"rows"`
	ETag     string    `json:"etag,omitempty"`
	SyncedAt time.Time `json:"synced_at"`
}

// Store defines the persistence interface for snapshots and runs.
type Store interface {
	// Run ledger
	CreateRun(ctx context.Context, community, county string, seed int64) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Unit count snapshots
	ReplaceUnitCounts(ctx context.Context, county string, vintage int, counts []model.UnitCount) (int64, error)
	UnitCounts(ctx context.Context, county string, vintage int) ([]model.UnitCount, error)

	// Income distribution snapshots
	UpsertDistributions(ctx context.Context, county string, vintage int, dists []model.Distribution) (int64, error)
	Distributions(ctx context.Context, county string, vintage int) ([]model.Distribution, error)

	// Crosswalk snapshots
	ReplaceCrosswalk(ctx context.Context, county string, vintage int, cw *geo.Crosswalk) (int64, error)
	Crosswalk(ctx context.Context, county string, vintage int) (*geo.Crosswalk, error)

	// Sync ledger
	RecordSync(ctx context.Context, rec SyncRecord) error
	LastSync(ctx context.Context, source, county string, vintage int) (*SyncRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
