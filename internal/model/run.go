package model

import (
	"fmt"
	"time"
)

// RunStatus represents the state of an inventory generation run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusGenerating RunStatus = "generating"
	RunStatusWriting    RunStatus = "writing"
	RunStatusUploading  RunStatus = "uploading"
	RunStatusComplete   RunStatus = "complete"
	RunStatusSkipped    RunStatus = "skipped" // dataset already published
	RunStatusFailed     RunStatus = "failed"
)

// RunContext carries the parameters that pin a run's outputs. All synthesized
// values derive from Seed, county, and stratum alone; RunID only correlates
// logs and the run ledger.
type RunContext struct {
	RunID       string    `json:"run_id"`
	Community   string    `json:"community"`
	Seed        int64     `json:"seed"`
	Version     string    `json:"version"`
	VersionText string    `json:"version_text"`
	Vintage     int       `json:"vintage"`
	StartedAt   time.Time `json:"started_at"`
}

// OutputBase returns the community output stem, e.g.
// "hui_v2-0-0_Lumberton_NC_2010_rs9876".
func (rc RunContext) OutputBase() string {
	return fmt.Sprintf("hui_%s_%s_%d_rs%d", rc.VersionText, rc.Community, rc.Vintage, rc.Seed)
}

// DatasetTitle returns the catalog title for the community dataset.
func (rc RunContext) DatasetTitle() string {
	return fmt.Sprintf("Housing Unit Inventory %s %s", rc.Version, rc.Community)
}

// Run is one county generation run in the ledger.
type Run struct {
	ID        string     `json:"id"`
	Community string     `json:"community"`
	County    string     `json:"county"`
	Seed      int64      `json:"seed"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a finished county run.
type RunResult struct {
	Records       int    `json:"records"`
	Occupied      int    `json:"occupied"`
	Vacant        int    `json:"vacant"`
	GroupQuarters int    `json:"group_quarters"`
	TractPooled   int    `json:"tract_pooled"`
	CountyPooled  int    `json:"county_pooled"`
	OutputPath    string `json:"output_path,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
}
