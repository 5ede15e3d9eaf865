package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hui-cli/internal/model"
	"github.com/sells-group/hui-cli/internal/resilience"
	"github.com/sells-group/hui-cli/pkg/incore"
)

// ErrAmbiguousDataset marks a gate check that matched more than one catalog
// entry. Never auto-resolved; the caller must name the dataset explicitly.
var ErrAmbiguousDataset = eris.New("pipeline: multiple catalog datasets match title")

// GateState tags the publish gate decision.
type GateState int

const (
	GateNotFound GateState = iota
	GateFound
	GateAmbiguous
)

// Decision is the publish gate outcome. Exactly one of the states holds:
// Found carries the existing dataset id, Ambiguous carries the candidates.
type Decision struct {
	State      GateState
	DatasetID  string
	Candidates []incore.Dataset
}

// EvaluateGate decides whether a dataset already exists. A single match
// counts only when both the title and the first attached filename agree;
// anything else regenerates. Two or more matches are ambiguous.
func EvaluateGate(matches []incore.Dataset, title, filename string) Decision {
	switch len(matches) {
	case 0:
		return Decision{State: GateNotFound}
	case 1:
		ds := matches[0]
		if ds.Title == title && len(ds.FileDescriptors) > 0 && ds.FileDescriptors[0].Filename == filename {
			return Decision{State: GateFound, DatasetID: ds.ID}
		}
		return Decision{State: GateNotFound}
	default:
		return Decision{State: GateAmbiguous, Candidates: matches}
	}
}

// Resolve applies an explicit dataset id to an ambiguous decision. The id
// must name one of the candidates; without one the ambiguity is an error
// listing them.
func (d Decision) Resolve(datasetID string) (string, error) {
	if d.State != GateAmbiguous {
		return d.DatasetID, nil
	}
	ids := make([]string, len(d.Candidates))
	for i, c := range d.Candidates {
		ids[i] = c.ID
		if datasetID != "" && c.ID == datasetID {
			return datasetID, nil
		}
	}
	if datasetID != "" {
		return "", eris.Errorf("pipeline: --dataset-id %s is not among catalog matches [%s]",
			datasetID, strings.Join(ids, ", "))
	}
	return "", eris.Wrapf(ErrAmbiguousDataset,
		"candidates [%s]; pass --dataset-id <id> to resolve", strings.Join(ids, ", "))
}

// CheckDataset queries the catalog and evaluates the publish gate for a
// run. The search is a boundary call and retries on transient failures.
func (p *Pipeline) CheckDataset(ctx context.Context, rc model.RunContext) (Decision, error) {
	title := rc.DatasetTitle()
	filename := rc.OutputBase() + ".csv"

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("incore", "search datasets")
	matches, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]incore.Dataset, error) {
		return p.opts.Catalog.SearchDatasets(ctx, title)
	})
	if err != nil {
		return Decision{}, eris.Wrapf(err, "pipeline: search catalog for %q", title)
	}
	return EvaluateGate(matches, title, filename), nil
}
