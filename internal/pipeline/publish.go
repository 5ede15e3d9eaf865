package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/codebook"
	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/model"
	"github.com/sells-group/hui-cli/internal/resilience"
	"github.com/sells-group/hui-cli/pkg/incore"
)

// datasetType and datasetFormat tag catalog entries for downstream tooling.
const (
	datasetType   = "incore:housingUnitInventory"
	datasetFormat = "table"
)

// Upload registers the community dataset in the catalog and attaches the
// CSV. Both calls are boundary operations retried on transient failures;
// the synthesized table is already safe on disk either way.
func (p *Pipeline) Upload(ctx context.Context, rc model.RunContext, csvPath string) (string, error) {
	meta := incore.DatasetMeta{
		Title: rc.DatasetTitle(),
		Description: fmt.Sprintf(
			"Housing unit inventory for %s, %d census vintage, version %s, seed %d.",
			rc.Community, rc.Vintage, rc.Version, rc.Seed),
		DataType: datasetType,
		Format:   datasetFormat,
	}

	createCfg := resilience.DefaultRetryConfig()
	createCfg.OnRetry = resilience.RetryLogger("incore", "create dataset")
	ds, err := resilience.DoVal(ctx, createCfg, func(ctx context.Context) (*incore.Dataset, error) {
		return p.opts.Catalog.CreateDataset(ctx, meta)
	})
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: create dataset for %s", rc.Community)
	}

	attachCfg := resilience.DefaultRetryConfig()
	attachCfg.OnRetry = resilience.RetryLogger("incore", "attach file")
	if _, err := resilience.DoVal(ctx, attachCfg, func(ctx context.Context) (*incore.Dataset, error) {
		return p.opts.Catalog.AttachFile(ctx, ds.ID, csvPath)
	}); err != nil {
		return "", eris.Wrapf(err, "pipeline: attach %s to dataset %s", csvPath, ds.ID)
	}

	p.log.Info("published dataset",
		zap.String("community", rc.Community),
		zap.String("dataset_id", ds.ID),
		zap.String("file", csvPath),
	)
	return ds.ID, nil
}

// writeCodebook renders the markdown codebook beside the community table.
func (p *Pipeline) writeCodebook(rc model.RunContext, comm community.Community, records []model.HousingUnitRecord) (string, error) {
	path := p.layout.CommunityPath(comm.ID, rc.OutputBase()+"_codebook.md")
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: create codebook %s", path)
	}
	if err := codebook.Write(f, rc, comm, records); err != nil {
		_ = f.Close()
		return "", eris.Wrapf(err, "pipeline: write codebook for %s", comm.ID)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "pipeline: close codebook %s", path)
	}
	return path, nil
}
