// Package pipeline orchestrates a community run: the catalog publish gate,
// per-county generation, ordered aggregation, the dual-path table write,
// the codebook, and the catalog upload.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hui-cli/internal/census"
	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/config"
	"github.com/sells-group/hui-cli/internal/dirs"
	"github.com/sells-group/hui-cli/internal/model"
	"github.com/sells-group/hui-cli/internal/store"
	"github.com/sells-group/hui-cli/pkg/incore"
)

// Options configures optional pipeline collaborators and run switches.
// Zero values disable the matching stage: no Catalog means no gate and no
// upload, no Store means no run ledger.
type Options struct {
	Store       store.Store
	Catalog     incore.Client
	SkipUpload  bool
	DatasetID   string // explicit resolution when the gate is ambiguous
	CountyLimit int    // concurrent county generations, default from config
}

// Pipeline generates and publishes community housing unit inventories.
type Pipeline struct {
	src    census.Source
	layout dirs.Layout
	gen    config.GenerateConfig
	opts   Options
	log    *zap.Logger
}

// New builds a pipeline over a count/distribution source and output layout.
func New(src census.Source, layout dirs.Layout, gen config.GenerateConfig, opts Options) *Pipeline {
	if opts.CountyLimit <= 0 {
		opts.CountyLimit = gen.CountyLimit
	}
	if opts.CountyLimit <= 0 {
		opts.CountyLimit = 1
	}
	return &Pipeline{
		src:    src,
		layout: layout,
		gen:    gen,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "pipeline")),
	}
}

// Outcome summarizes one community run.
type Outcome struct {
	RunContext   model.RunContext
	Skipped      bool   // dataset already published, nothing regenerated
	DatasetID    string // existing id when skipped, new id when uploaded
	Records      int
	OutputPath   string
	CommonPath   string
	CodebookPath string
}

// RunCommunity executes the full pipeline for one community. When the
// catalog already holds the dataset the run short-circuits without
// generating anything.
func (p *Pipeline) RunCommunity(ctx context.Context, comm community.Community) (*Outcome, error) {
	rc := p.newRunContext(comm)
	log := p.log.With(
		zap.String("community", comm.ID),
		zap.String("run_id", rc.RunID),
		zap.Int64("seed", rc.Seed),
	)
	filename := rc.OutputBase() + ".csv"

	if p.opts.Catalog != nil {
		decision, err := p.CheckDataset(ctx, rc)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: gate check for %s", comm.ID)
		}
		switch decision.State {
		case GateFound:
			log.Info("dataset already published, skipping generation",
				zap.String("dataset_id", decision.DatasetID))
			return &Outcome{RunContext: rc, Skipped: true, DatasetID: decision.DatasetID}, nil
		case GateAmbiguous:
			id, err := decision.Resolve(p.opts.DatasetID)
			if err != nil {
				return nil, err
			}
			log.Info("ambiguous catalog matches resolved explicitly",
				zap.String("dataset_id", id))
			return &Outcome{RunContext: rc, Skipped: true, DatasetID: id}, nil
		}
	}

	results, err := p.generateCounties(ctx, rc, comm)
	if err != nil {
		return nil, err
	}

	table, records, err := Aggregate(comm, results)
	if err != nil {
		return nil, err
	}

	if err := p.layout.Ensure(comm.ID); err != nil {
		return nil, eris.Wrapf(err, "pipeline: prepare output dirs for %s", comm.ID)
	}
	runPath := p.layout.CommunityPath(comm.ID, filename)
	commonPath := p.layout.CommonPath(filename)
	if err := WriteTable(table, runPath, commonPath); err != nil {
		return nil, eris.Wrapf(err, "pipeline: write %s table", comm.ID)
	}
	log.Info("wrote community table",
		zap.Int("records", len(records)),
		zap.String("run_path", runPath),
		zap.String("common_path", commonPath),
	)

	codebookPath, err := p.writeCodebook(rc, comm, records)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		RunContext:   rc,
		Records:      len(records),
		OutputPath:   runPath,
		CommonPath:   commonPath,
		CodebookPath: codebookPath,
	}
	if p.opts.Catalog != nil && !p.opts.SkipUpload {
		id, err := p.Upload(ctx, rc, runPath)
		if err != nil {
			return nil, err
		}
		outcome.DatasetID = id
	}
	return outcome, nil
}

func (p *Pipeline) newRunContext(comm community.Community) model.RunContext {
	return NewRunContext(comm, p.gen)
}

// NewRunContext pins the run parameters for a community. Everything the
// synthesized output depends on is fixed here.
func NewRunContext(comm community.Community, gen config.GenerateConfig) model.RunContext {
	return model.RunContext{
		RunID:       uuid.NewString(),
		Community:   comm.ID,
		Seed:        gen.Seed,
		Version:     gen.Version,
		VersionText: gen.VersionText,
		Vintage:     gen.Vintage,
		StartedAt:   time.Now().UTC(),
	}
}

// generateCounties runs county generation on a bounded group. Failures are
// isolated per county so siblings finish, then reported together; any
// failed county fails the community because the published table must be
// complete.
func (p *Pipeline) generateCounties(ctx context.Context, rc model.RunContext, comm community.Community) ([]*CountyResult, error) {
	results := make([]*CountyResult, len(comm.Counties))
	countyErrs := make([]error, len(comm.Counties))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.CountyLimit)
	for i, county := range comm.Counties {
		g.Go(func() error {
			res, err := p.generateCounty(gctx, rc, county)
			if err != nil {
				countyErrs[i] = fmt.Errorf("county %s (%s): %w", county.FIPS, county.Name, err)
				return nil // isolate: let sibling counties finish
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range countyErrs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return nil, eris.Wrapf(errors.Join(failed...),
			"pipeline: %d of %d counties failed for %s", len(failed), len(comm.Counties), comm.ID)
	}
	return results, nil
}
