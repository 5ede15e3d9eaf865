package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate [community...]",
	Short: "Generate community housing unit inventories",
	Long: `Generate the housing unit inventory for one or more communities.

For each community: check the catalog for an existing dataset (skip if
published), generate every county in parallel, concatenate in county-list
order, write the CSV to the community and shared output paths, render the
codebook, and upload to the catalog.

With no arguments, all defined communities are generated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "generate"))

		if err := applyGenerateFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		set, err := loadCommunities()
		if err != nil {
			return err
		}
		comms, err := selectCommunities(set, args)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "generate")
		}
		defer func() { _ = st.Close() }()

		skipUpload, _ := cmd.Flags().GetBool("skip-upload")
		datasetID, _ := cmd.Flags().GetString("dataset-id")
		limit, _ := cmd.Flags().GetInt("limit")

		p := pipeline.New(newSource(st), outputLayout(), cfg.Generate, pipeline.Options{
			Store:       st,
			Catalog:     newCatalog(),
			SkipUpload:  skipUpload,
			DatasetID:   datasetID,
			CountyLimit: limit,
		})

		for _, comm := range comms {
			log.Info("running community", zap.String("community", comm.ID))
			outcome, err := p.RunCommunity(ctx, comm)
			if err != nil {
				return eris.Wrapf(err, "generate %s", comm.ID)
			}
			if outcome.Skipped {
				fmt.Printf("%s: already published as dataset %s\n", comm.ID, outcome.DatasetID)
				continue
			}
			fmt.Printf("%s: %d records -> %s\n", comm.ID, outcome.Records, outcome.OutputPath)
			if outcome.DatasetID != "" {
				fmt.Printf("%s: published as dataset %s\n", comm.ID, outcome.DatasetID)
			}
		}
		return nil
	},
}

// applyGenerateFlags folds explicit flag values over the configured
// generation parameters.
func applyGenerateFlags(cmd *cobra.Command) error {
	if cmd.Flags().Changed("seed") {
		seed, err := cmd.Flags().GetInt64("seed")
		if err != nil {
			return eris.Wrap(err, "generate: parse --seed")
		}
		cfg.Generate.Seed = seed
	}
	if cmd.Flags().Changed("vintage") {
		vintage, err := cmd.Flags().GetInt("vintage")
		if err != nil {
			return eris.Wrap(err, "generate: parse --vintage")
		}
		cfg.Generate.Vintage = vintage
	}
	return nil
}

func init() {
	generateCmd.Flags().Bool("skip-upload", false, "write outputs but do not upload to the catalog")
	generateCmd.Flags().String("dataset-id", "", "resolve an ambiguous catalog match to this dataset id")
	generateCmd.Flags().Int64("seed", 0, "override the configured random seed")
	generateCmd.Flags().Int("vintage", 0, "override the configured census vintage year")
	generateCmd.Flags().Int("limit", 0, "max concurrent county generations (default from config)")
	rootCmd.AddCommand(generateCmd)
}
