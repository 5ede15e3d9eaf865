package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hui-cli/internal/pipeline"
)

var publishCmd = &cobra.Command{
	Use:   "publish <community>",
	Short: "Publish an already-generated community table",
	Long: `Gate-check the catalog and upload a previously generated community CSV
without regenerating it. If the dataset already exists, its id is
reported and nothing is uploaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("publish"); err != nil {
			return err
		}

		set, err := loadCommunities()
		if err != nil {
			return err
		}
		comm, err := set.Get(args[0])
		if err != nil {
			return err
		}

		catalog := newCatalog()
		if catalog == nil {
			return eris.New("publish: incore.base_url is not configured")
		}

		layout := outputLayout()
		rc := pipeline.NewRunContext(comm, cfg.Generate)
		csvPath := layout.CommunityPath(comm.ID, rc.OutputBase()+".csv")
		if _, err := os.Stat(csvPath); err != nil {
			return eris.Wrapf(err, "publish: no generated table at %s (run generate first)", csvPath)
		}

		datasetID, _ := cmd.Flags().GetString("dataset-id")
		p := pipeline.New(nil, layout, cfg.Generate, pipeline.Options{
			Catalog:   catalog,
			DatasetID: datasetID,
		})

		decision, err := p.CheckDataset(ctx, rc)
		if err != nil {
			return err
		}
		switch decision.State {
		case pipeline.GateFound:
			fmt.Printf("%s: already published as dataset %s\n", comm.ID, decision.DatasetID)
			return nil
		case pipeline.GateAmbiguous:
			id, err := decision.Resolve(datasetID)
			if err != nil {
				return err
			}
			fmt.Printf("%s: resolved to existing dataset %s\n", comm.ID, id)
			return nil
		}

		id, err := p.Upload(ctx, rc, csvPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s: published as dataset %s\n", comm.ID, id)
		return nil
	},
}

func init() {
	publishCmd.Flags().String("dataset-id", "", "resolve an ambiguous catalog match to this dataset id")
	rootCmd.AddCommand(publishCmd)
}
