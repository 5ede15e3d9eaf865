package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hui-cli/internal/geo"
	"github.com/sells-group/hui-cli/internal/tiger"
)

var crosswalkCmd = &cobra.Command{
	Use:   "crosswalk",
	Short: "Build a block-to-tract crosswalk from TIGER TABBLOCK data",
	Long: `Build the block-to-tract crosswalk for a county from a TIGER/Line
TABBLOCK shapefile, either a local file (--shapefile) or downloaded from
the census mirror (--county).

The crosswalk can be exported to CSV (--csv) and saved into the snapshot
store (--save) for use during generation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shpPath, _ := cmd.Flags().GetString("shapefile")
		county, _ := cmd.Flags().GetString("county")
		csvPath, _ := cmd.Flags().GetString("csv")
		save, _ := cmd.Flags().GetBool("save")

		switch {
		case shpPath == "" && county == "":
			return eris.New("crosswalk: pass --shapefile or --county")
		case shpPath != "" && county != "":
			return eris.New("crosswalk: --shapefile and --county are mutually exclusive")
		case county != "" && len(county) != 5:
			return eris.Errorf("crosswalk: county fips %q is not 5 digits", county)
		}

		if shpPath == "" {
			url := tiger.TABBLOCKURL(cfg.Generate.Vintage, county)
			d, err := newFetchClient().Downloader(url)
			if err != nil {
				return err
			}
			shpPath, err = tiger.Download(ctx, d, url, cfg.Fetch.TempDir)
			if err != nil {
				return err
			}
		}

		cw, err := tiger.ParseTABBLOCK(shpPath)
		if err != nil {
			return err
		}
		fmt.Printf("Crosswalk: %d blocks\n", cw.Len())

		if csvPath != "" {
			if err := exportCrosswalkCSV(cw, csvPath); err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", csvPath)
		}

		if save {
			if err := cfg.Validate("generate"); err != nil {
				return err
			}
			if county == "" {
				county = countyOfCrosswalk(cw)
			}
			st, err := openStore(ctx)
			if err != nil {
				return eris.Wrap(err, "crosswalk")
			}
			defer func() { _ = st.Close() }()

			n, err := st.ReplaceCrosswalk(ctx, county, cfg.Generate.Vintage, cw)
			if err != nil {
				return eris.Wrapf(err, "crosswalk: save county %s", county)
			}
			fmt.Printf("Saved %d blocks for county %s\n", n, county)
		}
		return nil
	},
}

func exportCrosswalkCSV(cw *geo.Crosswalk, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "crosswalk: create %s", path)
	}
	if err := cw.WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "crosswalk: close %s", path)
}

// countyOfCrosswalk reads the county FIPS off the first block GEOID. A
// TABBLOCK county file holds exactly one county.
func countyOfCrosswalk(cw *geo.Crosswalk) string {
	blocks := cw.Blocks()
	if len(blocks) == 0 {
		return ""
	}
	return blocks[0][:5]
}

func init() {
	crosswalkCmd.Flags().String("shapefile", "", "path to a local TABBLOCK .shp file")
	crosswalkCmd.Flags().String("county", "", "5-digit county FIPS to download TABBLOCK data for")
	crosswalkCmd.Flags().String("csv", "", "export the crosswalk to this CSV path")
	crosswalkCmd.Flags().Bool("save", false, "save the crosswalk into the snapshot store")
	rootCmd.AddCommand(crosswalkCmd)
}
