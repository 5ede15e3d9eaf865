package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hui-cli/internal/census"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Census source snapshot cache",
	Long:  "Warm and inspect the local snapshot cache of census unit counts and income distributions.",
}

var sourcesSyncCmd = &cobra.Command{
	Use:   "sync [community...]",
	Short: "Sync county snapshots from the census API",
	Long: `Pull block unit counts and tract income distributions for every county
of the named communities into the snapshot store, so generation can run
offline and reproducibly from the cached inputs.

With no arguments, all defined communities are synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "sources.sync"))

		if err := cfg.Validate("sync"); err != nil {
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
			return eris.Wrap(err, "sources sync")
		}
		defer func() { _ = st.Close() }()

		api := census.NewAPISource(newFetchClient().HTTP, cfg.Census, cfg.Generate.Vintage)
		syncer := census.NewSyncer(api, st)

		synced := 0
		for _, comm := range comms {
			for _, county := range comm.Counties {
				log.Info("syncing county",
					zap.String("community", comm.ID),
					zap.String("county", county.FIPS),
				)
				if err := syncer.SyncCounty(ctx, county.FIPS); err != nil {
					return eris.Wrapf(err, "sources sync: county %s", county.FIPS)
				}
				synced++
			}
		}

		fmt.Printf("Synced %d counties\n", synced)
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesSyncCmd)
	rootCmd.AddCommand(sourcesCmd)
}
