package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hui-cli/internal/census"
	"github.com/sells-group/hui-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Snapshot cache and run ledger summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		set, err := loadCommunities()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		defer func() { _ = st.Close() }()

		fmt.Println("Snapshot cache:")
		for _, id := range set.IDs() {
			comm, err := set.Get(id)
			if err != nil {
				return err
			}
			for _, county := range comm.Counties {
				units := lastSyncLabel(ctx, st, census.SourceUnits, county.FIPS)
				incomes := lastSyncLabel(ctx, st, census.SourceIncomes, county.FIPS)
				fmt.Printf("  %-20s %s (%s)  units: %s  incomes: %s\n",
					id, county.FIPS, county.Name, units, incomes)
			}
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 15})
		if err != nil {
			return eris.Wrap(err, "status: list runs")
		}
		fmt.Println("\nRecent runs:")
		if len(runs) == 0 {
			fmt.Println("  none")
			return nil
		}
		for _, run := range runs {
			line := fmt.Sprintf("  %s  %-12s county %s  seed %d  %s",
				run.CreatedAt.Format("2006-01-02 15:04"), run.Community, run.County, run.Seed, run.Status)
			if run.Result != nil {
				line += fmt.Sprintf("  (%d records, %dms)", run.Result.Records, run.Result.DurationMS)
			}
			fmt.Println(line)
		}
		return nil
	},
}

// lastSyncLabel renders the last snapshot sync for one (source, county)
// pair, or "never" when no sync has been recorded.
func lastSyncLabel(ctx context.Context, st store.Store, source, county string) string {
	rec, err := st.LastSync(ctx, source, county, cfg.Generate.Vintage)
	if err != nil || rec == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%d rows)", rec.SyncedAt.Format("2006-01-02"), rec.Rows)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
