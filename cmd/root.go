package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/hui-cli/internal/census"
	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/config"
	"github.com/sells-group/hui-cli/internal/dirs"
	"github.com/sells-group/hui-cli/internal/fetcher"
	"github.com/sells-group/hui-cli/internal/store"
	"github.com/sells-group/hui-cli/pkg/incore"

	"github.com/rotisserie/eris"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hui-cli",
	Short: "Housing unit inventory synthesizer",
	Long:  "Fuses block-level census unit counts with tract-level income distributions into per-unit synthetic housing inventories, one CSV per community, published to the IN-CORE dataset catalog.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openStore builds the snapshot/ledger store for the configured driver.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newFetchClient builds the scheme-routing download client from config.
func newFetchClient() *fetcher.Client {
	return &fetcher.Client{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:   "hui-cli",
			Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:  cfg.Fetch.MaxRetries,
			DefaultRate: rate.Limit(cfg.Fetch.RatePerSec),
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		}),
	}
}

// newSource builds the census source, reading through the snapshot store
// when one is available.
func newSource(st store.Store) census.Source {
	api := census.NewAPISource(newFetchClient().HTTP, cfg.Census, cfg.Generate.Vintage)
	if st == nil {
		return api
	}
	return census.NewCached(api, st)
}

// newCatalog builds the dataset catalog client, nil when unconfigured.
func newCatalog() incore.Client {
	if cfg.InCore.BaseURL == "" {
		return nil
	}
	return incore.NewClient(cfg.InCore.Token, incore.WithBaseURL(cfg.InCore.BaseURL))
}

func outputLayout() dirs.Layout {
	return dirs.Layout{Root: cfg.Output.Root, CommonDir: cfg.Output.CommonDir}
}

func loadCommunities() (*community.Set, error) {
	set, err := community.Load(cfg.Communities)
	if err != nil {
		return nil, eris.Wrap(err, "load community definitions")
	}
	return set, nil
}

// selectCommunities resolves command args to community definitions; no
// args means every defined community in id order.
func selectCommunities(set *community.Set, args []string) ([]community.Community, error) {
	ids := args
	if len(ids) == 0 {
		ids = set.IDs()
	}
	comms := make([]community.Community, 0, len(ids))
	for _, id := range ids {
		c, err := set.Get(id)
		if err != nil {
			return nil, err
		}
		comms = append(comms, c)
	}
	return comms, nil
}
