package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the fields a command mode depends on are set. Modes:
// "generate" (synthesis + output), "sync" (snapshot cache warm), and
// "publish" (catalog upload).
func (c *Config) Validate(mode string) error {
	var problems []string

	common := func() {
		if c.Generate.Seed == 0 {
			problems = append(problems, "generate.seed is required")
		}
		if c.Generate.Vintage == 0 {
			problems = append(problems, "generate.vintage is required")
		}
		if c.Generate.CountyLimit < 1 || c.Generate.CountyLimit > 32 {
			problems = append(problems, "generate.county_limit must be between 1 and 32")
		}
		if c.Communities == "" {
			problems = append(problems, "communities path is required")
		}
	}

	store := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "generate":
		common()
		store()
		if c.Output.Root == "" {
			problems = append(problems, "output.root is required")
		}
	case "sync":
		common()
		store()
		if c.Census.BaseURL == "" {
			problems = append(problems, "census.base_url is required")
		}
	case "publish":
		common()
		if c.InCore.BaseURL == "" {
			problems = append(problems, "incore.base_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
