package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hui-cli/internal/community"
	"github.com/sells-group/hui-cli/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"generate", "sources", "crosswalk", "publish", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hui-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestGenerateCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"skip-upload", "dataset-id", "seed", "vintage", "limit"} {
		flag := generateCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "generate should have --%s flag", flagName)
	}
}

func TestPublishCommand_Flags(t *testing.T) {
	flag := publishCmd.Flags().Lookup("dataset-id")
	require.NotNil(t, flag, "publish command should have --dataset-id flag")
}

func TestSourcesCommand_HasSync(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range sourcesCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["sync"], "sources should have subcommand sync")
}

func TestCrosswalkCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"shapefile", "county", "csv", "save"} {
		flag := crosswalkCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "crosswalk should have --%s flag", flagName)
	}
}

func TestApplyGenerateFlags_OverridesChanged(t *testing.T) {
	cfg = &config.Config{Generate: config.GenerateConfig{Seed: 1234, Vintage: 2010}}

	require.NoError(t, generateCmd.Flags().Set("seed", "9876"))
	t.Cleanup(func() {
		_ = generateCmd.Flags().Set("seed", "0")
		generateCmd.Flags().Lookup("seed").Changed = false
	})

	require.NoError(t, applyGenerateFlags(generateCmd))
	assert.Equal(t, int64(9876), cfg.Generate.Seed)
	assert.Equal(t, 2010, cfg.Generate.Vintage, "untouched flags keep configured values")
}

func TestSelectCommunities(t *testing.T) {
	set := communitySet(t, `
communities:
  lumberton:
    name: Lumberton, NC
    counties:
      - fips: "37155"
        name: Robeson
  joplin:
    name: Joplin, MO
    counties:
      - fips: "29097"
        name: Jasper
`)

	all, err := selectCommunities(set, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	one, err := selectCommunities(set, []string{"joplin"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "joplin", one[0].ID)

	_, err = selectCommunities(set, []string{"nowhere"})
	assert.Error(t, err)
}

func communitySet(t *testing.T, yaml string) *community.Set {
	t.Helper()
	path := filepath.Join(t.TempDir(), "communities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	set, err := community.Load(path)
	require.NoError(t, err)
	return set
}
