package community

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "communities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeDefs(t, `
communities:
  Lumberton_NC:
    name: Lumberton, NC
    counties:
      - fips: "37155"
        name: Robeson County, NC
  Joplin_MO:
    name: Joplin, MO
    counties:
      - fips: "29097"
        name: Jasper County, MO
      - fips: "29145"
        name: Newton County, MO
`)

	set, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Joplin_MO", "Lumberton_NC"}, set.IDs())

	c, err := set.Get("Joplin_MO")
	require.NoError(t, err)
	assert.Equal(t, "Joplin_MO", c.ID)
	assert.Equal(t, "Joplin, MO", c.Name)
	require.Len(t, c.Counties, 2)
	// County order follows the YAML list, it decides concat order
	assert.Equal(t, "29097", c.Counties[0].FIPS)
	assert.Equal(t, "29145", c.Counties[1].FIPS)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("empty definitions", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeDefs(t, "communities: {}\n"))
		assert.Error(t, err)
	})

	t.Run("no counties", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeDefs(t, `
communities:
  Empty_XX:
    name: Empty
    counties: []
`))
		assert.Error(t, err)
	})

	t.Run("bad fips", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeDefs(t, `
communities:
  Bad_XX:
    name: Bad
    counties:
      - fips: "371"
        name: Truncated
`))
		assert.Error(t, err)
	})

	t.Run("duplicate county", func(t *testing.T) {
		t.Parallel()
		_, err := Load(writeDefs(t, `
communities:
  Dup_XX:
    name: Dup
    counties:
      - fips: "37155"
        name: Robeson
      - fips: "37155"
        name: Robeson again
`))
		assert.Error(t, err)
	})
}

func TestGetUnknown(t *testing.T) {
	t.Parallel()

	path := writeDefs(t, `
communities:
  Lumberton_NC:
    name: Lumberton, NC
    counties:
      - fips: "37155"
        name: Robeson County, NC
`)
	set, err := Load(path)
	require.NoError(t, err)

	_, err = set.Get("Nowhere_ZZ")
	assert.Error(t, err)
}
