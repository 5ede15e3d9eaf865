package geo

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hui-cli/internal/model"
)

func TestCrosswalkAdd(t *testing.T) {
	t.Parallel()

	c := NewCrosswalk()
	require.NoError(t, c.Add("371559701001000", "37155970100"))

	tract, ok := c.TractOf("371559701001000")
	require.True(t, ok)
	assert.Equal(t, "37155970100", tract)
	assert.Equal(t, 1, c.Len())

	t.Run("re-add same mapping", func(t *testing.T) {
		assert.NoError(t, c.Add("371559701001000", "37155970100"))
		assert.Equal(t, 1, c.Len())
	})

	t.Run("tract must prefix block", func(t *testing.T) {
		assert.Error(t, c.Add("371559701001001", "37155970200"))
	})

	t.Run("malformed block", func(t *testing.T) {
		assert.Error(t, c.Add("37155", "37155970100"))
	})
}

func TestStructural(t *testing.T) {
	t.Parallel()

	c, err := Structural([]string{"371559701001000", "371559701001001", "371559702002000"})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	tract, ok := c.TractOf("371559702002000")
	require.True(t, ok)
	assert.Equal(t, "37155970200", tract)

	_, err = Structural([]string{"371559701001000", "bad"})
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	t.Parallel()

	cw, err := Structural([]string{"371559701001000", "371559702002000"})
	require.NoError(t, err)

	counts := []model.UnitCount{
		{BlockID: "371559701001000", Count: 3},
		{BlockID: "371559702002000", Count: 1},
	}

	joined, err := Join(counts, cw)
	require.NoError(t, err)
	require.Len(t, joined, 2)
	assert.Equal(t, "37155970100", joined[0].TractID)
	assert.Equal(t, "37155970200", joined[1].TractID)
	// Input untouched
	assert.Empty(t, counts[0].TractID)
}

func TestJoinUnmatchedBlock(t *testing.T) {
	t.Parallel()

	cw, err := Structural([]string{"371559701001000"})
	require.NoError(t, err)

	_, err = Join([]model.UnitCount{{BlockID: "999999999999999", Count: 1}}, cw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnmatchedBlock))
	assert.Contains(t, err.Error(), "999999999999999")
}

func TestCrosswalkWriteCSV(t *testing.T) {
	t.Parallel()

	c := NewCrosswalk()
	require.NoError(t, c.Add("371559701001000", "37155970100"))
	require.NoError(t, c.Add("371559701001001", "37155970100"))
	c.AddPoint("371559701001000", Point{Lat: 34.61, Lon: -79.01})

	var sb strings.Builder
	require.NoError(t, c.WriteCSV(&sb))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "blockid,tractid,lat,lon", lines[0])
	assert.Equal(t, "371559701001000,37155970100,34.61,-79.01", lines[1])
	assert.Equal(t, "371559701001001,37155970100,,", lines[2])
}
