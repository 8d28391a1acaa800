package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	data := []byte("region,revenue\nEast,100\nWest,200\n")

	ds, err := LoadCSV(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "revenue"}, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "East", ds.Rows[0]["region"])
	assert.Equal(t, "100", ds.Rows[0]["revenue"])
	assert.Equal(t, "West", ds.Rows[1]["region"])
}

func TestLoadCSVTrimsWhitespace(t *testing.T) {
	data := []byte(" region , revenue \nEast , 100 \n")

	ds, err := LoadCSV(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "revenue"}, ds.Columns)
	assert.Equal(t, "East", ds.Rows[0]["region"])
	assert.Equal(t, "100", ds.Rows[0]["revenue"])
}

func TestLoadCSVRaggedRows(t *testing.T) {
	// Extra cells are dropped, short rows leave the missing column nil.
	data := []byte("region,revenue\nEast,100,stray\nWest\n")

	ds, err := LoadCSV(data)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	assert.Equal(t, "100", ds.Rows[0]["revenue"])
	assert.NotContains(t, ds.Columns, "stray")
	assert.Equal(t, "West", ds.Rows[1]["region"])
	assert.Nil(t, ds.Rows[1]["revenue"])
}

func TestLoadCSVSkipsMalformedRows(t *testing.T) {
	// The unterminated quote makes the last record unreadable; the upload
	// still succeeds with the rows before it.
	data := []byte("region,revenue\nEast,100\nWest,\"200\n")

	ds, err := LoadCSV(data)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, "East", ds.Rows[0]["region"])
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "headers")

	_, err = LoadCSV([]byte("region,revenue\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}
