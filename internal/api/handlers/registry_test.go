package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-agent/backend/internal/dataset"
)

func TestRegistryPutGetDelete(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("sales")
	assert.False(t, ok)

	ds := dataset.NewWithColumns([]string{"revenue"}, []dataset.Row{{"revenue": 100.0}})
	r.Put(&RegistryEntry{Name: "sales", Fingerprint: "abc", Format: "csv", Data: ds})

	entry, ok := r.Get("sales")
	require.True(t, ok)
	assert.Equal(t, "abc", entry.Fingerprint)
	assert.Equal(t, 1, entry.Data.Len())

	r.Delete("sales")
	_, ok = r.Get("sales")
	assert.False(t, ok)
}

func TestRegistryReplaceAndNames(t *testing.T) {
	r := NewRegistry()
	r.Put(&RegistryEntry{Name: "zeta", Fingerprint: "v1"})
	r.Put(&RegistryEntry{Name: "alpha", Fingerprint: "v1"})
	r.Put(&RegistryEntry{Name: "zeta", Fingerprint: "v2"})

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())

	entry, ok := r.Get("zeta")
	require.True(t, ok)
	assert.Equal(t, "v2", entry.Fingerprint)
}
