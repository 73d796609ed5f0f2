package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	db, err := OpenBolt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Backend{
		"memory": NewMemory(),
		"bolt":   db,
	}
}

func TestBackendContract(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := b.Get("absent")
			require.NoError(t, err)
			assert.Equal(t, "", got)

			require.NoError(t, b.Set("k", "v1"))
			got, err = b.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v1", got)

			require.NoError(t, b.Set("k", "v2"))
			got, err = b.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v2", got)

			require.NoError(t, b.Remove("k"))
			require.NoError(t, b.Remove("k"))
			got, err = b.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "", got)

			require.NoError(t, b.Set("a", "1"))
			require.NoError(t, b.Set("b", "2"))
			require.NoError(t, b.Clear())
			got, err = b.Get("a")
			require.NoError(t, err)
			assert.Equal(t, "", got)
		})
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, db.Set("offset", "1200"))
	require.NoError(t, db.Close())

	db, err = OpenBolt(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Get("offset")
	require.NoError(t, err)
	assert.Equal(t, "1200", got)
}
