package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverUpMigrations_Embedded(t *testing.T) {
	files, err := discoverUpMigrations(Embedded())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, int64(1), files[0].Version)
	assert.Equal(t, "0001_command_logs_up.sql", files[0].Path)
	assert.Equal(t, int64(2), files[1].Version)
}

func TestDiscoverUpMigrations_SortsAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"10_b_up.sql":    {Data: []byte("SELECT 1")},
		"2_a_up.sql":     {Data: []byte("SELECT 1")},
		"2_a_down.sql":   {Data: []byte("SELECT 1")},
		"readme.md":      {Data: []byte("x")},
		"x_bad_up.sql":   {Data: []byte("SELECT 1")},
		"sub/3_c_up.sql": {Data: []byte("SELECT 1")},
	}
	files, err := discoverUpMigrations(fsys)
	require.NoError(t, err)

	var versions []int64
	for _, f := range files {
		versions = append(versions, f.Version)
	}
	assert.Equal(t, []int64{2, 3, 10}, versions)
}

func TestDiscoverUpMigrations_Duplicate(t *testing.T) {
	fsys := fstest.MapFS{
		"1_a_up.sql":  {Data: []byte("SELECT 1")},
		"01_b_up.sql": {Data: []byte("SELECT 1")},
	}
	_, err := discoverUpMigrations(fsys)
	assert.Error(t, err)
}

func TestPending(t *testing.T) {
	pending, err := Pending(Embedded(), map[int64]bool{1: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, pending)

	pending, err = Pending(Embedded(), map[int64]bool{1: true, 2: true})
	require.NoError(t, err)
	assert.Empty(t, pending)
}
