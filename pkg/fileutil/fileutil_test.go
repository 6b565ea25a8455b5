package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	base := t.TempDir()
	m := NewManager(filepath.Join(base, "output"), filepath.Join(base, "archive"))
	require.NoError(t, m.EnsureDirectories())
	return m
}

func TestEnsureDirectoriesIsIdempotent(t *testing.T) {
	m := testManager(t)
	require.NoError(t, m.EnsureDirectories())

	for _, dir := range []string{m.OutputDir, m.ArchiveDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSaveReport(t *testing.T) {
	m := testManager(t)

	path, err := m.SaveReport("Usage summary for in.c-usage.usage_data\n", "run-1")
	require.NoError(t, err)

	assert.Equal(t, m.OutputDir, filepath.Dir(path))
	assert.Contains(t, filepath.Base(path), "report_")
	assert.Contains(t, filepath.Base(path), "run-1")
	assert.Equal(t, ".txt", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Usage summary for in.c-usage.usage_data\n", string(data))
}

func TestSaveSnapshot(t *testing.T) {
	m := testManager(t)

	path, err := m.SaveSnapshot("Company_Name\nA\n", "run-1")
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "usage_data_")
	assert.Equal(t, ".csv", filepath.Ext(path))
}

func TestSaveDistinctRunsDoNotCollide(t *testing.T) {
	m := testManager(t)

	first, err := m.SaveReport("first", "run-1")
	require.NoError(t, err)
	second, err := m.SaveReport("second", "run-2")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestArchive(t *testing.T) {
	m := testManager(t)

	path, err := m.SaveReport("archived content", "run-1")
	require.NoError(t, err)

	archived, err := m.Archive(path)
	require.NoError(t, err)
	assert.Equal(t, m.ArchiveDir, filepath.Dir(archived))
	assert.Equal(t, filepath.Base(path), filepath.Base(archived))

	data, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Equal(t, "archived content", string(data))

	// The original stays in the output directory.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestArchiveMissingFile(t *testing.T) {
	m := testManager(t)

	_, err := m.Archive(filepath.Join(m.OutputDir, "missing.txt"))
	assert.Error(t, err)
}
