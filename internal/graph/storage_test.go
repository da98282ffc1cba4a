package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Storage:
// - Save and load a unit graph under its unit name
// - Loading a missing unit is an error
// - Atomic write leaves no temp file behind
// - List returns stored units sorted; Clear removes them
// - Delete removes one unit and tolerates missing ones
// - Unit names that would escape the directory are rejected

func sampleGraph(unit string) *Graph {
	g := New(unit)
	a := g.AddNode(fnNode(0, 1, unit+"::main"))
	b := g.AddNode(fnNode(0, 2, unit+"::helper"))
	_ = g.AddEdge(Edge{From: a, To: b, Kind: CallFunction, Multiplier: 1, Args: []ArgWeight{argW(1)}})
	return g
}

func TestStorage_SaveAndLoad(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "graphs")
	storage, err := NewStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, storage.Dir())

	g := sampleGraph("app")
	require.NoError(t, storage.Save(g))
	assert.True(t, storage.Exists("app"))
	assert.FileExists(t, filepath.Join(dir, "app"+UnitGraphExt))

	loaded, err := storage.Load("app")
	require.NoError(t, err)
	assert.True(t, g.Equivalent(loaded))
	assert.Equal(t, "app", loaded.Unit())
}

func TestStorage_LoadMissing(t *testing.T) {
	t.Parallel()

	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	_, err = storage.Load("absent")
	assert.Error(t, err)
	assert.False(t, storage.Exists("absent"))
}

func TestStorage_AtomicWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	require.NoError(t, storage.Save(sampleGraph("app")))
	require.NoError(t, storage.Save(sampleGraph("app")))

	_, err = os.Stat(filepath.Join(dir, "app"+UnitGraphExt+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestStorage_ListAndClear(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage, err := NewStorage(dir)
	require.NoError(t, err)

	for _, unit := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, storage.Save(sampleGraph(unit)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644))

	units, err := storage.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, units)

	require.NoError(t, storage.Clear())
	units, err = storage.List()
	require.NoError(t, err)
	assert.Empty(t, units)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestStorage_Delete(t *testing.T) {
	t.Parallel()

	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, storage.Save(sampleGraph("app")))
	require.NoError(t, storage.Save(sampleGraph("lib")))
	assert.Equal(t, filepath.Join(storage.Dir(), "app"+UnitGraphExt), storage.Path("app"))

	require.NoError(t, storage.Delete("app"))
	assert.False(t, storage.Exists("app"))
	assert.NoError(t, storage.Delete("app"))

	units, err := storage.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"lib"}, units)
}

func TestStorage_InvalidUnitName(t *testing.T) {
	t.Parallel()

	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	for _, unit := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.Error(t, storage.Save(New(unit)), unit)
		_, err := storage.Load(unit)
		assert.Error(t, err, unit)
	}
}

func TestWriteFile_ReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "merged"+UnitGraphExt)
	g := sampleGraph("")

	require.NoError(t, WriteFile(path, g))
	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.True(t, g.Equivalent(loaded))
}
