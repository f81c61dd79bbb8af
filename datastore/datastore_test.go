package datastore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type record struct {
	Version int    `json:"version"`
	Note    string `json:"note"`
}

func TestAddGetInto(t *testing.T) {
	ds, err := New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, ds.Add("instance:mira/p1", []record{{1, "first"}}))

	var got []record
	ok, err := ds.GetInto("instance:mira/p1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []record{{1, "first"}}, got)

	ok, err = ds.GetInto("instance:nobody", &got)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysSortedByPrefix(t *testing.T) {
	ds, err := New(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	defer ds.Close()

	for _, k := range []string{"instance:mira/p2", "definition:mira", "instance:mira/p1"} {
		require.NoError(t, ds.Add(k, 1))
	}
	assert.Equal(t, []string{"instance:mira/p1", "instance:mira/p2"}, ds.Keys("instance:"))

	ds.Delete("instance:mira/p1")
	assert.Equal(t, []string{"instance:mira/p2"}, ds.Keys("instance:"))
}

func TestCloseSavesAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	ds, err := New(path)
	require.NoError(t, err)
	require.NoError(t, ds.Add("definition:mira", record{1, "ferry"}))
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close(), "second close is a no-op")

	assert.ErrorIs(t, ds.Add("x", 1), ErrClosed)
	_, ok := ds.Get("definition:mira")
	assert.False(t, ok)

	ds, err = New(path)
	require.NoError(t, err)
	defer ds.Close()
	var got record
	ok, err = ds.GetInto("definition:mira", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record{1, "ferry"}, got)
}

func TestBackupsAreRotated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	cfg.BackupCount = 2
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	defer ds.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, ds.Add("counter", i))
		require.NoError(t, ds.SaveToFile())
		time.Sleep(2 * time.Millisecond)
	}
	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), 2)
	assert.NotEmpty(t, backups)
}

func TestMemoryLimit(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "store.json"))
	cfg.MaxMemorySize = 16
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, ds.Add("a", "short"))
	assert.ErrorIs(t, ds.Add("b", "this value is far too long"), ErrMemoryLimit)
}

func TestRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	_, err := New(path)
	assert.Error(t, err)

	_, err = NewWithConfig(nil)
	assert.Error(t, err)
	_, err = NewWithConfig(&Config{})
	assert.Error(t, err)
}
