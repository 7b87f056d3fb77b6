package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := Open(t.TempDir(), "file:///tmp/remote.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLocalStore_SetGet(t *testing.T) {
	s := openTestStore(t)

	_, ok := s.Get("snapshot:u1")
	assert.False(t, ok)

	require.NoError(t, s.Set("snapshot:u1", `{"userId":"u1"}`))
	v, ok := s.Get("snapshot:u1")
	require.True(t, ok)
	assert.Equal(t, `{"userId":"u1"}`, v)

	require.NoError(t, s.Set("snapshot:u1", "second"))
	v, _ = s.Get("snapshot:u1")
	assert.Equal(t, "second", v, "last write wins")
}

func TestLocalStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, "remote-a")
	require.NoError(t, err)
	require.NoError(t, s.Set("snapshot:u1", "persisted"))
	require.NoError(t, s.Set("catalog", "cat"))
	require.NoError(t, s.Close())

	s, err = Open(dir, "remote-a")
	require.NoError(t, err)
	defer s.Close()

	v, ok := s.Get("snapshot:u1")
	require.True(t, ok)
	assert.Equal(t, "persisted", v)

	v, ok = s.Get("catalog")
	require.True(t, ok)
	assert.Equal(t, "cat", v)
}

func TestLocalStore_NamespacedByRemote(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir, "remote-a")
	require.NoError(t, err)
	require.NoError(t, a.Set("snapshot:u1", "from-a"))
	require.NoError(t, a.Close())

	b, err := Open(dir, "remote-b")
	require.NoError(t, err)
	defer b.Close()

	_, ok := b.Get("snapshot:u1")
	assert.False(t, ok)
}

func TestLocalStore_Remove(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("snapshot:u1", "x"))
	require.NoError(t, s.Remove("snapshot:u1"))
	_, ok := s.Get("snapshot:u1")
	assert.False(t, ok)

	assert.NoError(t, s.Remove("snapshot:missing"))
}

func TestLocalStore_RemovePrefix(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("snapshot:u1", "1"))
	require.NoError(t, s.Set("snapshot:u2", "2"))
	require.NoError(t, s.Set("catalog", "c"))

	require.NoError(t, s.RemovePrefix(PrefixSnapshot))

	_, ok := s.Get("snapshot:u1")
	assert.False(t, ok)
	_, ok = s.Get("snapshot:u2")
	assert.False(t, ok)
	_, ok = s.Get("catalog")
	assert.True(t, ok)
}

func TestLocalStore_Clear(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("snapshot:u1", "1"))
	require.NoError(t, s.Set("catalog", "c"))
	require.NoError(t, s.Set("other", "o"))

	require.NoError(t, s.Clear())

	for _, k := range []string{"snapshot:u1", "catalog", "other"} {
		_, ok := s.Get(k)
		assert.False(t, ok, k)
	}
}

func TestLocalStore_MemoryOnly(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)

	require.NoError(t, s.Set("snapshot:u1", "mem"))
	v, ok := s.Get("snapshot:u1")
	require.True(t, ok)
	assert.Equal(t, "mem", v)
	assert.NoError(t, s.Close())
}
