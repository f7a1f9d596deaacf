package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc", path))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		k TEXT PRIMARY KEY, s TEXT, n REAL, kind INTEGER NOT NULL)`)
	require.NoError(t, err)
	return NewSQLite(db)
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": newSQLiteStore(t),
		"memory": NewMemory(),
	}
}

func TestStoreSetGetRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store.Set("greeting", "hello")
			v, ok := store.GetString("greeting")
			require.True(t, ok)
			assert.Equal(t, "hello", v)

			store.Set("greeting", "replaced")
			v, ok = store.GetString("greeting")
			require.True(t, ok)
			assert.Equal(t, "replaced", v)
		})
	}
}

func TestStoreNumbers(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store.SetNumber("timeLeft", 1795)
			n, ok := store.GetNumber("timeLeft")
			require.True(t, ok)
			assert.Equal(t, float64(1795), n)

			// A number key is not visible as a string and vice versa.
			_, ok = store.GetString("timeLeft")
			assert.False(t, ok)

			store.Set("timeLeft", "not a number anymore")
			_, ok = store.GetNumber("timeLeft")
			assert.False(t, ok)
		})
	}
}

func TestStoreMissingKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := store.GetString("nope")
			assert.False(t, ok)
			_, ok = store.GetNumber("nope")
			assert.False(t, ok)
		})
	}
}

func TestStoreRemove(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store.Set("k", "v")
			store.Remove("k")
			_, ok := store.GetString("k")
			assert.False(t, ok)

			// Removing an absent key is fine.
			store.Remove("k")
		})
	}
}

func TestStoreKeysPrefix(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store.Set("attempt:42:answers", "{}")
			store.SetNumber("attempt:42:timeLeft", 100)
			store.Set("cache:tests", "[]")

			keys := store.Keys("attempt:42:")
			assert.Equal(t, []string{"attempt:42:answers", "attempt:42:timeLeft"}, keys)

			assert.Empty(t, store.Keys("attempt:43:"))
		})
	}
}

func TestStoreKeysPrefixIsLiteral(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store.Set("question_cache:3", "{}")
			store.Set("questionXcache:3", "{}")
			store.Set("question%cache:3", "{}")

			// `_` and `%` in a prefix are literal characters, not wildcards.
			assert.Equal(t, []string{"question_cache:3"}, store.Keys("question_cache:"))
			assert.Equal(t, []string{"question%cache:3"}, store.Keys("question%cache:"))
		})
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	open := func() *sql.DB {
		db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc", path))
		require.NoError(t, err)
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
			k TEXT PRIMARY KEY, s TEXT, n REAL, kind INTEGER NOT NULL)`)
		require.NoError(t, err)
		return db
	}

	db := open()
	NewSQLite(db).Set("persisted", "across restart")
	require.NoError(t, db.Close())

	db = open()
	defer db.Close()
	v, ok := NewSQLite(db).GetString("persisted")
	require.True(t, ok)
	assert.Equal(t, "across restart", v)
}
