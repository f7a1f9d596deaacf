package storage

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is the synchronous, process-local durable key-value store every
// other component persists through. It exposes no failure mode: storage
// errors are logged and absorbed, reads fall back to absence. Key-naming
// discipline (attempt-scoped prefixes) stands in for isolation.
type Store interface {
	Set(key, value string)
	SetNumber(key string, value float64)
	// GetString returns the stored string and whether the key was present.
	GetString(key string) (string, bool)
	// GetNumber returns the stored number and whether the key was present
	// as a number.
	GetNumber(key string) (float64, bool)
	Remove(key string)
	// Keys returns all stored keys with the given prefix, sorted.
	Keys(prefix string) []string
}

const (
	kindString = 0
	kindNumber = 1
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLite returns a Store backed by the kv table of the given database.
func NewSQLite(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Set(key, value string) {
	_, err := s.db.Exec(
		`INSERT INTO kv (k, s, n, kind) VALUES ($1, $2, NULL, $3)
		 ON CONFLICT (k) DO UPDATE SET s=EXCLUDED.s, n=NULL, kind=EXCLUDED.kind`,
		key, value, kindString)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: set failed")
	}
}

func (s *sqliteStore) SetNumber(key string, value float64) {
	_, err := s.db.Exec(
		`INSERT INTO kv (k, s, n, kind) VALUES ($1, NULL, $2, $3)
		 ON CONFLICT (k) DO UPDATE SET s=NULL, n=EXCLUDED.n, kind=EXCLUDED.kind`,
		key, value, kindNumber)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: set number failed")
	}
}

func (s *sqliteStore) GetString(key string) (string, bool) {
	var v sql.NullString
	err := s.db.QueryRow(`SELECT s FROM kv WHERE k=$1 AND kind=$2`, key, kindString).Scan(&v)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("key", key).Msg("storage: get failed")
		}
		return "", false
	}
	return v.String, v.Valid
}

func (s *sqliteStore) GetNumber(key string) (float64, bool) {
	var v sql.NullFloat64
	err := s.db.QueryRow(`SELECT n FROM kv WHERE k=$1 AND kind=$2`, key, kindNumber).Scan(&v)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("key", key).Msg("storage: get number failed")
		}
		return 0, false
	}
	return v.Float64, v.Valid
}

func (s *sqliteStore) Remove(key string) {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE k=$1`, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("storage: remove failed")
	}
}

// likeEscaper neutralizes LIKE wildcards so a prefix such as
// "question_cache:" matches literally instead of treating `_` as
// any-character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *sqliteStore) Keys(prefix string) []string {
	pattern := likeEscaper.Replace(prefix) + "%"
	rows, err := s.db.Query(`SELECT k FROM kv WHERE k LIKE $1 ESCAPE '\' ORDER BY k`, pattern)
	if err != nil {
		log.Error().Err(err).Str("prefix", prefix).Msg("storage: keys failed")
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			log.Error().Err(err).Msg("storage: keys scan failed")
			return keys
		}
		keys = append(keys, k)
	}
	return keys
}

type memoryEntry struct {
	s    string
	n    float64
	kind int
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory returns an in-memory Store with the same semantics as the
// sqlite one. Used by tests and ephemeral sessions.
func NewMemory() Store {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{s: value, kind: kindString}
}

func (s *memoryStore) SetNumber(key string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{n: value, kind: kindNumber}
}

func (s *memoryStore) GetString(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != kindString {
		return "", false
	}
	return e.s, true
}

func (s *memoryStore) GetNumber(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.kind != kindNumber {
		return 0, false
	}
	return e.n, true
}

func (s *memoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *memoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
