// Package repository provides the sqlite-backed memory log and persona
// persistence. A single database file holds both tables; rows are written
// with single statements so each write is atomic on its own.
package repository

import (
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT,
	embedding  BLOB NOT NULL,
	category   TEXT,
	seed_id    TEXT,
	persona_id TEXT,
	ord        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_memories_seed_id ON memories(seed_id);

CREATE TABLE IF NOT EXISTS personas (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL,
	goals        TEXT NOT NULL,
	seed_prompt  TEXT,
	profile_json TEXT NOT NULL,
	seed_id      TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_personas_name ON personas(name);
`

// DB wraps the sqlite connection shared by the memory and persona stores.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and bootstraps the schema.
// Use ":memory:" for an ephemeral database.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", dbPath))
	}
	// one connection serializes writes and keeps :memory: databases on a
	// single backing store
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", p))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to bootstrap schema")
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error { return d.db.Close() }

// embeddingToBlob serializes a vector as little-endian float32 bytes.
func embeddingToBlob(vec []float32) []byte {
	blob := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// blobToEmbedding is the inverse of embeddingToBlob. Trailing partial
// values are dropped.
func blobToEmbedding(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
