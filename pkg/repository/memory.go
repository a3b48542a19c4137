package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/adapter"
	"github.com/kokoro-dev/kokoro/pkg/model"
)

// MemoryStore is the durable, embedded memory log. Every write computes an
// embedding through the shared embedding service; embedding failures
// propagate, they are never skipped.
type MemoryStore struct {
	db       *DB
	embedder adapter.Embedder
}

// NewMemoryStore creates a memory store over db using embedder for all
// content vectors.
func NewMemoryStore(db *DB, embedder adapter.Embedder) *MemoryStore {
	return &MemoryStore{db: db, embedder: embedder}
}

func (s *MemoryStore) embedOne(ctx context.Context, content string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{content})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, goerr.New("embedding service returned no vector")
	}
	return vectors[0], nil
}

// metadata column projections used for seed bookkeeping queries.
func metaString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}

func metaOrder(metadata map[string]any) int {
	if metadata == nil {
		return 0
	}
	switch v := metadata[model.MetaOrder].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Add validates, embeds, and appends one memory row, returning its handle.
// Content that trims to empty fails with ErrEmptyContent and writes nothing.
func (s *MemoryStore) Add(ctx context.Context, role, content string, metadata map[string]any) (model.MemoryID, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", goerr.Wrap(model.ErrEmptyContent, "cannot add memory")
	}

	vector, err := s.embedOne(ctx, content)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed memory content")
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal memory metadata")
	}

	id := model.NewMemoryID()
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO memories (id, created_at, role, content, metadata, embedding, category, seed_id, persona_id, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(id), time.Now().UTC().UnixNano(), role, content, string(payload),
		embeddingToBlob(vector),
		metaString(metadata, model.MetaCategory),
		metaString(metadata, model.MetaSeedID),
		metaString(metadata, model.MetaPersonaID),
		metaOrder(metadata),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to insert memory")
	}
	return id, nil
}

// Update overwrites an existing row in place with freshly embedded content.
// created_at and insertion order are unchanged.
func (s *MemoryStore) Update(ctx context.Context, id model.MemoryID, role, content string, metadata map[string]any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return goerr.Wrap(model.ErrEmptyContent, "cannot update memory")
	}

	vector, err := s.embedOne(ctx, content)
	if err != nil {
		return goerr.Wrap(err, "failed to embed memory content")
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal memory metadata")
	}

	res, err := s.db.db.ExecContext(ctx, `
		UPDATE memories
		SET role = ?, content = ?, metadata = ?, embedding = ?, category = ?, seed_id = ?, persona_id = ?, ord = ?
		WHERE id = ?`,
		role, content, string(payload), embeddingToBlob(vector),
		metaString(metadata, model.MetaCategory),
		metaString(metadata, model.MetaSeedID),
		metaString(metadata, model.MetaPersonaID),
		metaOrder(metadata),
		string(id),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to update memory", goerr.V("memory_id", id))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goerr.New("memory not found", goerr.V("memory_id", id))
	}
	return nil
}

func scanEntry(rows *sql.Rows) (model.MemoryEntry, error) {
	var (
		id        string
		createdAt int64
		role      string
		content   string
		metaJSON  sql.NullString
		blob      []byte
	)
	if err := rows.Scan(&id, &createdAt, &role, &content, &metaJSON, &blob); err != nil {
		return model.MemoryEntry{}, goerr.Wrap(err, "failed to scan memory row")
	}
	metadata := map[string]any{}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &metadata); err != nil {
			return model.MemoryEntry{}, goerr.Wrap(err, "failed to decode memory metadata")
		}
	}
	return model.MemoryEntry{
		ID:        model.MemoryID(id),
		CreatedAt: time.Unix(0, createdAt).UTC(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Embedding: blobToEmbedding(blob),
	}, nil
}

// FetchRecent returns up to limit entries ordered newest first.
func (s *MemoryStore) FetchRecent(ctx context.Context, limit int) ([]model.MemoryEntry, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, created_at, role, content, metadata, embedding
		FROM memories ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query recent memories")
	}
	defer rows.Close()

	var entries []model.MemoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate recent memories")
	}
	return entries, nil
}

// Search embeds the query and ranks every stored row by cosine similarity:
// a full scan, which is fine at memory-store scale. Rows below threshold or
// with empty embeddings are dropped; the result is sorted descending and
// capped at limit.
func (s *MemoryStore) Search(ctx context.Context, query string, limit int, threshold float64) ([]model.ScoredEntry, error) {
	queryVectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}
	if len(queryVectors) == 0 || len(queryVectors[0]) == 0 {
		return nil, nil
	}
	queryVec := queryVectors[0]

	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, created_at, role, content, metadata, embedding FROM memories`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan memories")
	}
	defer rows.Close()

	var scored []model.ScoredEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if len(entry.Embedding) == 0 {
			continue
		}
		similarity := cosineSimilarity(queryVec, entry.Embedding)
		if similarity < threshold {
			continue
		}
		scored = append(scored, model.ScoredEntry{MemoryEntry: entry, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memories")
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// HasSeed reports whether any structured row already carries seedID. The
// persona_profile summary category is excluded so a summary row landing
// before the structured rows cannot be mistaken for a completed seeding.
func (s *MemoryStore) HasSeed(ctx context.Context, seedID string) (bool, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memories WHERE seed_id = ? AND category <> ?`,
		seedID, model.CategoryProfile,
	).Scan(&count)
	if err != nil {
		return false, goerr.Wrap(err, "failed to check seed presence", goerr.V("seed_id", seedID))
	}
	return count > 0, nil
}

// FindCategoryRow locates the seed row for (personaID, category, order),
// regardless of which seed id wrote it. Used by the structured reseeding
// path to revise rows in place instead of accumulating stale copies.
func (s *MemoryStore) FindCategoryRow(ctx context.Context, personaID, category string, order int) (model.MemoryID, bool, error) {
	var id string
	err := s.db.db.QueryRowContext(ctx, `
		SELECT id FROM memories WHERE persona_id = ? AND category = ? AND ord = ?
		ORDER BY created_at DESC LIMIT 1`,
		personaID, category, order,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to find category row")
	}
	return model.MemoryID(id), true, nil
}

// FindProfileRow locates the persona_profile summary row for
// (personaID, seedID), if one has been written.
func (s *MemoryStore) FindProfileRow(ctx context.Context, personaID, seedID string) (model.MemoryID, bool, error) {
	var id string
	err := s.db.db.QueryRowContext(ctx, `
		SELECT id FROM memories WHERE persona_id = ? AND seed_id = ? AND category = ?
		ORDER BY created_at DESC LIMIT 1`,
		personaID, seedID, model.CategoryProfile,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to find profile row")
	}
	return model.MemoryID(id), true, nil
}

// DeleteStaleSeedRows removes structured seed rows for personaID that still
// carry a seed id other than keepSeedID. The persona_profile summary
// category is exempt; summaries from earlier seeds are kept as history.
func (s *MemoryStore) DeleteStaleSeedRows(ctx context.Context, personaID, keepSeedID string) error {
	_, err := s.db.db.ExecContext(ctx, `
		DELETE FROM memories
		WHERE persona_id = ? AND category <> '' AND category <> ? AND seed_id <> ?`,
		personaID, model.CategoryProfile, keepSeedID)
	if err != nil {
		return goerr.Wrap(err, "failed to delete stale seed rows", goerr.V("persona_id", personaID))
	}
	return nil
}

// cosineSimilarity is dot(a,b) / (|a|*|b|), defined as 0 when either norm
// is zero.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
