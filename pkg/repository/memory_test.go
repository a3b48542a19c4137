package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/kokoro-dev/kokoro/pkg/adapter"
	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/repository"
)

const testEmbeddingWidth = 16

func newTestStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	db, err := repository.Open(":memory:")
	gt.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	embedder, err := adapter.NewEmbedder(adapter.EmbeddingConfig{
		Provider:   "local",
		Dimensions: testEmbeddingWidth,
	})
	gt.NoError(t, err)

	return repository.NewMemoryStore(db, embedder)
}

func TestAddAndFetchRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Add(ctx, "user", "  I adopted a cat named Molly  ", map[string]any{model.MetaType: "message"})
	gt.NoError(t, err)
	gt.True(t, id != "")

	entries, err := store.FetchRecent(ctx, 1)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].ID, id)
	gt.Equal(t, entries[0].Content, "I adopted a cat named Molly")
	gt.A(t, entries[0].Embedding).Length(testEmbeddingWidth)
	gt.Equal(t, entries[0].Metadata[model.MetaType], "message")
}

func TestAddEmptyContentFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := store.Add(ctx, "user", content, nil)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrEmptyContent))
	}

	entries, err := store.FetchRecent(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, entries).Length(0)
}

func TestFetchRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, content := range []string{"first", "second", "third"} {
		_, err := store.Add(ctx, "user", content, nil)
		gt.NoError(t, err)
	}

	entries, err := store.FetchRecent(ctx, 2)
	gt.NoError(t, err)
	gt.A(t, entries).Length(2)
	gt.Equal(t, entries[0].Content, "third")
	gt.Equal(t, entries[1].Content, "second")
}

func TestUpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Add(ctx, "user", "original content", nil)
	gt.NoError(t, err)

	before, err := store.FetchRecent(ctx, 1)
	gt.NoError(t, err)

	err = store.Update(ctx, id, "user", "revised content", map[string]any{model.MetaEdited: true})
	gt.NoError(t, err)

	after, err := store.FetchRecent(ctx, 1)
	gt.NoError(t, err)
	gt.A(t, after).Length(1)
	gt.Equal(t, after[0].ID, id)
	gt.Equal(t, after[0].Content, "revised content")
	gt.Equal(t, after[0].CreatedAt, before[0].CreatedAt)
	gt.Equal(t, after[0].Metadata[model.MetaEdited], true)
	gt.True(t, !vectorsEqual(before[0].Embedding, after[0].Embedding))
}

func vectorsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUpdateEmptyContentFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Add(ctx, "user", "keep me", nil)
	gt.NoError(t, err)

	err = store.Update(ctx, id, "user", "   ", nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrEmptyContent))

	entries, err := store.FetchRecent(ctx, 1)
	gt.NoError(t, err)
	gt.Equal(t, entries[0].Content, "keep me")
}

func TestSearchCapAndThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	contents := []string{
		"Molly the cat knocked over a plant",
		"We talked about jazz records",
		"The weather was stormy yesterday",
		"Molly the cat is asleep on the couch",
	}
	for _, content := range contents {
		_, err := store.Add(ctx, "user", content, nil)
		gt.NoError(t, err)
	}

	matches, err := store.Search(ctx, "Molly the cat knocked over a plant", 2, 0.1)
	gt.NoError(t, err)
	gt.True(t, len(matches) <= 2)
	gt.A(t, matches).Longer(0)
	for _, match := range matches {
		gt.True(t, match.Similarity >= 0.1)
	}
	// results are sorted descending, the exact match first
	gt.Equal(t, matches[0].Content, "Molly the cat knocked over a plant")
	gt.True(t, matches[0].Similarity > 0.999)
}

func TestSearchImpossibleThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Add(ctx, "user", "anything at all", nil)
	gt.NoError(t, err)

	matches, err := store.Search(ctx, "unrelated query text", 10, 1.1)
	gt.NoError(t, err)
	gt.A(t, matches).Length(0)
}

func TestHasSeedExcludesProfileCategory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// a summary row alone must not count as seeded
	_, err := store.Add(ctx, "persona", "summary only", map[string]any{
		model.MetaSeedID:   "seed-x",
		model.MetaCategory: model.CategoryProfile,
	})
	gt.NoError(t, err)

	seeded, err := store.HasSeed(ctx, "seed-x")
	gt.NoError(t, err)
	gt.False(t, seeded)

	_, err = store.Add(ctx, "persona", "a biography row", map[string]any{
		model.MetaSeedID:   "seed-x",
		model.MetaCategory: model.CategoryBiography,
	})
	gt.NoError(t, err)

	seeded, err = store.HasSeed(ctx, "seed-x")
	gt.NoError(t, err)
	gt.True(t, seeded)
}

func TestFindCategoryAndProfileRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, found, err := store.FindCategoryRow(ctx, "persona-1", model.CategoryTimeline, 1)
	gt.NoError(t, err)
	gt.False(t, found)

	id, err := store.Add(ctx, "persona", "timeline item", map[string]any{
		model.MetaSeedID:    "seed-1",
		model.MetaCategory:  model.CategoryTimeline,
		model.MetaPersonaID: "persona-1",
		model.MetaOrder:     1,
	})
	gt.NoError(t, err)

	got, found, err := store.FindCategoryRow(ctx, "persona-1", model.CategoryTimeline, 1)
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, got, id)

	summaryID, err := store.Add(ctx, "persona", "summary", map[string]any{
		model.MetaSeedID:    "seed-1",
		model.MetaCategory:  model.CategoryProfile,
		model.MetaPersonaID: "persona-1",
	})
	gt.NoError(t, err)

	got, found, err = store.FindProfileRow(ctx, "persona-1", "seed-1")
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, got, summaryID)

	_, found, err = store.FindProfileRow(ctx, "persona-1", "seed-2")
	gt.NoError(t, err)
	gt.False(t, found)
}
