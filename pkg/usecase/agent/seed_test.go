package agent_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/repository"
)

type seedTuple struct {
	personaID string
	category  string
	content   string
	seedID    string
}

func seedTuples(t *testing.T, store *repository.MemoryStore) []seedTuple {
	t.Helper()
	entries, err := store.FetchRecent(context.Background(), 200)
	gt.NoError(t, err)
	var out []seedTuple
	for _, entry := range entries {
		personaID, _ := entry.Metadata[model.MetaPersonaID].(string)
		if personaID == "" {
			continue
		}
		category, _ := entry.Metadata[model.MetaCategory].(string)
		seedID, _ := entry.Metadata[model.MetaSeedID].(string)
		out = append(out, seedTuple{
			personaID: personaID,
			category:  category,
			content:   entry.Content,
			seedID:    seedID,
		})
	}
	return out
}

func containsTuple(rows []seedTuple, want seedTuple) bool {
	for _, row := range rows {
		if row == want {
			return true
		}
	}
	return false
}

func TestSuggestionReseedsForNewSeedID(t *testing.T) {
	ctx := context.Background()
	ag, store := newTestAgent(t, fixedLLM(taggedDraft))

	initial := model.PersonaSuggestion{
		PersonaID:      "persona-1",
		Biography:      "Original biography",
		Timeline:       []string{"Met their best friend"},
		Relationships:  []string{"Best friend: Alex"},
		ProfileSummary: "Original summary",
		SeedID:         "seed-1",
	}
	gt.NoError(t, ag.ApplySuggestion(ctx, initial))

	updated := model.PersonaSuggestion{
		PersonaID:      "persona-1",
		Biography:      "Updated biography",
		Timeline:       []string{"Moved to a new city"},
		Relationships:  []string{"Neighbour: Casey"},
		ProfileSummary: "Updated summary",
		SeedID:         "seed-2",
	}
	gt.NoError(t, ag.ApplySuggestion(ctx, updated))

	rows := seedTuples(t, store)

	gt.True(t, containsTuple(rows, seedTuple{"persona-1", model.CategoryBiography, "Updated biography", "seed-2"}))
	gt.True(t, containsTuple(rows, seedTuple{"persona-1", model.CategoryTimeline, "Moved to a new city", "seed-2"}))
	gt.True(t, containsTuple(rows, seedTuple{"persona-1", model.CategoryRelationship, "Neighbour: Casey", "seed-2"}))
	gt.True(t, containsTuple(rows, seedTuple{"persona-1", model.CategoryProfile, "Updated summary", "seed-2"}))

	for _, row := range rows {
		if row.seedID == "seed-1" {
			gt.Equal(t, row.category, model.CategoryProfile)
		}
	}
}

func TestSuggestionAppliedTwiceWritesRowsOnce(t *testing.T) {
	ctx := context.Background()
	ag, store := newTestAgent(t, fixedLLM(taggedDraft))

	suggestion := model.PersonaSuggestion{
		PersonaID:      "persona-1",
		Biography:      "A quiet life by the sea",
		Timeline:       []string{"Built a small boat"},
		Relationships:  []string{"Mentor: Noor"},
		ProfileSummary: "Coastal summary",
		SeedID:         "seed-1",
	}
	gt.NoError(t, ag.ApplySuggestion(ctx, suggestion))
	first := seedTuples(t, store)

	gt.NoError(t, ag.ApplySuggestion(ctx, suggestion))
	second := seedTuples(t, store)

	// no duplicate rows on reapplication; the summary is refreshed in place
	gt.Equal(t, len(second), len(first))
	count := 0
	for _, row := range second {
		if row.category == model.CategoryBiography {
			count++
		}
	}
	gt.Equal(t, count, 1)
}

func TestSuggestionWithExtraMemories(t *testing.T) {
	ctx := context.Background()
	ag, store := newTestAgent(t, fixedLLM(taggedDraft))

	suggestion := model.PersonaSuggestion{
		PersonaID:      "persona-1",
		Biography:      "Bio",
		ProfileSummary: "Summary",
		SeedID:         "seed-1",
		ExtraMemories:  []string{"Keeps a jar of sea glass", "Hums while cooking"},
	}
	gt.NoError(t, ag.ApplySuggestion(ctx, suggestion))

	rows := seedTuples(t, store)
	gt.True(t, containsTuple(rows, seedTuple{"persona-1", model.CategoryExtra, "Keeps a jar of sea glass", "seed-1"}))
	gt.True(t, containsTuple(rows, seedTuple{"persona-1", model.CategoryExtra, "Hums while cooking", "seed-1"}))
}

func TestSuggestionRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	ag, _ := newTestAgent(t, fixedLLM(taggedDraft))

	gt.Error(t, ag.ApplySuggestion(ctx, model.PersonaSuggestion{SeedID: "seed-1"}))
	gt.Error(t, ag.ApplySuggestion(ctx, model.PersonaSuggestion{PersonaID: "persona-1"}))
}
