package model_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

func TestProfileFromMapCoercion(t *testing.T) {
	raw := map[string]any{
		"biography":      "  Born in a small coastal town.  ",
		"traits":         "curious\nkind\n\n  stubborn  ",
		"speaking_style": "Soft and deliberate.",
		"interests":      []any{"sailing", "", "  photography "},
		"timeline": []any{
			map[string]any{"year": "2001", "event": "Moved abroad", "impact": "Learned independence"},
			map[string]any{"year": "", "event": "", "impact": ""},
		},
		"relationships": []any{
			map[string]any{"name": "Mira", "relationship": "Sister", "description": "Calls every Sunday"},
		},
		"sample_dialogues": []any{
			map[string]any{"scene": "", "transcript": []any{"A: hi", "B: hello"}},
			map[string]any{"scene": "empty", "transcript": []any{}},
		},
	}

	profile := model.ProfileFromMap(raw, "basis", "")

	gt.Equal(t, profile.Biography, "Born in a small coastal town.")
	gt.Equal(t, profile.Traits, []string{"curious", "kind", "stubborn"})
	gt.Equal(t, profile.Interests, []string{"sailing", "photography"})
	gt.A(t, profile.Timeline).Length(1)
	gt.Equal(t, profile.Timeline[0].Event, "Moved abroad")
	gt.A(t, profile.Relationships).Length(1)
	gt.Equal(t, profile.Relationships[0].Name, "Mira")
	gt.A(t, profile.SampleDialogues).Length(1)
	gt.Equal(t, profile.SampleDialogues[0].Scene, "Shared moment")
}

func TestProfileFromMapFallbacks(t *testing.T) {
	profile := model.ProfileFromMap(map[string]any{}, "basis", "")

	gt.True(t, profile.Biography != "")
	gt.True(t, profile.SpeakingStyle != "")
	gt.True(t, profile.DailyRoutine != "")
	gt.A(t, profile.Traits).Longer(0)
	gt.A(t, profile.Interests).Longer(0)
	gt.A(t, profile.Timeline).Longer(0)
	gt.A(t, profile.Relationships).Longer(0)
	gt.A(t, profile.SignatureMemories).Longer(0)
	gt.A(t, profile.SampleDialogues).Longer(0)
}

func TestProfileFromMapTolerantOfWrongTypes(t *testing.T) {
	raw := map[string]any{
		"biography":     42,
		"traits":        map[string]any{"oops": true},
		"timeline":      "not a list",
		"relationships": []any{"not a mapping"},
	}

	profile := model.ProfileFromMap(raw, "basis", "")

	// wrong shapes fall through to fallback values, never panic
	gt.True(t, profile.Biography != "")
	gt.A(t, profile.Traits).Longer(0)
	gt.A(t, profile.Timeline).Longer(0)
}

func TestSeedIDDeterminism(t *testing.T) {
	a := model.ProfileFromMap(map[string]any{}, "same-basis", "")
	b := model.ProfileFromMap(map[string]any{}, "same-basis", "")
	c := model.ProfileFromMap(map[string]any{}, "other-basis", "")

	gt.Equal(t, a.SeedID, b.SeedID)
	gt.True(t, a.SeedID != c.SeedID)
	gt.Equal(t, a.SeedID, model.SeedIDFromBasis("same-basis"))
}

func TestSeedIDOverrideWinsOverBasis(t *testing.T) {
	profile := model.ProfileFromMap(map[string]any{}, "basis", "persisted-seed")
	gt.Equal(t, profile.SeedID, "persisted-seed")
}

func TestSystemContextSectionOrder(t *testing.T) {
	profile := model.ProfileFromMap(map[string]any{
		"biography":          "Bio text",
		"speaking_style":     "Style text",
		"traits":             []any{"kind"},
		"interests":          []any{"music"},
		"daily_routine":      "Routine text",
		"signature_memories": []any{"The big move"},
	}, "basis", "")

	context := profile.SystemContext()

	sections := []string{
		"Detailed biography:",
		"Speaking style guidance:",
		"Traits you embody:",
		"Key interests:",
		"Daily rhythm:",
		"Significant life moments:",
		"Important relationships:",
		"Signature memories to reference when natural:",
	}
	last := -1
	for _, section := range sections {
		idx := strings.Index(context, section)
		gt.True(t, idx > last)
		last = idx
	}
}

func TestSeedMemoriesDecomposition(t *testing.T) {
	profile := model.ProfileFromMap(map[string]any{
		"biography":      "Bio",
		"speaking_style": "Style",
		"interests":      []any{"music", "tea"},
		"timeline": []any{
			map[string]any{"year": "2001", "event": "One", "impact": "A"},
			map[string]any{"year": "2002", "event": "Two", "impact": "B"},
		},
		"relationships": []any{
			map[string]any{"name": "Mira", "relationship": "Sister", "description": "Close"},
		},
		"signature_memories": []any{"First concert"},
		"sample_dialogues": []any{
			map[string]any{"scene": "Cafe", "transcript": []any{"A: hi", "B: hey"}},
		},
	}, "basis", "")

	entries := profile.SeedMemories()

	// biography, speaking style, interests, 2 timeline, 1 relationship,
	// 1 signature memory, 1 dialogue
	gt.A(t, entries).Length(8)
	for _, entry := range entries {
		gt.Equal(t, entry.Role, "persona")
		gt.Equal[any](t, entry.Metadata[model.MetaSeedID], profile.SeedID)
		gt.True(t, entry.Content != "")
	}

	gt.Equal(t, entries[0].Metadata[model.MetaCategory], model.CategoryBiography)
	gt.Equal(t, entries[1].Metadata[model.MetaCategory], model.CategorySpeakingStyle)
	gt.Equal(t, entries[2].Metadata[model.MetaCategory], model.CategoryInterests)
	gt.Equal(t, entries[3].Metadata[model.MetaCategory], model.CategoryTimeline)
	gt.Equal(t, entries[3].Metadata[model.MetaOrder], 1)
	gt.Equal(t, entries[4].Metadata[model.MetaOrder], 2)
	gt.Equal(t, entries[5].Metadata[model.MetaCategory], model.CategoryRelationship)
	gt.Equal(t, entries[6].Metadata[model.MetaCategory], model.CategorySignatureMemory)
	gt.Equal(t, entries[7].Metadata[model.MetaCategory], model.CategorySampleDialogue)
	gt.S(t, entries[7].Content).Contains("Cafe")
}

func TestToMapRoundTrip(t *testing.T) {
	original := model.ProfileFromMap(map[string]any{
		"biography": "Bio",
		"traits":    []any{"kind", "sharp"},
	}, "basis", "")

	restored := model.ProfileFromMap(original.ToMap(), "", original.SeedID)

	gt.Equal(t, restored.Biography, original.Biography)
	gt.Equal(t, restored.Traits, original.Traits)
	gt.Equal(t, restored.Timeline, original.Timeline)
	gt.Equal(t, restored.SeedID, original.SeedID)
}

func TestBuildSystemPrompt(t *testing.T) {
	persona := model.Persona{
		Name:        "Avery",
		Description: "a painter",
		Goals:       "Make people feel seen",
	}
	profile := model.ProfileFromMap(map[string]any{"biography": "Paints at dawn."}, "basis", "")

	prompt := persona.BuildSystemPrompt(profile)

	gt.S(t, prompt).Contains("You are Avery, a painter.")
	gt.S(t, prompt).Contains("Your core goals are: Make people feel seen.")
	gt.S(t, prompt).Contains("Paints at dawn.")

	bare := persona.BuildSystemPrompt(nil)
	gt.S(t, bare).NotContains("Paints at dawn.")
}

func TestFallbackBlueprintFullyPopulated(t *testing.T) {
	persona := model.Persona{Name: "Avery", Description: "a painter", Goals: "Connect", SeedPrompt: "loves rain"}
	blueprint := persona.FallbackBlueprint()

	for _, key := range []string{
		"biography", "traits", "speaking_style", "interests", "timeline",
		"relationships", "signature_memories", "daily_routine", "sample_dialogues",
	} {
		_, ok := blueprint[key]
		gt.True(t, ok)
	}
	gt.S(t, blueprint["biography"].(string)).Contains("loves rain")
}
