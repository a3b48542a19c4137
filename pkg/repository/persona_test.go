package repository_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/repository"
)

func newPersonaStore(t *testing.T) *repository.PersonaStore {
	t.Helper()
	db, err := repository.Open(":memory:")
	gt.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewPersonaStore(db)
}

func testPersona(name string) model.Persona {
	return model.Persona{
		Name:        name,
		Description: "a painter",
		Goals:       "make people feel seen",
	}
}

func TestPersonaUpsertCreatesAndRevises(t *testing.T) {
	ctx := context.Background()
	store := newPersonaStore(t)

	profile := model.ProfileFromMap(map[string]any{"biography": "First bio"}, "basis-1", "")
	created, err := store.Upsert(ctx, model.PersonaRecord{
		Persona: testPersona("Avery"),
		Profile: profile,
	})
	gt.NoError(t, err)
	gt.True(t, created.ID != "")

	revised := model.ProfileFromMap(map[string]any{"biography": "Second bio"}, "basis-2", "")
	updated, err := store.Upsert(ctx, model.PersonaRecord{
		Persona: testPersona("Avery"),
		Profile: revised,
	})
	gt.NoError(t, err)
	gt.Equal(t, updated.ID, created.ID)
	gt.Equal(t, updated.CreatedAt, created.CreatedAt)

	records, err := store.List(ctx)
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
	gt.Equal(t, records[0].Profile.Biography, "Second bio")
}

func TestPersonaUpsertRequiresName(t *testing.T) {
	ctx := context.Background()
	store := newPersonaStore(t)

	_, err := store.Upsert(ctx, model.PersonaRecord{Persona: model.Persona{}})
	gt.Error(t, err)
}

func TestPersonaFindByName(t *testing.T) {
	ctx := context.Background()
	store := newPersonaStore(t)

	_, found, err := store.FindByName(ctx, "Nobody")
	gt.NoError(t, err)
	gt.False(t, found)

	profile := model.ProfileFromMap(map[string]any{}, "basis", "")
	created, err := store.Upsert(ctx, model.PersonaRecord{
		Persona: testPersona("Avery"),
		Profile: profile,
	})
	gt.NoError(t, err)

	rec, found, err := store.FindByName(ctx, "Avery")
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, rec.ID, created.ID)
	gt.Equal(t, rec.Persona.Description, "a painter")
}

func TestPersonaGet(t *testing.T) {
	ctx := context.Background()
	store := newPersonaStore(t)

	profile := model.ProfileFromMap(map[string]any{}, "basis", "")
	created, err := store.Upsert(ctx, model.PersonaRecord{
		Persona: testPersona("Avery"),
		Profile: profile,
	})
	gt.NoError(t, err)

	rec, err := store.Get(ctx, created.ID)
	gt.NoError(t, err)
	gt.Equal(t, rec.Persona.Name, "Avery")

	_, err = store.Get(ctx, model.PersonaRecordID("missing"))
	gt.Error(t, err)
}

func TestPersonaProfileSeedIDStableAcrossReload(t *testing.T) {
	ctx := context.Background()
	store := newPersonaStore(t)

	profile := model.ProfileFromMap(map[string]any{"biography": "Bio"}, "the-basis", "")
	_, err := store.Upsert(ctx, model.PersonaRecord{
		Persona: testPersona("Avery"),
		Profile: profile,
	})
	gt.NoError(t, err)

	rec, found, err := store.FindByName(ctx, "Avery")
	gt.NoError(t, err)
	gt.True(t, found)
	// the rehydrated profile keeps its persisted identity even though the
	// original seed basis is gone
	gt.Equal(t, rec.Profile.SeedID, profile.SeedID)
}

func TestPersonaListOrderedByRecency(t *testing.T) {
	ctx := context.Background()
	store := newPersonaStore(t)

	profile := model.ProfileFromMap(map[string]any{}, "basis", "")
	for _, name := range []string{"Avery", "Blair", "Casey"} {
		_, err := store.Upsert(ctx, model.PersonaRecord{
			Persona: testPersona(name),
			Profile: profile,
		})
		gt.NoError(t, err)
	}

	// touch the first persona so it becomes the most recent
	_, err := store.Upsert(ctx, model.PersonaRecord{
		Persona: testPersona("Avery"),
		Profile: profile,
	})
	gt.NoError(t, err)

	records, err := store.List(ctx)
	gt.NoError(t, err)
	gt.A(t, records).Length(3)
	gt.Equal(t, records[0].Persona.Name, "Avery")
}
