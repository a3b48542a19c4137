package agent

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/utils/logging"
)

// seedProfile writes the profile's decomposed memories exactly once per
// seed id. The presence check ignores the persona_profile summary category
// so a summary row landing before the structured rows cannot make seeding
// appear complete.
func (a *Agent) seedProfile(ctx context.Context) error {
	if a.profile == nil {
		return nil
	}
	seeded, err := a.memories.HasSeed(ctx, a.profile.SeedID)
	if err != nil {
		return err
	}
	if seeded {
		logging.From(ctx).Debug("persona profile already seeded", "seed_id", a.profile.SeedID)
		return nil
	}
	for _, entry := range a.profile.SeedMemories() {
		if _, err := a.memories.Add(ctx, entry.Role, entry.Content, entry.Metadata); err != nil {
			return goerr.Wrap(err, "failed to write seed memory")
		}
	}
	return nil
}

// seedRow is one structured row of a persona suggestion.
type seedRow struct {
	category string
	order    int
	content  string
}

// ApplySuggestion reseeds persona-category memories from a pre-digested
// suggestion. Structured rows are upserted by (persona, category, order) so
// repeated application never duplicates them, while the persona_profile
// summary is refreshed per seed id on every call. Structured rows left over
// from earlier seeds are removed afterwards; only their summaries remain.
func (a *Agent) ApplySuggestion(ctx context.Context, suggestion model.PersonaSuggestion) error {
	if suggestion.PersonaID == "" || suggestion.SeedID == "" {
		return goerr.New("persona id and seed id are required")
	}

	rows := []seedRow{{category: model.CategoryBiography, order: 1, content: suggestion.Biography}}
	for i, item := range suggestion.Timeline {
		rows = append(rows, seedRow{category: model.CategoryTimeline, order: i + 1, content: item})
	}
	for i, item := range suggestion.Relationships {
		rows = append(rows, seedRow{category: model.CategoryRelationship, order: i + 1, content: item})
	}
	for i, item := range suggestion.ExtraMemories {
		rows = append(rows, seedRow{category: model.CategoryExtra, order: i + 1, content: item})
	}

	for _, row := range rows {
		if row.content == "" {
			continue
		}
		metadata := map[string]any{
			model.MetaType:      "persona_seed",
			model.MetaSeedID:    suggestion.SeedID,
			model.MetaCategory:  row.category,
			model.MetaPersonaID: suggestion.PersonaID,
			model.MetaOrder:     row.order,
		}
		id, found, err := a.memories.FindCategoryRow(ctx, suggestion.PersonaID, row.category, row.order)
		if err != nil {
			return err
		}
		if found {
			if err := a.memories.Update(ctx, id, "persona", row.content, metadata); err != nil {
				return goerr.Wrap(err, "failed to revise seed row", goerr.V("category", row.category))
			}
			continue
		}
		if _, err := a.memories.Add(ctx, "persona", row.content, metadata); err != nil {
			return goerr.Wrap(err, "failed to write seed row", goerr.V("category", row.category))
		}
	}

	if err := a.memories.DeleteStaleSeedRows(ctx, suggestion.PersonaID, suggestion.SeedID); err != nil {
		return err
	}

	if suggestion.ProfileSummary == "" {
		return nil
	}
	metadata := map[string]any{
		model.MetaType:      "persona_profile",
		model.MetaSeedID:    suggestion.SeedID,
		model.MetaCategory:  model.CategoryProfile,
		model.MetaPersonaID: suggestion.PersonaID,
	}
	id, found, err := a.memories.FindProfileRow(ctx, suggestion.PersonaID, suggestion.SeedID)
	if err != nil {
		return err
	}
	if found {
		if err := a.memories.Update(ctx, id, "persona", suggestion.ProfileSummary, metadata); err != nil {
			return goerr.Wrap(err, "failed to refresh profile summary")
		}
		return nil
	}
	if _, err := a.memories.Add(ctx, "persona", suggestion.ProfileSummary, metadata); err != nil {
		return goerr.Wrap(err, "failed to write profile summary")
	}
	return nil
}
