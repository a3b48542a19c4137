package agent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/adapter"
	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/utils/logging"
)

//go:embed prompt/profile_generate.md
var profileGeneratePromptRaw string

//go:embed prompt/profile_adjust.md
var profileAdjustPromptRaw string

var profileGeneratePromptTmpl = template.Must(template.New("profile_generate").Parse(profileGeneratePromptRaw))
var profileAdjustPromptTmpl = template.Must(template.New("profile_adjust").Parse(profileAdjustPromptRaw))

const profileGenerateSystem = "You craft comprehensive character bibles. Respond with valid JSON only. " +
	"Capture biography, traits, interests, relationships, key memories, and sample dialogues that showcase personality."

const profileAdjustSystem = "You update existing character bibles. Respond with valid JSON only and preserve all required keys. " +
	"Incorporate the user's instructions directly into the persona's biography, traits, relationships, speaking style, " +
	"and memories so the persona evolves accordingly."

const profileMaxTokens = 900

// profileSchema checks the shape of an LLM-authored blueprint before it is
// accepted. Field values inside lists stay loose on purpose; the coercion
// layer tolerates partial entries.
var profileSchema = func() *jsonschema.Resolved {
	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"biography":          {Type: "string"},
			"traits":             {Type: "array"},
			"speaking_style":     {Type: "string"},
			"interests":          {Type: "array"},
			"timeline":           {Type: "array"},
			"relationships":      {Type: "array"},
			"signature_memories": {Type: "array"},
			"daily_routine":      {Type: "string"},
			"sample_dialogues":   {Type: "array"},
		},
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(err)
	}
	return resolved
}()

// parseBlueprint decodes and validates an LLM response as a profile
// blueprint. Responses wrapped in prose or code fences are salvaged by
// taking the outermost JSON object.
func parseBlueprint(response string) (map[string]any, error) {
	candidate := strings.TrimSpace(response)
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, goerr.New("no JSON object in profile response")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &data); err != nil {
		return nil, goerr.Wrap(err, "failed to decode profile blueprint")
	}
	if err := profileSchema.Validate(data); err != nil {
		return nil, goerr.Wrap(err, "profile blueprint failed validation")
	}
	return data, nil
}

// canonicalJSON renders v with sorted keys so seed ids derived from it are
// stable across runs.
func canonicalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// generateProfile asks the LLM for a character bible and merges it over the
// persona's fallback blueprint. Any generation or parse failure degrades to
// the fallback alone; this function never fails.
func generateProfile(ctx context.Context, llm adapter.LLM, persona model.Persona) *model.PersonaProfile {
	seed := strings.TrimSpace(persona.SeedPrompt)

	var buf bytes.Buffer
	data := map[string]any{}
	if err := profileGeneratePromptTmpl.Execute(&buf, map[string]any{
		"Name":        persona.Name,
		"Description": persona.Description,
		"Goals":       persona.Goals,
		"Seed":        seed,
	}); err == nil {
		response, err := llm.Complete(ctx, []model.Message{
			{Role: model.RoleSystem, Content: profileGenerateSystem},
			{Role: model.RoleUser, Content: buf.String()},
		}, profileMaxTokens)
		if err != nil {
			logging.From(ctx).Warn("profile generation failed, using fallback blueprint", "error", err)
		} else if parsed, err := parseBlueprint(response); err != nil {
			logging.From(ctx).Warn("profile blueprint rejected, using fallback blueprint", "error", err)
		} else {
			data = parsed
		}
	}

	merged := mergeBlueprint(persona.FallbackBlueprint(), data)
	seedBasis := strings.Join([]string{
		persona.Name, persona.Description, persona.Goals, seed, canonicalJSON(merged),
	}, "|")
	return model.ProfileFromMap(merged, seedBasis, "")
}

// adjustProfile asks the LLM to rewrite the whole profile per the
// suggestion. On any failure the current profile is returned unchanged;
// a profile is never partially patched.
func adjustProfile(ctx context.Context, llm adapter.LLM, persona model.Persona, current *model.PersonaProfile, suggestion string) *model.PersonaProfile {
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" {
		return current
	}

	payload, err := json.MarshalIndent(current.ToMap(), "", "  ")
	if err != nil {
		return current
	}

	var buf bytes.Buffer
	if err := profileAdjustPromptTmpl.Execute(&buf, map[string]any{
		"Profile":    string(payload),
		"Suggestion": suggestion,
	}); err != nil {
		return current
	}

	response, err := llm.Complete(ctx, []model.Message{
		{Role: model.RoleSystem, Content: profileAdjustSystem},
		{Role: model.RoleUser, Content: buf.String()},
	}, profileMaxTokens)
	if err != nil {
		logging.From(ctx).Warn("profile adjustment failed, keeping current profile", "error", err)
		return current
	}

	data, err := parseBlueprint(response)
	if err != nil {
		logging.From(ctx).Warn("adjusted profile rejected, keeping current profile", "error", err)
		return current
	}

	seedBasis := strings.Join([]string{
		persona.Name, persona.Description, persona.Goals, persona.SeedPrompt,
		suggestion, canonicalJSON(data),
	}, "|")
	return model.ProfileFromMap(data, seedBasis, "")
}

// mergeBlueprint lays generated values over the fallback, skipping nil,
// empty-string, and empty-collection values so a sparse generation can
// never hollow out a field.
func mergeBlueprint(fallback, generated map[string]any) map[string]any {
	merged := make(map[string]any, len(fallback))
	for key, value := range fallback {
		merged[key] = value
	}
	for key, value := range generated {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
		case []any:
			if len(v) == 0 {
				continue
			}
		case map[string]any:
			if len(v) == 0 {
				continue
			}
		}
		merged[key] = value
	}
	return merged
}
