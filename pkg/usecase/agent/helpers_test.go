package agent

import "github.com/kokoro-dev/kokoro/pkg/model"

func testPersonaConfig() model.Persona {
	return model.Persona{
		Name:        "Avery",
		Description: "a painter who notices everything",
		Goals:       "Make people feel seen",
	}
}

func testProfile() *model.PersonaProfile {
	return model.ProfileFromMap(map[string]any{
		"biography":      "Avery grew up above a harbor bakery. They paint at dawn.",
		"traits":         []any{"observant", "gentle"},
		"speaking_style": "Soft, vivid, first person.",
		"interests":      []any{"tidepools", "jazz"},
	}, "test-basis", "")
}
