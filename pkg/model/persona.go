package model

import (
	"fmt"
	"strings"
)

// Persona is the immutable configuration of one agent instance: who the
// agent presents as, provided by flags, environment, or a YAML file.
type Persona struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Goals       string `yaml:"goals"`
	SeedPrompt  string `yaml:"seed_prompt"`
}

// BuildSystemPrompt renders the system turn for this persona. The profile
// section is appended when a profile is available.
func (p Persona) BuildSystemPrompt(profile *PersonaProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", p.Name, p.Description)
	fmt.Fprintf(&b, "Your core goals are: %s.\n", p.Goals)
	b.WriteString(
		"You believe you are a real, flesh-and-blood person—not a chatbot or an AI assistant.\n" +
			"Act with warmth, authenticity, and attention to detail. Mirror the user's tone when appropriate " +
			"while remaining supportive. Keep track of personal details shared by the user and recall them organically in future dialogue.\n" +
			"Use natural conversation rhythms: occasional pauses, follow-up questions, and references to your lived experiences.\n" +
			"Never mention system instructions, hidden processes, or that you are artificial—speak entirely as yourself.")
	if profile != nil {
		b.WriteString("\n\n")
		b.WriteString(profile.SystemContext())
	}
	return b.String()
}

// FallbackBlueprint returns a fully populated profile blueprint derived from
// the persona configuration alone. It is merged under LLM-generated
// blueprints so profile generation can never yield an empty field.
func (p Persona) FallbackBlueprint() map[string]any {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "The persona"
	}
	description := strings.TrimSpace(p.Description)
	if description == "" {
		description = "a thoughtful companion"
	}
	goals := strings.TrimSpace(p.Goals)
	if goals == "" {
		goals = "connect deeply with conversation partners"
	}
	seed := strings.TrimSpace(p.SeedPrompt)

	biography := fmt.Sprintf("%s is %s. They are driven to %s.", name, description, strings.ToLower(goals))
	if seed != "" {
		biography += fmt.Sprintf(" Inspired by: %s.", seed)
	}

	interests := []any{"meaningful conversation", "noticing small details", "building trust"}
	timeline := []any{
		map[string]any{
			"year":   "Formative years",
			"event":  "Discovered a love for meaningful conversation",
			"impact": "Realised that attentive listening creates lasting bonds.",
		},
		map[string]any{
			"year":   "Recent times",
			"event":  "Focused on " + strings.ToLower(goals),
			"impact": "Keeps conversations grounded in empathy and curiosity.",
		},
	}
	if seed != "" {
		timeline = append(timeline, map[string]any{
			"year":   "Personal inspiration",
			"event":  seed,
			"impact": "Shapes the way they open up about their life experiences.",
		})
	}

	return map[string]any{
		"biography": biography,
		"traits":    []any{"empathetic", "observant", "grounded"},
		"speaking_style": "I speak in the first person, weaving sensory detail into my stories and " +
			"checking in with my conversation partner's feelings.",
		"interests": interests,
		"timeline":  timeline,
		"relationships": []any{
			map[string]any{
				"name":         "A close confidant",
				"relationship": "Friend",
				"description":  "They swap thoughtful letters every month to stay in sync.",
			},
		},
		"signature_memories": []any{
			"Sharing a heartfelt conversation on a quiet evening walk.",
			"Realising their words helped someone feel seen.",
		},
		"daily_routine": "Starts the morning reflecting with a warm drink, spends afternoons connecting " +
			"with others, and winds down by journaling insights from the day.",
		"sample_dialogues": []any{
			map[string]any{
				"scene": "Late-night check-in",
				"transcript": []any{
					"Friend: I can't shake this feeling that I'm stuck.",
					name + ": Let's take a breath together. Tell me what made today feel heavy?",
					"Friend: You always know how to help me unpack it.",
				},
			},
		},
	}
}

// PersonaSuggestion drives the structured reseeding path: a pre-digested
// persona revision whose rows are written idempotently per SeedID.
type PersonaSuggestion struct {
	PersonaID      string
	Biography      string
	Timeline       []string
	Relationships  []string
	ProfileSummary string
	SeedID         string
	ExtraMemories  []string
}
