package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TimelineEvent is one entry in the persona's life timeline.
type TimelineEvent struct {
	Year   string `json:"year"`
	Event  string `json:"event"`
	Impact string `json:"impact"`
}

// Relationship describes one person in the persona's life.
type Relationship struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Description  string `json:"description"`
}

// SampleDialogue is a short scripted exchange showcasing the persona's voice.
type SampleDialogue struct {
	Scene      string   `json:"scene"`
	Transcript []string `json:"transcript"`
}

// SeedMemory is one memory row derived from a profile, ready to be written
// to the memory store during seeding.
type SeedMemory struct {
	Role     string
	Content  string
	Metadata map[string]any
}

// PersonaProfile is the structured persona description used to enrich the
// system prompt and to seed the memory store. Every field is guaranteed
// non-empty after ProfileFromMap.
type PersonaProfile struct {
	Biography         string
	Traits            []string
	SpeakingStyle     string
	Interests         []string
	Timeline          []TimelineEvent
	Relationships     []Relationship
	SignatureMemories []string
	DailyRoutine      string
	SampleDialogues   []SampleDialogue
	SeedID            string
}

// coerceList accepts either a real list or a newline-separated string and
// returns the trimmed, non-empty items.
func coerceList(value any) []string {
	switch v := value.(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		var out []string
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, seg := range strings.Split(v, "\n") {
			if s := strings.TrimSpace(seg); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// coerceMappingList projects a fixed key set out of a list of mappings,
// dropping entries where every projected value is empty.
func coerceMappingList(value any, keys ...string) []map[string]string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var out []map[string]string
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		projected := make(map[string]string, len(keys))
		empty := true
		for _, key := range keys {
			s := ""
			if raw, ok := entry[key]; ok && raw != nil {
				s = strings.TrimSpace(fmt.Sprint(raw))
			}
			projected[key] = s
			if s != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, projected)
		}
	}
	return out
}

func coerceString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// SeedIDFromBasis derives the deterministic seed identifier from the
// profile's generating inputs.
func SeedIDFromBasis(basis string) string {
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])
}

// ProfileFromMap normalizes a heterogeneous, possibly partial blueprint into
// a fully populated PersonaProfile. Missing keys, wrong types, and
// string-instead-of-list values are tolerated; every field that ends up
// empty receives a hard-coded fallback. seedIDOverride keeps a rehydrated
// profile's identity stable across reloads; when empty the seed id is a
// sha256 over seedBasis.
func ProfileFromMap(raw map[string]any, seedBasis, seedIDOverride string) *PersonaProfile {
	if raw == nil {
		raw = map[string]any{}
	}

	profile := &PersonaProfile{
		Biography:         coerceString(raw["biography"]),
		Traits:            coerceList(raw["traits"]),
		SpeakingStyle:     coerceString(raw["speaking_style"]),
		Interests:         coerceList(raw["interests"]),
		SignatureMemories: coerceList(raw["signature_memories"]),
		DailyRoutine:      coerceString(raw["daily_routine"]),
	}

	for _, item := range coerceMappingList(raw["timeline"], "year", "event", "impact") {
		profile.Timeline = append(profile.Timeline, TimelineEvent{
			Year:   item["year"],
			Event:  item["event"],
			Impact: item["impact"],
		})
	}
	for _, item := range coerceMappingList(raw["relationships"], "name", "relationship", "description") {
		profile.Relationships = append(profile.Relationships, Relationship{
			Name:         item["name"],
			Relationship: item["relationship"],
			Description:  item["description"],
		})
	}

	if list, ok := raw["sample_dialogues"].([]any); ok {
		for _, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			transcript := coerceList(entry["transcript"])
			if len(transcript) == 0 {
				transcript = coerceList(entry["lines"])
			}
			if len(transcript) == 0 {
				continue
			}
			scene := coerceString(entry["scene"])
			if scene == "" {
				scene = "Shared moment"
			}
			profile.SampleDialogues = append(profile.SampleDialogues, SampleDialogue{
				Scene:      scene,
				Transcript: transcript,
			})
		}
	}

	profile.applyFallbacks()

	if seedIDOverride != "" {
		profile.SeedID = seedIDOverride
	} else {
		profile.SeedID = SeedIDFromBasis(seedBasis)
	}
	return profile
}

func (p *PersonaProfile) applyFallbacks() {
	if p.Biography == "" {
		p.Biography = "A multifaceted life story still waiting to be detailed."
	}
	if p.SpeakingStyle == "" {
		p.SpeakingStyle = "Warm, attentive, and vividly descriptive."
	}
	if len(p.Traits) == 0 {
		p.Traits = []string{"empathetic", "observant", "imaginative"}
	}
	if len(p.SignatureMemories) == 0 {
		p.SignatureMemories = []string{
			"The moment they first realized their curiosity could bring people together.",
			"A quiet evening reflecting on a life-changing decision.",
		}
	}
	if p.DailyRoutine == "" {
		p.DailyRoutine = "Wakes before sunrise for reflection, balances creative work with human " +
			"connection, and ends the day journaling insights."
	}
	if len(p.Interests) == 0 {
		p.Interests = []string{"storytelling", "community building", "lifelong learning"}
	}
	if len(p.Timeline) == 0 {
		p.Timeline = []TimelineEvent{
			{Year: "Early years", Event: "Formed lasting friendships", Impact: "Learned deep empathy."},
			{Year: "Present", Event: "Exploring new collaborations", Impact: "Seeks meaningful shared projects."},
		}
	}
	if len(p.Relationships) == 0 {
		p.Relationships = []Relationship{{
			Name:         "Jordan Rivera",
			Relationship: "Confidant",
			Description:  "A long-time friend who shares a passion for storytelling and checks in weekly.",
		}}
	}
	if len(p.SampleDialogues) == 0 {
		p.SampleDialogues = []SampleDialogue{{
			Scene: "Catching up with Jordan",
			Transcript: []string{
				"Jordan: Remember that rooftop talk under the meteor shower?",
				"Avery: Of course. You said the sky made you believe in second chances.",
				"Jordan: You remembered exactly what I needed to hear that night.",
			},
		}}
	}
}

// SystemContext renders the profile as a multi-section natural-language
// summary for the system prompt. The section order is fixed; prompt tuning
// depends on it staying stable.
func (p *PersonaProfile) SystemContext() string {
	lines := []string{
		"Detailed biography: " + p.Biography,
		"Speaking style guidance: " + p.SpeakingStyle,
		"Traits you embody: " + strings.Join(p.Traits, ", "),
		"Key interests: " + strings.Join(p.Interests, ", "),
		"Daily rhythm: " + p.DailyRoutine,
		"Significant life moments:",
	}
	for _, item := range p.Timeline {
		lines = append(lines, fmt.Sprintf("- %s: %s (%s)", item.Year, item.Event, item.Impact))
	}
	if len(p.Relationships) > 0 {
		lines = append(lines, "Important relationships:")
		for _, rel := range p.Relationships {
			lines = append(lines, fmt.Sprintf("- %s (%s): %s", rel.Name, rel.Relationship, rel.Description))
		}
	}
	if len(p.SignatureMemories) > 0 {
		lines = append(lines, "Signature memories to reference when natural:")
		for _, mem := range p.SignatureMemories {
			lines = append(lines, "- "+mem)
		}
	}
	return strings.Join(lines, "\n")
}

// SeedMemories decomposes the profile into the ordered sequence of memory
// rows that seeding persists: one row each for biography, speaking style,
// and interests, then one per timeline item, relationship, signature
// memory, and sample dialogue. Repeated list items carry a 1-based order.
func (p *PersonaProfile) SeedMemories() []SeedMemory {
	meta := func(category string) map[string]any {
		return map[string]any{
			MetaType:     "persona_seed",
			MetaSeedID:   p.SeedID,
			MetaCategory: category,
		}
	}
	ordered := func(category string, order int) map[string]any {
		m := meta(category)
		m[MetaOrder] = order
		return m
	}

	entries := []SeedMemory{
		{Role: "persona", Content: "Persona biography: " + p.Biography, Metadata: meta(CategoryBiography)},
		{Role: "persona", Content: "Speaking style preferences: " + p.SpeakingStyle, Metadata: meta(CategorySpeakingStyle)},
		{Role: "persona", Content: "Interests and hobbies: " + strings.Join(p.Interests, ", "), Metadata: meta(CategoryInterests)},
	}
	for i, item := range p.Timeline {
		content := fmt.Sprintf("Life timeline event #%d: %s — %s. Impact: %s.",
			i+1, item.Year, item.Event, item.Impact)
		entries = append(entries, SeedMemory{Role: "persona", Content: content, Metadata: ordered(CategoryTimeline, i+1)})
	}
	for i, rel := range p.Relationships {
		content := fmt.Sprintf("Relationship #%d with %s (%s): %s",
			i+1, rel.Name, rel.Relationship, rel.Description)
		entries = append(entries, SeedMemory{Role: "persona", Content: content, Metadata: ordered(CategoryRelationship, i+1)})
	}
	for i, mem := range p.SignatureMemories {
		content := fmt.Sprintf("Signature memory #%d: %s", i+1, mem)
		entries = append(entries, SeedMemory{Role: "persona", Content: content, Metadata: ordered(CategorySignatureMemory, i+1)})
	}
	for i, dialogue := range p.SampleDialogues {
		content := fmt.Sprintf("Simulated conversation (%s):\n%s",
			dialogue.Scene, strings.Join(dialogue.Transcript, "\n"))
		entries = append(entries, SeedMemory{Role: "persona", Content: content, Metadata: ordered(CategorySampleDialogue, i+1)})
	}
	return entries
}

// ToMap returns a JSON-serialisable representation of the profile, the
// inverse of ProfileFromMap modulo fallbacks.
func (p *PersonaProfile) ToMap() map[string]any {
	timeline := make([]any, 0, len(p.Timeline))
	for _, item := range p.Timeline {
		timeline = append(timeline, map[string]any{
			"year":   item.Year,
			"event":  item.Event,
			"impact": item.Impact,
		})
	}
	relationships := make([]any, 0, len(p.Relationships))
	for _, rel := range p.Relationships {
		relationships = append(relationships, map[string]any{
			"name":         rel.Name,
			"relationship": rel.Relationship,
			"description":  rel.Description,
		})
	}
	dialogues := make([]any, 0, len(p.SampleDialogues))
	for _, dialogue := range p.SampleDialogues {
		transcript := make([]any, 0, len(dialogue.Transcript))
		for _, line := range dialogue.Transcript {
			transcript = append(transcript, line)
		}
		dialogues = append(dialogues, map[string]any{
			"scene":      dialogue.Scene,
			"transcript": transcript,
		})
	}
	traits := make([]any, 0, len(p.Traits))
	for _, t := range p.Traits {
		traits = append(traits, t)
	}
	interests := make([]any, 0, len(p.Interests))
	for _, t := range p.Interests {
		interests = append(interests, t)
	}
	memories := make([]any, 0, len(p.SignatureMemories))
	for _, t := range p.SignatureMemories {
		memories = append(memories, t)
	}
	return map[string]any{
		"biography":          p.Biography,
		"traits":             traits,
		"speaking_style":     p.SpeakingStyle,
		"interests":          interests,
		"timeline":           timeline,
		"relationships":      relationships,
		"signature_memories": memories,
		"daily_routine":      p.DailyRoutine,
		"sample_dialogues":   dialogues,
	}
}
