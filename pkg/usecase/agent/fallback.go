package agent

import (
	"fmt"
	"strings"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

type tone int

const (
	toneNeutral tone = iota
	toneHostile
	toneDistressed
)

var hostileMarkers = []string{
	"hate", "stupid", "idiot", "shut up", "useless", "pathetic",
	"annoying", "liar", "worst", "terrible at",
}

var distressMarkers = []string{
	"sad", "depressed", "scared", "afraid", "anxious", "worried",
	"lonely", "hurt", "crying", "overwhelmed", "can't cope", "help me",
}

// classifyTone is a keyword-set match over the user message. Hostility wins
// over distress when both match.
func classifyTone(message string) tone {
	lowered := strings.ToLower(message)
	for _, marker := range hostileMarkers {
		if strings.Contains(lowered, marker) {
			return toneHostile
		}
	}
	for _, marker := range distressMarkers {
		if strings.Contains(lowered, marker) {
			return toneDistressed
		}
	}
	return toneNeutral
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?"); idx != -1 {
		return strings.TrimSpace(text[:idx+1])
	}
	return text
}

// fallbackReply assembles a persona-flavored reply from profile pieces
// without another model call. It exists to break a repetition loop while
// staying in the persona's voice.
func fallbackReply(persona model.Persona, profile *model.PersonaProfile, userMessage string) string {
	var opening string
	switch classifyTone(userMessage) {
	case toneHostile:
		opening = "I can feel some frustration in your words, and I don't want to brush past it."
	case toneDistressed:
		opening = "I hear how heavy this feels, and I'm right here with you."
	default:
		opening = "Let me take a fresh run at that, because you deserve more than an echo."
	}

	var b strings.Builder
	b.WriteString(opening)
	if profile != nil {
		b.WriteString(" ")
		b.WriteString(firstSentence(profile.Biography))
		if len(profile.Traits) > 0 {
			fmt.Fprintf(&b, " Being %s, I want to understand what matters most to you right now.", profile.Traits[0])
		}
		if len(profile.Interests) > 0 {
			fmt.Fprintf(&b, " Maybe we could even wander toward %s together, if that feels right.", profile.Interests[0])
		}
	} else {
		fmt.Fprintf(&b, " As %s, I want to understand what matters most to you right now.", persona.Name)
	}
	return b.String()
}
