package agent

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestParseStructuredReplyTags(t *testing.T) {
	parsed := parseStructuredReply(context.Background(),
		"<thinking>I feel warm</thinking><reply>Hello there</reply><follow_up>Ask about her day</follow_up>")

	gt.Equal(t, parsed.Reflection, "I feel warm")
	gt.Equal(t, parsed.Reply, "Hello there")
	gt.Equal(t, parsed.FollowUp, "Ask about her day")
}

func TestParseStructuredReplyMissingClosingTag(t *testing.T) {
	parsed := parseStructuredReply(context.Background(),
		"<thinking>pondering</thinking><reply>The rest of the line")

	gt.Equal(t, parsed.Reflection, "pondering")
	gt.Equal(t, parsed.Reply, "The rest of the line")
	gt.Equal(t, parsed.FollowUp, "")
}

func TestParseStructuredReplyJSONFallback(t *testing.T) {
	parsed := parseStructuredReply(context.Background(),
		`Some preamble {"reflection": "hm", "reply": "Hi!", "follow_up": "note"} trailing`)

	gt.Equal(t, parsed.Reflection, "hm")
	gt.Equal(t, parsed.Reply, "Hi!")
	gt.Equal(t, parsed.FollowUp, "note")
}

func TestParseStructuredReplyPlainText(t *testing.T) {
	parsed := parseStructuredReply(context.Background(), "  just a plain answer  ")

	gt.Equal(t, parsed.Reflection, "")
	gt.Equal(t, parsed.Reply, "just a plain answer")
	gt.Equal(t, parsed.FollowUp, "")
}

func TestParseStructuredReplyBrokenJSON(t *testing.T) {
	input := `{"reflection": "hm", "reply": broken}`
	parsed := parseStructuredReply(context.Background(), input)

	// unparseable JSON degrades to whole-draft reply, never an error
	gt.Equal(t, parsed.Reply, input)
}

func TestTagStreamIncrementalDeltas(t *testing.T) {
	var stream tagStream

	d := stream.feed("<thinking>I wo")
	gt.Equal(t, d.thinking, "I wo")
	gt.Equal(t, d.reply, "")

	d = stream.feed("nder</thinking><reply>Hel")
	gt.Equal(t, d.thinking, "nder")
	gt.Equal(t, d.reply, "Hel")

	d = stream.feed("lo</reply>")
	gt.Equal(t, d.thinking, "")
	gt.Equal(t, d.reply, "lo")

	gt.S(t, stream.raw()).Contains("<reply>Hello</reply>")
}

func TestSanitizeReplyStripsMetaLines(t *testing.T) {
	gt.Equal(t, sanitizeReply("Plan: do X\nHello, friend!"), "Hello, friend!")
	gt.Equal(t, sanitizeReply("Analysis: hmm\nreasoning: because\nReal line"), "Real line")
	gt.Equal(t, sanitizeReply("[thinking out loud] nope\n(thinking) nope\nKept"), "Kept")
}

func TestSanitizeReplyKeepsBlankLines(t *testing.T) {
	out := sanitizeReply("First paragraph.\n\nSecond paragraph.")
	gt.Equal(t, out, "First paragraph.\n\nSecond paragraph.")
}

func TestSanitizeReplyFallsBackToOriginal(t *testing.T) {
	// every line blocked: the original text survives rather than emptiness
	out := sanitizeReply("Plan: step one\nReflection: step two")
	gt.Equal(t, out, "Plan: step one\nReflection: step two")
}

func TestClassifyTone(t *testing.T) {
	gt.Equal(t, classifyTone("You are so stupid and useless"), toneHostile)
	gt.Equal(t, classifyTone("I feel so lonely and scared lately"), toneDistressed)
	gt.Equal(t, classifyTone("Tell me about your garden"), toneNeutral)
	// hostility wins when both kinds of markers appear
	gt.Equal(t, classifyTone("I hate feeling this lonely"), toneHostile)
}

func TestFallbackReplyUsesProfilePieces(t *testing.T) {
	persona := testPersonaConfig()
	profile := testProfile()

	reply := fallbackReply(persona, profile, "tell me again")

	gt.S(t, reply).Contains(firstSentence(profile.Biography))
	gt.S(t, reply).Contains(profile.Traits[0])
	gt.S(t, reply).Contains(profile.Interests[0])

	bare := fallbackReply(persona, nil, "tell me again")
	gt.S(t, bare).Contains(persona.Name)
}
