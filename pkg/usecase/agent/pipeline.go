package agent

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/adapter"
	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/utils/logging"
)

//go:embed prompt/voice.md
var voicePromptRaw string

//go:embed prompt/format.md
var formatPromptRaw string

//go:embed prompt/forecast.md
var forecastPromptRaw string

var voicePromptTmpl = template.Must(template.New("voice").Parse(voicePromptRaw))
var forecastPromptTmpl = template.Must(template.New("forecast").Parse(forecastPromptRaw))

const (
	replyMaxTokens    = 600
	forecastMaxTokens = 120

	clarificationReply = "I want to make sure I hear you properly. Could you share a little more about " +
		"what's on your mind?"
	apologyReply = "I'm sorry, I lost my train of thought for a moment. Could you say that again so I " +
		"can respond properly?"
)

// GenerateResponse runs the full reply pipeline for one user message and
// returns the terminal result bundle.
func (a *Agent) GenerateResponse(ctx context.Context, userMessage string) (*Result, error) {
	return a.respond(ctx, userMessage, nil)
}

// StreamResponse runs the same pipeline, additionally emitting incremental
// thinking and reply events before a single terminal complete event.
// Thinking events for a turn always precede its reply events.
func (a *Agent) StreamResponse(ctx context.Context, userMessage string, emit func(Event)) (*Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	return a.respond(ctx, userMessage, emit)
}

// respond is the staged state machine behind both response surfaces:
// ingest, retrieve, draft, parse, sanitize, repetition guard, empty-final
// guard, persist, return. Streaming is the same machine with event
// emission, not a separate pipeline.
func (a *Agent) respond(ctx context.Context, userMessage string, emit func(Event)) (*Result, error) {
	logger := logging.From(ctx)

	trimmed := strings.TrimSpace(userMessage)
	if trimmed == "" {
		a.ensureSession(ctx)
		return a.finishTurn(ctx, emit, turnOutcome{final: clarificationReply}, trimmed)
	}

	if err := a.IngestUserMessage(ctx, trimmed); err != nil {
		return nil, err
	}

	snippets, err := a.gatherContextSnippets(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	messages, err := a.assembleMessages(snippets)
	if err != nil {
		return nil, err
	}

	draft, err := a.draft(ctx, messages, emit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate draft")
	}

	parsed := parseStructuredReply(ctx, draft)
	final := sanitizeReply(strings.TrimSpace(parsed.Reply))
	if final == "" {
		final = sanitizeReply(strings.TrimSpace(draft))
	}

	fallbackUsed := false
	if final != "" && final == a.lastFinalReply &&
		(a.lastUserMessage == "" || trimmed != a.lastUserMessage) {
		logger.Debug("repetition detected, switching to persona fallback reply")
		final = sanitizeReply(fallbackReply(a.persona, a.profile, trimmed))
		fallbackUsed = true
		if emit != nil {
			emit(Event{Type: EventReply, Text: final})
		}
	}

	if final == "" {
		final = strings.TrimSpace(draft)
	}
	if final == "" {
		final = apologyReply
	}

	plan := parsed.FollowUp
	if plan == "" {
		plan = a.forecastPlan(ctx, final)
	}

	return a.finishTurn(ctx, emit, turnOutcome{
		draft:        draft,
		final:        final,
		reflection:   parsed.Reflection,
		context:      formatContextSummary(snippets),
		plan:         plan,
		fallbackUsed: fallbackUsed,
	}, trimmed)
}

// gatherContextSnippets retrieves similar memories and formats them as
// labeled snippets.
func (a *Agent) gatherContextSnippets(ctx context.Context, userMessage string) ([]string, error) {
	matches, err := a.memories.Search(ctx, userMessage, a.searchLimit, a.searchThreshold)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories")
	}
	var snippets []string
	for _, match := range matches {
		content := strings.TrimSpace(match.Content)
		if content == "" {
			continue
		}
		role := strings.TrimSpace(match.Role)
		if role == "" {
			role = "memory"
		}
		snippets = append(snippets, role+": "+content)
	}
	return snippets, nil
}

// assembleMessages projects the conversation to the LLM message sequence,
// inserting the runtime guidance block immediately before the current user
// turn and nowhere else.
func (a *Agent) assembleMessages(snippets []string) ([]model.Message, error) {
	guidance, err := a.buildRuntimeGuidance(snippets)
	if err != nil {
		return nil, err
	}

	turns := a.conversation.Messages()
	messages := make([]model.Message, 0, len(turns)+len(guidance))
	for i, turn := range turns {
		if i == len(turns)-1 {
			messages = append(messages, guidance...)
		}
		messages = append(messages, turn)
	}
	return messages, nil
}

func (a *Agent) buildRuntimeGuidance(snippets []string) ([]model.Message, error) {
	var buf bytes.Buffer
	if err := voicePromptTmpl.Execute(&buf, map[string]any{"Name": a.persona.Name}); err != nil {
		return nil, goerr.Wrap(err, "failed to render voice guidance")
	}

	guidance := []model.Message{{Role: model.RoleSystem, Content: strings.TrimSpace(buf.String())}}
	if len(snippets) > 0 {
		capped := snippets
		if len(capped) > snippetCap {
			capped = capped[:snippetCap]
		}
		var lines []string
		for _, snippet := range capped {
			lines = append(lines, "- "+snippet)
		}
		guidance = append(guidance, model.Message{
			Role:    model.RoleSystem,
			Content: "Relevant memories you may draw from:\n" + strings.Join(lines, "\n"),
		})
	}
	guidance = append(guidance, model.Message{
		Role:    model.RoleSystem,
		Content: strings.TrimSpace(formatPromptRaw),
	})
	return guidance, nil
}

// draft issues the single completion call. When the backend can stream and
// a consumer is listening, tag content is relayed incrementally; otherwise
// the parsed fields are emitted once after the call returns.
func (a *Agent) draft(ctx context.Context, messages []model.Message, emit func(Event)) (string, error) {
	if emit != nil {
		if streamer, ok := a.llm.(adapter.Streamer); ok {
			var stream tagStream
			return streamer.CompleteStream(ctx, messages, replyMaxTokens, func(chunk string) {
				d := stream.feed(chunk)
				if d.thinking != "" {
					emit(Event{Type: EventThinking, Text: d.thinking})
				}
				if d.reply != "" {
					emit(Event{Type: EventReply, Text: d.reply})
				}
			})
		}
	}

	draft, err := a.llm.Complete(ctx, messages, replyMaxTokens)
	if err != nil {
		return "", err
	}
	if emit != nil {
		parsed := parseStructuredReply(ctx, draft)
		if parsed.Reflection != "" {
			emit(Event{Type: EventThinking, Text: parsed.Reflection})
		}
		if parsed.Reply != "" {
			emit(Event{Type: EventReply, Text: parsed.Reply})
		}
	}
	return draft, nil
}

// forecastPlan asks the reflection capability for a one-line forward plan.
// Forecast failures only cost the plan entry, never the turn.
func (a *Agent) forecastPlan(ctx context.Context, finalReply string) string {
	var buf bytes.Buffer
	if err := forecastPromptTmpl.Execute(&buf, map[string]any{"Reply": finalReply}); err != nil {
		return ""
	}
	plan, err := adapter.Reflect(ctx, a.llm, buf.String(), forecastMaxTokens)
	if err != nil {
		logging.From(ctx).Debug("forward plan forecast failed", "error", err)
		return ""
	}
	return strings.TrimSpace(plan)
}

func formatContextSummary(snippets []string) string {
	if len(snippets) == 0 {
		return ""
	}
	var lines []string
	for _, snippet := range snippets {
		lines = append(lines, "- "+snippet)
	}
	return "Relevant memories considered:\n" + strings.Join(lines, "\n")
}

type turnOutcome struct {
	draft        string
	final        string
	reflection   string
	context      string
	plan         string
	fallbackUsed bool
}

// finishTurn persists the assistant side of the turn, updates the
// repetition guard trackers, and emits the terminal complete event.
func (a *Agent) finishTurn(ctx context.Context, emit func(Event), outcome turnOutcome, userMessage string) (*Result, error) {
	index := a.conversation.Add(model.RoleAssistant, outcome.final, true)
	id, err := a.memories.Add(ctx, "assistant", outcome.final, map[string]any{
		model.MetaType:     "message",
		model.MetaFallback: outcome.fallbackUsed,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store assistant reply")
	}
	a.conversation.SetMemoryID(index, id)

	if reflection := strings.TrimSpace(outcome.reflection); reflection != "" {
		_, err := a.memories.Add(ctx, "assistant_reflection", reflection, map[string]any{
			model.MetaType: "reflection",
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to store reflection")
		}
	}

	if plan := strings.TrimSpace(outcome.plan); plan != "" {
		metadata := map[string]any{model.MetaType: "forward_plan"}
		if a.profile != nil {
			metadata[model.MetaSeedID] = a.profile.SeedID
		}
		if _, err := a.memories.Add(ctx, "assistant_plan", plan, metadata); err != nil {
			return nil, goerr.Wrap(err, "failed to store forward plan")
		}
	}

	result := &Result{
		Draft:        outcome.draft,
		Final:        outcome.final,
		Reflection:   outcome.reflection,
		Context:      outcome.context,
		Plan:         outcome.plan,
		FallbackUsed: outcome.fallbackUsed,
	}
	a.lastFinalReply = outcome.final
	if userMessage != "" {
		a.lastUserMessage = userMessage
	}

	if emit != nil {
		if outcome.draft == "" && outcome.final != "" && !outcome.fallbackUsed {
			// canned replies have no streamed draft to relay
			emit(Event{Type: EventReply, Text: outcome.final})
		}
		emit(Event{Type: EventComplete, Result: result})
	}
	return result, nil
}
