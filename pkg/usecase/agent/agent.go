// Package agent implements the persona-driven conversation orchestrator:
// session state, long-term memory retrieval, and the staged reply pipeline.
package agent

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/adapter"
	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/repository"
	"github.com/kokoro-dev/kokoro/pkg/utils/logging"
)

const (
	defaultSearchLimit     = 6
	defaultSearchThreshold = 0.35
	snippetCap             = 5
)

// Agent blends persona adherence with long-term memory. One Agent owns one
// conversation session; it must not be shared across concurrent requests
// without external synchronization.
type Agent struct {
	llm      adapter.LLM
	memories *repository.MemoryStore
	personas *repository.PersonaStore

	persona  model.Persona
	profile  *model.PersonaProfile
	recordID model.PersonaRecordID

	conversation Buffer
	initialized  bool

	scenarioPrompt string
	scenarioTurn   int

	searchLimit     int
	searchThreshold float64

	// repetition guard state, per session by design
	lastFinalReply  string
	lastUserMessage string
}

// NewInput contains parameters for creating an agent.
type NewInput struct {
	LLM      adapter.LLM
	Memories *repository.MemoryStore
	Personas *repository.PersonaStore
	Persona  model.Persona

	// Profile skips LLM profile generation when rehydrating a persisted
	// persona.
	Profile *model.PersonaProfile

	SearchLimit     int
	SearchThreshold float64
}

// New creates an agent, generating and persisting its persona profile and
// seeding the profile into the memory store when not already present.
func New(ctx context.Context, input NewInput) (*Agent, error) {
	if input.LLM == nil || input.Memories == nil || input.Personas == nil {
		return nil, goerr.New("llm, memory store, and persona store are required")
	}

	a := &Agent{
		llm:             input.LLM,
		memories:        input.Memories,
		personas:        input.Personas,
		persona:         input.Persona,
		profile:         input.Profile,
		scenarioTurn:    -1,
		searchLimit:     input.SearchLimit,
		searchThreshold: input.SearchThreshold,
	}
	if a.searchLimit <= 0 {
		a.searchLimit = defaultSearchLimit
	}
	if a.searchThreshold <= 0 {
		a.searchThreshold = defaultSearchThreshold
	}

	if a.profile == nil {
		a.profile = generateProfile(ctx, a.llm, a.persona)
	}

	rec, err := a.personas.Upsert(ctx, model.PersonaRecord{
		Persona: a.persona,
		Profile: a.profile,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to persist persona")
	}
	a.recordID = rec.ID

	if err := a.seedProfile(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to seed persona profile")
	}
	return a, nil
}

// Profile returns the current persona profile.
func (a *Agent) Profile() *model.PersonaProfile {
	return a.profile
}

// RecordID returns the persisted persona record id.
func (a *Agent) RecordID() model.PersonaRecordID {
	return a.recordID
}

// Conversation exposes the session's turn list for rendering and editing.
func (a *Agent) Conversation() *Buffer {
	return &a.conversation
}

func (a *Agent) ensureSession(ctx context.Context) {
	if a.initialized {
		return
	}
	prompt := a.persona.BuildSystemPrompt(a.profile)
	a.conversation.Add(model.RoleSystem, prompt, false)
	a.initialized = true
	a.scenarioTurn = -1
	if a.scenarioPrompt != "" {
		a.applyScenarioPrompt()
	}
	logging.From(ctx).Debug("initialized conversation with system prompt")
}

// Reset clears the session. The system prompt and scenario context are
// reapplied on the next message.
func (a *Agent) Reset() {
	a.conversation.Clear()
	a.initialized = false
	a.scenarioTurn = -1
	a.lastFinalReply = ""
	a.lastUserMessage = ""
}

// IngestUserMessage records a user message as a conversation turn and a
// durable memory entry. A message that trims to empty is a no-op, not an
// error.
func (a *Agent) IngestUserMessage(ctx context.Context, content string) error {
	a.ensureSession(ctx)
	message := strings.TrimSpace(content)
	if message == "" {
		logging.From(ctx).Debug("skipping empty user message ingestion")
		return nil
	}
	index := a.conversation.Add(model.RoleUser, message, true)
	id, err := a.memories.Add(ctx, "user", message, map[string]any{model.MetaType: "message"})
	if err != nil {
		return goerr.Wrap(err, "failed to store user message")
	}
	a.conversation.SetMemoryID(index, id)
	return nil
}

// EditTurn replaces the content of an editable turn and re-embeds its
// memory row, flagging the row as edited.
func (a *Agent) EditTurn(ctx context.Context, index int, content string) error {
	turn, err := a.conversation.Turn(index)
	if err != nil {
		return err
	}
	if !turn.Editable {
		return goerr.New("turn is not editable", goerr.V("index", index), goerr.V("role", turn.Role))
	}
	if err := a.conversation.Update(index, content); err != nil {
		return err
	}
	if turn.MemoryID != "" {
		err := a.memories.Update(ctx, turn.MemoryID, string(turn.Role), content, map[string]any{
			model.MetaType:   "message",
			model.MetaEdited: true,
		})
		if err != nil {
			return goerr.Wrap(err, "failed to update memory for edited turn")
		}
	}
	return nil
}

// RecentMemories returns up to limit of the newest memory entries.
func (a *Agent) RecentMemories(ctx context.Context, limit int) ([]model.MemoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return a.memories.FetchRecent(ctx, limit)
}

// SetScenarioPrompt updates the scenario context for the conversation. An
// empty prompt removes the scenario turn.
func (a *Agent) SetScenarioPrompt(prompt string) {
	normalized := strings.TrimSpace(prompt)
	if normalized == a.scenarioPrompt {
		return
	}
	a.scenarioPrompt = normalized
	if a.initialized {
		a.applyScenarioPrompt()
	} else {
		a.scenarioTurn = -1
	}
}

func (a *Agent) applyScenarioPrompt() {
	if !a.initialized {
		if a.scenarioPrompt == "" {
			a.scenarioTurn = -1
		}
		return
	}

	if a.scenarioPrompt == "" {
		if a.scenarioTurn >= 0 && a.scenarioTurn < a.conversation.Len() {
			_ = a.conversation.RemoveAt(a.scenarioTurn)
		}
		a.scenarioTurn = -1
		return
	}

	content := "Scenario context: " + a.scenarioPrompt
	if a.scenarioTurn >= 0 && a.scenarioTurn < a.conversation.Len() {
		_ = a.conversation.Update(a.scenarioTurn, content)
		return
	}

	insertAt := 0
	if first, err := a.conversation.Turn(0); err == nil && first.Role == model.RoleSystem {
		insertAt = 1
	}
	_ = a.conversation.InsertAt(insertAt, Turn{Role: model.RoleSystem, Content: content, Editable: false})
	a.scenarioTurn = insertAt
}

// ApplyAdjustment evolves the persona from a free-form suggestion: the LLM
// rewrites the whole profile, the persona record is re-persisted, the
// system turn is replaced in place, and the new profile's memories are
// seeded under its new seed id. On rewrite failure the profile is returned
// unchanged with nothing persisted.
func (a *Agent) ApplyAdjustment(ctx context.Context, suggestion string) (*model.PersonaProfile, error) {
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" {
		return a.profile, nil
	}

	updated := adjustProfile(ctx, a.llm, a.persona, a.profile, suggestion)
	if updated == a.profile {
		return a.profile, nil
	}

	a.profile = updated
	rec, err := a.personas.Upsert(ctx, model.PersonaRecord{
		Persona: a.persona,
		Profile: a.profile,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to persist adjusted persona")
	}
	a.recordID = rec.ID

	if a.initialized && a.conversation.Len() > 0 {
		prompt := a.persona.BuildSystemPrompt(a.profile)
		if first, err := a.conversation.Turn(0); err == nil && first.Role == model.RoleSystem {
			_ = a.conversation.Update(0, prompt)
		} else {
			_ = a.conversation.InsertAt(0, Turn{Role: model.RoleSystem, Content: prompt, Editable: false})
		}
	} else {
		a.conversation.Clear()
		a.initialized = false
	}

	_, err = a.memories.Add(ctx, "persona_update", suggestion, map[string]any{
		model.MetaType:   "persona_update_instruction",
		model.MetaSeedID: a.profile.SeedID,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store persona update instruction")
	}
	_, err = a.memories.Add(ctx, "persona",
		"Updated persona profile summary:\n"+a.profile.SystemContext(),
		map[string]any{
			model.MetaType:     "persona_profile",
			model.MetaCategory: model.CategoryProfile,
			model.MetaSeedID:   a.profile.SeedID,
		})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store persona profile summary")
	}

	if err := a.seedProfile(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to reseed persona profile")
	}
	return a.profile, nil
}
