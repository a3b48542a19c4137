package model

import (
	"time"

	"github.com/google/uuid"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// MemoryEntry is one durably stored, embedded text record: a user message,
// assistant reply, reflection, forward plan, or persona seed fact.
type MemoryEntry struct {
	ID        MemoryID
	CreatedAt time.Time
	Role      string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// ScoredEntry is a memory entry paired with its cosine similarity to a
// search query.
type ScoredEntry struct {
	MemoryEntry
	Similarity float64
}

// Metadata keys shared between the pipeline and the seeding subsystem.
const (
	MetaType      = "type"
	MetaCategory  = "category"
	MetaSeedID    = "seed_id"
	MetaPersonaID = "persona_id"
	MetaOrder     = "order"
	MetaEdited    = "edited"
	MetaFallback  = "fallback_used"
)

// Seed memory categories. CategoryProfile is excluded from the seeding
// idempotency check so a summary row landing first cannot mask missing
// structured rows.
const (
	CategoryBiography       = "biography"
	CategorySpeakingStyle   = "speaking_style"
	CategoryInterests       = "interests"
	CategoryTimeline        = "timeline"
	CategoryRelationship    = "relationship"
	CategorySignatureMemory = "signature_memory"
	CategorySampleDialogue  = "sample_dialogue"
	CategoryExtra           = "extra"
	CategoryProfile         = "persona_profile"
)
