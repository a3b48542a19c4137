package model

import (
	"time"

	"github.com/google/uuid"
)

type PersonaRecordID string

// NewPersonaRecordID generates a new unique PersonaRecordID
func NewPersonaRecordID() PersonaRecordID {
	return PersonaRecordID(uuid.New().String())
}

// PersonaRecord is a persisted persona plus its generated profile, keyed by
// the persona's unique name.
type PersonaRecord struct {
	ID        PersonaRecordID
	Persona   Persona
	Profile   *PersonaProfile
	CreatedAt time.Time
	UpdatedAt time.Time
}
