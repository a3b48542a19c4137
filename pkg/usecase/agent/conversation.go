package agent

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

// Turn is one entry in the in-session conversation history. Editable is
// false for system and scenario turns. MemoryID links the turn to its
// durable memory row when one exists.
type Turn struct {
	Role     model.Role
	Content  string
	Editable bool
	MemoryID model.MemoryID
}

// Buffer is the ordered in-session list of conversation turns. It is owned
// by exactly one agent session and carries no synchronization of its own.
// If turn 0 has role system it holds the persona's system prompt and is
// never a free-form user turn.
type Buffer struct {
	turns []Turn
}

// Add appends a turn and returns its index.
func (b *Buffer) Add(role model.Role, content string, editable bool) int {
	b.turns = append(b.turns, Turn{Role: role, Content: content, Editable: editable})
	return len(b.turns) - 1
}

// Update replaces the content of the turn at index in place.
func (b *Buffer) Update(index int, content string) error {
	if index < 0 || index >= len(b.turns) {
		return goerr.Wrap(model.ErrIndexOutOfRange, "cannot update turn",
			goerr.V("index", index), goerr.V("turns", len(b.turns)))
	}
	b.turns[index].Content = content
	return nil
}

// InsertAt places turn at index, shifting later turns down while preserving
// their relative order. Used to inject scenario context after the system
// prompt.
func (b *Buffer) InsertAt(index int, turn Turn) error {
	if index < 0 || index > len(b.turns) {
		return goerr.Wrap(model.ErrIndexOutOfRange, "cannot insert turn",
			goerr.V("index", index), goerr.V("turns", len(b.turns)))
	}
	b.turns = append(b.turns, Turn{})
	copy(b.turns[index+1:], b.turns[index:])
	b.turns[index] = turn
	return nil
}

// RemoveAt deletes the turn at index.
func (b *Buffer) RemoveAt(index int) error {
	if index < 0 || index >= len(b.turns) {
		return goerr.Wrap(model.ErrIndexOutOfRange, "cannot remove turn",
			goerr.V("index", index), goerr.V("turns", len(b.turns)))
	}
	b.turns = append(b.turns[:index], b.turns[index+1:]...)
	return nil
}

// SetMemoryID records the durable memory row backing the turn at index.
func (b *Buffer) SetMemoryID(index int, id model.MemoryID) {
	if index >= 0 && index < len(b.turns) {
		b.turns[index].MemoryID = id
	}
}

// Turn returns a copy of the turn at index.
func (b *Buffer) Turn(index int) (Turn, error) {
	if index < 0 || index >= len(b.turns) {
		return Turn{}, goerr.Wrap(model.ErrIndexOutOfRange, "no such turn",
			goerr.V("index", index), goerr.V("turns", len(b.turns)))
	}
	return b.turns[index], nil
}

// Len returns the number of turns.
func (b *Buffer) Len() int {
	return len(b.turns)
}

// Messages projects the buffer to role/content pairs in turn order.
func (b *Buffer) Messages() []model.Message {
	messages := make([]model.Message, 0, len(b.turns))
	for _, turn := range b.turns {
		messages = append(messages, model.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

// Clear empties the buffer in place.
func (b *Buffer) Clear() {
	b.turns = b.turns[:0]
}
