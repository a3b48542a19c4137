package agent

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

func TestBufferAddAndMessages(t *testing.T) {
	var buf Buffer

	gt.Equal(t, buf.Add(model.RoleSystem, "system prompt", false), 0)
	gt.Equal(t, buf.Add(model.RoleUser, "hello", true), 1)
	gt.Equal(t, buf.Add(model.RoleAssistant, "hi there", true), 2)

	messages := buf.Messages()
	gt.A(t, messages).Length(3)
	gt.Equal(t, messages[0], model.Message{Role: model.RoleSystem, Content: "system prompt"})
	gt.Equal(t, messages[2], model.Message{Role: model.RoleAssistant, Content: "hi there"})
}

func TestBufferUpdateOutOfRange(t *testing.T) {
	var buf Buffer
	buf.Add(model.RoleUser, "hello", true)

	err := buf.Update(5, "nope")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrIndexOutOfRange))

	err = buf.Update(-1, "nope")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrIndexOutOfRange))

	gt.NoError(t, buf.Update(0, "revised"))
	turn, err := buf.Turn(0)
	gt.NoError(t, err)
	gt.Equal(t, turn.Content, "revised")
}

func TestBufferInsertAtPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Add(model.RoleSystem, "system", false)
	buf.Add(model.RoleUser, "first", true)
	buf.Add(model.RoleAssistant, "second", true)

	gt.NoError(t, buf.InsertAt(1, Turn{Role: model.RoleSystem, Content: "scenario", Editable: false}))

	messages := buf.Messages()
	gt.A(t, messages).Length(4)
	gt.Equal(t, messages[0].Content, "system")
	gt.Equal(t, messages[1].Content, "scenario")
	gt.Equal(t, messages[2].Content, "first")
	gt.Equal(t, messages[3].Content, "second")
}

func TestBufferClearAndRemove(t *testing.T) {
	var buf Buffer
	buf.Add(model.RoleUser, "one", true)
	buf.Add(model.RoleUser, "two", true)

	gt.NoError(t, buf.RemoveAt(0))
	gt.Equal(t, buf.Len(), 1)
	turn, err := buf.Turn(0)
	gt.NoError(t, err)
	gt.Equal(t, turn.Content, "two")

	buf.Clear()
	gt.Equal(t, buf.Len(), 0)
}
