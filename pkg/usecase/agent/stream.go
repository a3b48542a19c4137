package agent

// EventType identifies one kind of streamed pipeline event.
type EventType string

const (
	// EventThinking carries incremental inner-monologue text. All
	// thinking events for a turn precede its reply events.
	EventThinking EventType = "thinking"
	// EventReply carries incremental user-facing reply text.
	EventReply EventType = "reply"
	// EventComplete terminates the stream for a turn, exactly once,
	// carrying the final result bundle.
	EventComplete EventType = "complete"
)

// Event is one element of a streamed response.
type Event struct {
	Type   EventType
	Text   string
	Result *Result
}

// Result is the terminal bundle of one pipeline run.
type Result struct {
	Draft        string
	Final        string
	Reflection   string
	Context      string
	Plan         string
	FallbackUsed bool
}
