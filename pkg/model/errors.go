package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrEmptyContent is returned when a memory write is attempted with
	// content that trims to nothing. Blank user input at the ingestion
	// boundary is a no-op instead, see usecase/agent.
	ErrEmptyContent = goerr.New("memory content is empty")

	// ErrEmbeddingUnavailable is returned when no embedding backend could
	// be initialized.
	ErrEmbeddingUnavailable = goerr.New("embedding backend unavailable")

	// ErrNoContent is returned when an LLM backend produced no usable text.
	ErrNoContent = goerr.New("llm returned no content")

	// ErrIndexOutOfRange is returned when a conversation edit references a
	// turn that does not exist.
	ErrIndexOutOfRange = goerr.New("conversation turn index out of range")
)
