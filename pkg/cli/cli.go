package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kokoro-dev/kokoro/pkg/utils/logging"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "kokoro",
		Usage: "Persona-driven conversational agent with long-term memory",
		Commands: []*cli.Command{
			chatCommand(),
			memoriesCommand(),
			personasCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// withLogger installs a logger at the configured level into the context.
func (cfg *config) withLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}
