package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/kokoro-dev/kokoro/pkg/usecase/agent"
	"github.com/kokoro-dev/kokoro/pkg/utils/logging"
)

func chatCommand() *cli.Command {
	var cfg config
	var scenario string

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, personaFlags(&cfg)...)
	flags = append(flags, &cli.StringFlag{
		Name:        "scenario",
		Usage:       "Scenario context injected into the conversation",
		Sources:     cli.EnvVars("KOKORO_SCENARIO"),
		Destination: &scenario,
	})

	return &cli.Command{
		Name:  "chat",
		Usage: "Start an interactive conversation with the persona",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			ag, db, err := cfg.newAgent(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if scenario != "" {
				ag.SetScenarioPrompt(scenario)
			}

			return runChatLoop(ctx, ag, cfg.personaName)
		},
	}
}

func runChatLoop(ctx context.Context, ag *agent.Agent, personaName string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".kokoro_chat_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return goerr.Wrap(err, "failed to initialize input reader")
	}
	defer rl.Close()

	fmt.Printf("Chatting with %s. Type /help for commands, Ctrl-D to leave.\n\n", personaName)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			fmt.Println("bye.")
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		input := strings.TrimSpace(line)
		if strings.HasPrefix(input, "/") {
			done, err := handleChatCommand(ctx, ag, input)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		if err := streamTurn(ctx, ag, personaName, input); err != nil {
			logging.From(ctx).Error("turn failed", "error", err)
			fmt.Printf("error: %v\n", err)
		}
	}
}

// streamTurn renders one agent turn: a spinner until the first event, dim
// thinking text, then the reply.
func streamTurn(ctx context.Context, ag *agent.Agent, personaName, input string) error {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " " + personaName + " is thinking..."
	sp.Start()

	spinning := true
	stop := func() {
		if spinning {
			sp.Stop()
			spinning = false
		}
	}
	defer stop()

	inThinking := false
	result, err := ag.StreamResponse(ctx, input, func(ev agent.Event) {
		stop()
		switch ev.Type {
		case agent.EventThinking:
			if !inThinking {
				fmt.Printf("\x1b[2m[%s thinks] ", personaName)
				inThinking = true
			}
			fmt.Print(ev.Text)
		case agent.EventReply:
			if inThinking {
				fmt.Print("\x1b[0m\n")
				inThinking = false
			}
			fmt.Print(ev.Text)
		case agent.EventComplete:
			if inThinking {
				fmt.Print("\x1b[0m")
				inThinking = false
			}
		}
	})
	if err != nil {
		return err
	}

	fmt.Println()
	if result.Plan != "" {
		logging.From(ctx).Debug("forward plan recorded", "plan", result.Plan)
	}
	return nil
}

func handleChatCommand(ctx context.Context, ag *agent.Agent, input string) (bool, error) {
	fields := strings.SplitN(input, " ", 2)
	arg := ""
	if len(fields) > 1 {
		arg = strings.TrimSpace(fields[1])
	}

	switch fields[0] {
	case "/help":
		fmt.Println(`commands:
  /memories            show recent memories
  /persona <text>      evolve the persona with a suggestion
  /scenario <text>     set or replace the scenario context ("" clears)
  /edit <index> <text> rewrite an earlier turn
  /reset               clear the session
  /quit                leave the chat`)
		return false, nil

	case "/quit", "/exit":
		fmt.Println("bye.")
		return true, nil

	case "/reset":
		ag.Reset()
		fmt.Println("session cleared.")
		return false, nil

	case "/scenario":
		ag.SetScenarioPrompt(arg)
		if arg == "" {
			fmt.Println("scenario cleared.")
		} else {
			fmt.Println("scenario updated.")
		}
		return false, nil

	case "/persona":
		if arg == "" {
			return false, goerr.New("usage: /persona <suggestion>")
		}
		profile, err := ag.ApplyAdjustment(ctx, arg)
		if err != nil {
			return false, err
		}
		fmt.Println("persona updated:")
		fmt.Println(profile.SystemContext())
		return false, nil

	case "/memories":
		entries, err := ag.RecentMemories(ctx, 20)
		if err != nil {
			return false, err
		}
		for _, entry := range entries {
			fmt.Printf("%s  %-20s %s\n",
				entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Role, oneLine(entry.Content, 80))
		}
		return false, nil

	case "/edit":
		parts := strings.SplitN(arg, " ", 2)
		if len(parts) != 2 {
			return false, goerr.New("usage: /edit <index> <new content>")
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil {
			return false, goerr.Wrap(err, "turn index must be a number")
		}
		if err := ag.EditTurn(ctx, index, strings.TrimSpace(parts[1])); err != nil {
			return false, err
		}
		fmt.Println("turn updated.")
		return false, nil

	default:
		return false, goerr.New("unknown command, try /help", goerr.V("command", fields[0]))
	}
}

func oneLine(text string, limit int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
