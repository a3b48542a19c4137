package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/kokoro-dev/kokoro/pkg/adapter"
	"github.com/kokoro-dev/kokoro/pkg/model"
	"github.com/kokoro-dev/kokoro/pkg/repository"
	"github.com/kokoro-dev/kokoro/pkg/usecase/agent"
)

// config holds configuration values
type config struct {
	logLevel string

	// LLM backend
	llmProvider string
	llmModel    string
	llmAPIKey   string
	llmBaseURL  string
	llmTimeout  time.Duration

	// Memory store
	dbPath             string
	embeddingProvider  string
	embeddingModel     string
	embeddingAPIKey    string
	embeddingWidth     int64
	maxResults         int64
	relevanceThreshold float64

	// Persona
	personaName        string
	personaDescription string
	personaGoals       string
	personaSeed        string
	personaFile        string
}

func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KOKORO_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider (openai, ollama, gemini, claude)",
			Value:       "openai",
			Sources:     cli.EnvVars("LLM_PROVIDER"),
			Destination: &cfg.llmProvider,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Model name for the selected provider",
			Value:       "gpt-4o-mini",
			Sources:     cli.EnvVars("LLM_MODEL"),
			Destination: &cfg.llmModel,
		},
		&cli.StringFlag{
			Name:        "llm-api-key",
			Usage:       "API key for the selected provider",
			Sources:     cli.EnvVars("LLM_API_KEY"),
			Destination: &cfg.llmAPIKey,
		},
		&cli.StringFlag{
			Name:        "llm-base-url",
			Usage:       "Base URL override for OpenAI-compatible backends",
			Sources:     cli.EnvVars("LLM_BASE_URL"),
			Destination: &cfg.llmBaseURL,
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Usage:       "Per-request timeout",
			Value:       120 * time.Second,
			Sources:     cli.EnvVars("LLM_TIMEOUT"),
			Destination: &cfg.llmTimeout,
		},
	}
}

func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db-path",
			Aliases:     []string{"d"},
			Usage:       "Path to the memory database",
			Value:       "./data/kokoro.db",
			Sources:     cli.EnvVars("MEMORY_DB_PATH"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding backend (gemini, local)",
			Value:       "gemini",
			Sources:     cli.EnvVars("EMBEDDING_PROVIDER"),
			Destination: &cfg.embeddingProvider,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model identifier",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.StringFlag{
			Name:        "embedding-api-key",
			Usage:       "API key for the embedding backend",
			Sources:     cli.EnvVars("EMBEDDING_API_KEY", "GEMINI_API_KEY"),
			Destination: &cfg.embeddingAPIKey,
		},
		&cli.IntFlag{
			Name:        "embedding-width",
			Usage:       "Embedding vector width",
			Value:       768,
			Sources:     cli.EnvVars("EMBEDDING_DIM"),
			Destination: &cfg.embeddingWidth,
		},
		&cli.IntFlag{
			Name:        "max-results",
			Usage:       "Maximum memories retrieved per search",
			Value:       6,
			Sources:     cli.EnvVars("MEMORY_MAX_RESULTS"),
			Destination: &cfg.maxResults,
		},
		&cli.FloatFlag{
			Name:        "relevance-threshold",
			Usage:       "Minimum cosine similarity for retrieved memories",
			Value:       0.35,
			Sources:     cli.EnvVars("MEMORY_RELEVANCE_THRESHOLD"),
			Destination: &cfg.relevanceThreshold,
		},
	}
}

func personaFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "persona-name",
			Usage:       "Persona name",
			Value:       "Avery",
			Sources:     cli.EnvVars("PERSONA_NAME"),
			Destination: &cfg.personaName,
		},
		&cli.StringFlag{
			Name:        "persona-description",
			Usage:       "One-line persona description",
			Value:       "A thoughtful companion who is empathetic, curious, and articulate.",
			Sources:     cli.EnvVars("PERSONA_DESCRIPTION"),
			Destination: &cfg.personaDescription,
		},
		&cli.StringFlag{
			Name:  "persona-goals",
			Usage: "What the persona works toward in conversation",
			Value: "Maintain engaging, realistic conversations; adapt to the user's mood and intent; " +
				"provide insightful, context-aware responses; and reflect on prior interactions to " +
				"grow the relationship over time.",
			Sources:     cli.EnvVars("PERSONA_GOALS"),
			Destination: &cfg.personaGoals,
		},
		&cli.StringFlag{
			Name:        "persona-seed",
			Usage:       "Free-form seed ideas for profile generation",
			Sources:     cli.EnvVars("PERSONA_SEED"),
			Destination: &cfg.personaSeed,
		},
		&cli.StringFlag{
			Name:        "persona-file",
			Aliases:     []string{"f"},
			Usage:       "YAML file defining the persona (overrides persona flags)",
			Sources:     cli.EnvVars("PERSONA_FILE"),
			Destination: &cfg.personaFile,
		},
	}
}

// loadPersona builds the persona from flags, or from the YAML file when one
// is given.
func (cfg *config) loadPersona() (model.Persona, error) {
	persona := model.Persona{
		Name:        cfg.personaName,
		Description: cfg.personaDescription,
		Goals:       cfg.personaGoals,
		SeedPrompt:  cfg.personaSeed,
	}
	if cfg.personaFile == "" {
		return persona, nil
	}

	raw, err := os.ReadFile(cfg.personaFile)
	if err != nil {
		return model.Persona{}, goerr.Wrap(err, "failed to read persona file", goerr.V("path", cfg.personaFile))
	}
	if err := yaml.Unmarshal(raw, &persona); err != nil {
		return model.Persona{}, goerr.Wrap(err, "failed to parse persona file", goerr.V("path", cfg.personaFile))
	}
	if persona.Name == "" {
		return model.Persona{}, goerr.New("persona file must set a name", goerr.V("path", cfg.personaFile))
	}
	return persona, nil
}

func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, error) {
	llm, err := adapter.NewLLM(ctx, adapter.Config{
		Provider: cfg.llmProvider,
		Model:    cfg.llmModel,
		APIKey:   cfg.llmAPIKey,
		BaseURL:  cfg.llmBaseURL,
		Timeout:  cfg.llmTimeout,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM client")
	}
	return llm, nil
}

func (cfg *config) newEmbedder() (adapter.Embedder, error) {
	embedder, err := adapter.NewEmbedder(adapter.EmbeddingConfig{
		Provider:   cfg.embeddingProvider,
		Model:      cfg.embeddingModel,
		APIKey:     cfg.embeddingAPIKey,
		Dimensions: int(cfg.embeddingWidth),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedder")
	}
	return embedder, nil
}

func (cfg *config) openDB() (*repository.DB, error) {
	db, err := repository.Open(cfg.dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open memory database")
	}
	return db, nil
}

// newAgent wires the full stack: database, embedder, LLM client, stores,
// and the agent itself. The caller owns closing the returned DB.
func (cfg *config) newAgent(ctx context.Context) (*agent.Agent, *repository.DB, error) {
	db, err := cfg.openDB()
	if err != nil {
		return nil, nil, err
	}

	embedder, err := cfg.newEmbedder()
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	llm, err := cfg.newLLM(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	persona, err := cfg.loadPersona()
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	memories := repository.NewMemoryStore(db, embedder)
	personas := repository.NewPersonaStore(db)

	// Reuse the persisted profile when this persona was seen before so its
	// seed id stays stable across sessions.
	var profile *model.PersonaProfile
	if rec, found, err := personas.FindByName(ctx, persona.Name); err == nil && found {
		profile = rec.Profile
	}

	ag, err := agent.New(ctx, agent.NewInput{
		LLM:             llm,
		Memories:        memories,
		Personas:        personas,
		Persona:         persona,
		Profile:         profile,
		SearchLimit:     int(cfg.maxResults),
		SearchThreshold: cfg.relevanceThreshold,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return ag, db, nil
}
