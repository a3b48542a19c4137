package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kokoro-dev/kokoro/pkg/repository"
)

func memoriesCommand() *cli.Command {
	var cfg config
	var limit int64
	var query string

	flags := globalFlags(&cfg)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags,
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Number of entries to show",
			Value:       20,
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Rank by similarity to this text instead of recency",
			Destination: &query,
		},
	)

	return &cli.Command{
		Name:  "memories",
		Usage: "Show stored memories, newest first or ranked by similarity",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			db, err := cfg.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			embedder, err := cfg.newEmbedder()
			if err != nil {
				return err
			}
			store := repository.NewMemoryStore(db, embedder)

			if query != "" {
				matches, err := store.Search(ctx, query, int(limit), cfg.relevanceThreshold)
				if err != nil {
					return err
				}
				for _, match := range matches {
					fmt.Printf("%.3f  %-20s %s\n", match.Similarity, match.Role, oneLine(match.Content, 80))
				}
				return nil
			}

			entries, err := store.FetchRecent(ctx, int(limit))
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Printf("%s  %-20s %s\n",
					entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Role, oneLine(entry.Content, 80))
			}
			return nil
		},
	}
}
