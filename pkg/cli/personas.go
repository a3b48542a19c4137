package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kokoro-dev/kokoro/pkg/repository"
)

func personasCommand() *cli.Command {
	var cfg config
	var showProfile bool

	flags := globalFlags(&cfg)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "profile",
		Usage:       "Include the rendered profile for each persona",
		Destination: &showProfile,
	})

	return &cli.Command{
		Name:  "personas",
		Usage: "List saved personas, most recently updated first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			db, err := cfg.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			store := repository.NewPersonaStore(db)
			records, err := store.List(ctx)
			if err != nil {
				return err
			}

			for _, rec := range records {
				fmt.Printf("%s  %-16s %s\n",
					rec.UpdatedAt.Format("2006-01-02 15:04:05"), rec.Persona.Name,
					oneLine(rec.Persona.Description, 60))
				if showProfile && rec.Profile != nil {
					fmt.Println(rec.Profile.SystemContext())
					fmt.Println()
				}
			}
			return nil
		},
	}
}
