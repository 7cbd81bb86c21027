package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/migrate"
)

func newMigrateCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Normalize numeric ids stored as text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.migrator().MigrateDatabaseIDs(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, coll := range migrate.Collections {
				r := res[coll]
				fmt.Fprintf(out, "%-8s fixed %d, duplicates dropped %d, failed %d\n", coll, r.Fixed, r.Dropped, r.Failed)
			}
			return nil
		},
	}
}
