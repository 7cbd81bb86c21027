package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/startup"
	"github.com/mmcdole/marquee/internal/tui"
)

func newRescueCommand(c *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rescue",
		Short: "Back up the primary store, recreate it empty and restore the backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("rescue deletes and recreates the store; re-run with --yes to proceed")
			}
			ctx := cmd.Context()
			name := c.config.Storage.Primary

			if !c.rescuer().PerformRescue(ctx, name) {
				return fmt.Errorf("rescue of %s failed; see %s", name, c.config.Logging.File)
			}

			h, err := c.driver.OpenVersioned(ctx, name, domain.PrimarySchema)
			if err != nil {
				return fmt.Errorf("reopen %s: %w (backup kept in %s)", name, err, c.config.Storage.Quarantine)
			}
			defer h.Close()

			s := &startup.Session{
				State:     startup.Ready,
				Restore:   c.restorer().RestoreFromRescue(ctx, h),
				Migration: c.migrator().Run(ctx, h),
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Summary(s, nil))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the destructive reset")
	return cmd
}
