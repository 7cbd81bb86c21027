package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/marquee/internal/startup"
	"github.com/mmcdole/marquee/internal/tui"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

// runStartup brings the primary store up, showing progress in the TUI when
// stdout is a terminal and as plain lines otherwise.
func runStartup(cmd *cobra.Command, c *commandContext) (*startup.Session, error) {
	out := cmd.OutOrStdout()
	if !c.config.UI.Plain && isTerminal(out) {
		return runStartupTUI(cmd.Context(), c, out)
	}

	obs := startup.ObserverFunc(func(_, to startup.State, _ *startup.Session) {
		fmt.Fprintf(out, "%s %s\n", styles.DimStyle.Render(styles.PendingChar), tui.Label(to))
	})
	s, err := startup.Bootstrap(cmd.Context(), c.orchestrator(obs), c.config.Storage.MaxReloads)
	fmt.Fprintln(out, tui.Summary(s, err))
	return s, err
}

func runStartupTUI(ctx context.Context, c *commandContext, out io.Writer) (*startup.Session, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start, run := tui.StartupCmd(runCtx, c.orchestrator(nil), c.config.Storage.MaxReloads)
	p := tea.NewProgram(tui.NewModel(start, run.Msgs(), cancel), tea.WithOutput(out), tea.WithContext(ctx))

	c.logger.Info("starting TUI")
	final, err := p.Run()
	if err != nil {
		c.logger.Error("TUI error", "error", err)
	}

	if m, ok := final.(tui.Model); ok && m.Done() {
		return m.Result()
	}

	// The program went away early; startup may still be mid-rescue. A
	// listener left over from the program may already hold the DoneMsg, so
	// the outcome comes from the run itself.
	cancel()
	go func() {
		for range run.Msgs() {
		}
	}()
	s, err := run.Wait()
	fmt.Fprintln(out, tui.Summary(s, err))
	return s, err
}

// openLibrary runs startup without progress output and returns a session
// holding the open primary store.
func openLibrary(cmd *cobra.Command, c *commandContext) (*startup.Session, error) {
	s, err := startup.Bootstrap(cmd.Context(), c.orchestrator(nil), c.config.Storage.MaxReloads)
	if err != nil {
		return s, err
	}
	if s.State != startup.Ready {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.Summary(s, nil))
		return s, fmt.Errorf("library unavailable: store ended in state %s", s.State)
	}
	if _, restored := s.Restored(); restored || s.Migration.Changed() {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.Summary(s, nil))
	}
	return s, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
