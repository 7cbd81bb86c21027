package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/startup"
)

// StartupRun is a startup sequence running in the background.
type StartupRun struct {
	msgs chan tea.Msg
	done chan struct{}

	session *startup.Session
	err     error
}

// Msgs carries the transitions followed by a DoneMsg. It is closed once the
// DoneMsg has been delivered.
func (r *StartupRun) Msgs() <-chan tea.Msg {
	return r.msgs
}

// Wait blocks until startup finishes and returns its outcome, whoever ends up
// reading the DoneMsg.
func (r *StartupRun) Wait() (*startup.Session, error) {
	<-r.done
	return r.session, r.err
}

// StartupCmd returns the command that starts the sequence and the run it
// reports on.
func StartupCmd(ctx context.Context, orch *startup.Orchestrator, maxReloads int) (tea.Cmd, *StartupRun) {
	run := &StartupRun{
		msgs: make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
	orch.SetObserver(NewChannelObserver(run.msgs))

	cmd := func() tea.Msg {
		go func() {
			defer close(run.msgs)
			run.session, run.err = startup.Bootstrap(ctx, orch, maxReloads)
			close(run.done)
			run.msgs <- DoneMsg{Session: run.session, Err: run.err}
		}()
		return nil
	}
	return cmd, run
}

// listenCmd reads the next message from the startup channel
func listenCmd(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
