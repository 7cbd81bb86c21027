// Package tui renders startup progress in the terminal.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/startup"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

// Model is the Bubble Tea model of the startup view.
type Model struct {
	keys    KeyMap
	spinner spinner.Model

	start  tea.Cmd
	msgs   <-chan tea.Msg
	cancel context.CancelFunc

	path     []startup.State
	stopping bool
	done     bool
	session  *startup.Session
	err      error
}

// NewModel creates the startup view. start kicks off the work, msgs carries
// its progress and cancel (optional) is called when the user asks to stop.
func NewModel(start tea.Cmd, msgs <-chan tea.Msg, cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	return Model{
		keys:    DefaultKeyMap(),
		spinner: sp,
		start:   start,
		msgs:    msgs,
		cancel:  cancel,
		path:    []startup.State{startup.Opening},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start, listenCmd(m.msgs))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Stopping only takes effect between steps; a rescue always finishes.
		if key.Matches(msg, m.keys.Quit) && !m.done && !m.stopping {
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case TransitionMsg:
		if last := m.path[len(m.path)-1]; last != msg.From {
			m.path = append(m.path, msg.From)
		}
		m.path = append(m.path, msg.To)
		return m, listenCmd(m.msgs)

	case DoneMsg:
		m.done = true
		m.session = msg.Session
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Result returns the outcome once the model has received DoneMsg.
func (m Model) Result() (*startup.Session, error) {
	return m.session, m.err
}

// Done reports whether startup has finished.
func (m Model) Done() bool {
	return m.done
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("marquee"))
	b.WriteString(" ")
	b.WriteString(styles.SubtitleStyle.Render("checking local library"))
	b.WriteString("\n\n")

	for i, s := range m.path {
		last := i == len(m.path)-1
		var marker string
		switch {
		case last && !m.done && !s.Terminal():
			marker = m.spinner.View()
		case failed(s):
			marker = styles.ErrorStyle.Render(styles.FailedChar)
		default:
			marker = styles.SuccessStyle.Render(styles.DoneChar)
		}
		b.WriteString(" " + marker + " " + Label(s) + "\n")
	}

	if m.done {
		b.WriteString("\n")
		b.WriteString(Summary(m.session, m.err))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	if m.stopping {
		b.WriteString(styles.DimStyle.Render("stopping after the current step..."))
	} else {
		h := m.keys.Quit.Help()
		b.WriteString(styles.DimStyle.Render(h.Key + " " + h.Desc))
	}
	b.WriteString("\n")
	return b.String()
}

func failed(s startup.State) bool {
	return s == startup.OpenFailed || s == startup.RescueFailed
}
