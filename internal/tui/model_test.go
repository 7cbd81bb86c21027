package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/migrate"
	"github.com/mmcdole/marquee/internal/rescue"
	"github.com/mmcdole/marquee/internal/startup"
	"github.com/mmcdole/marquee/internal/testsupport"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestModel_TracksTransitions(t *testing.T) {
	ch := make(chan tea.Msg, 1)
	m := NewModel(nil, ch, nil)

	m, cmd := update(t, m, TransitionMsg{From: startup.Opening, To: startup.OpenFailed})
	assert.NotNil(t, cmd, "keeps listening")
	m, _ = update(t, m, TransitionMsg{From: startup.OpenFailed, To: startup.Rescuing})

	assert.Equal(t, []startup.State{startup.Opening, startup.OpenFailed, startup.Rescuing}, m.path)
	view := m.View()
	assert.Contains(t, view, Label(startup.OpenFailed))
	assert.Contains(t, view, Label(startup.Rescuing))
	assert.Contains(t, view, "stop after current step")
}

func TestModel_FillsInSkippedFromState(t *testing.T) {
	m := NewModel(nil, nil, nil)
	m.path = []startup.State{startup.Opening, startup.Open, startup.RestoreCheck, startup.Migrating, startup.Reload}

	m, _ = update(t, m, TransitionMsg{From: startup.Opening, To: startup.Open})
	assert.Equal(t, []startup.State{startup.Opening, startup.Open}, m.path[len(m.path)-2:])
}

func TestModel_QuitCancelsOnce(t *testing.T) {
	calls := 0
	m := NewModel(nil, nil, func() { calls++ })

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd, "does not quit before startup finishes")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.Equal(t, 1, calls)
	assert.True(t, m.stopping)
	assert.Contains(t, m.View(), "stopping after the current step")
}

func TestModel_DoneQuits(t *testing.T) {
	m := NewModel(nil, nil, nil)
	s := &startup.Session{State: startup.Ready, Migration: migrate.Result{
		domain.CollectionLibrary: {Fixed: 2},
	}}

	m, cmd := update(t, m, DoneMsg{Session: s})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, m.Done())

	got, err := m.Result()
	assert.NoError(t, err)
	assert.Same(t, s, got)

	view := m.View()
	assert.Contains(t, view, "library ready")
	assert.Contains(t, view, "library ids: 2 fixed")
}

func TestSummary(t *testing.T) {
	prev := &startup.Session{State: startup.Reload, Restore: rescue.RestoreResult{
		Performed: true,
		RescueID:  "abc-123",
		Restored:  map[string]int{domain.CollectionLibrary: 3, domain.CollectionHistory: 0},
		Failed:    map[string]error{domain.CollectionHistory: errors.New("quota")},
	}}
	s := &startup.Session{State: startup.Ready, Previous: prev}

	out := Summary(s, nil)
	assert.Contains(t, out, "restored 3 titles and 0 history entries")
	assert.Contains(t, out, "abc-123")
	assert.Contains(t, out, "could not restore history: quota")

	assert.Contains(t, Summary(&startup.Session{State: startup.RescueFailed}, nil), "could not be repaired")
	assert.Contains(t, Summary(nil, startup.ErrReloadLimit), "did not settle")
	assert.Contains(t, Summary(nil, context.Canceled), "startup stopped")
}

func TestChannelObserver_NonBlocking(t *testing.T) {
	ch := make(chan tea.Msg, 1)
	o := NewChannelObserver(ch)

	o.Transition(startup.Opening, startup.Open, nil)
	o.Transition(startup.Open, startup.RestoreCheck, nil) // dropped, buffer full

	require.Len(t, ch, 1)
	assert.Equal(t, TransitionMsg{From: startup.Opening, To: startup.Open}, <-ch)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Ready", Label(startup.Ready))
	assert.Equal(t, "UNKNOWN", Label(startup.State(42)))
}

func TestStartupRun_WaitAfterDoneTakenElsewhere(t *testing.T) {
	d := testsupport.MustDriver(t)
	q := rescue.NewQuarantine(d, d, "marquee-rescue", nil)
	orch := startup.New(startup.Deps{
		Opener:   d,
		Name:     "marquee",
		Rescuer:  rescue.NewRescuer(d, rescue.NewBackupReader(d, nil), q, nil),
		Restorer: rescue.NewRestorer(q, nil),
		Migrator: migrate.New(d, "marquee", nil),
		Logger:   testsupport.Quiet(),
	})

	start, run := StartupCmd(context.Background(), orch, 1)
	assert.Nil(t, start())

	// A leftover listener drains the channel, DoneMsg included.
	sawDone := false
	for msg := range run.Msgs() {
		if _, ok := msg.(DoneMsg); ok {
			sawDone = true
		}
	}
	require.True(t, sawDone)

	s, err := run.Wait()
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, startup.Ready, s.State)
	assert.NotNil(t, s.Store)
}
