package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/startup"
)

// ChannelObserver adapts startup.Observer to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan<- tea.Msg
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- tea.Msg) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// Transition sends the state change to the channel (non-blocking if full).
func (o *ChannelObserver) Transition(from, to startup.State, _ *startup.Session) {
	select {
	case o.ch <- TransitionMsg{From: from, To: to}:
	default: // Non-blocking if channel full
	}
}
