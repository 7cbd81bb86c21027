package tui

import "github.com/mmcdole/marquee/internal/startup"

// TransitionMsg reports one startup state change.
type TransitionMsg struct {
	From startup.State
	To   startup.State
}

// DoneMsg is sent once startup has reached its final state.
type DoneMsg struct {
	Session *startup.Session
	Err     error
}
