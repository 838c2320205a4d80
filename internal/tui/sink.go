package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/nodetree/internal/stream"
)

// EventMsg carries one round event into the program.
type EventMsg struct {
	Event stream.Event
}

// DoneMsg is sent when the round returns.
type DoneMsg struct {
	Err error
}

type programSink struct {
	program *tea.Program
}

// Sink forwards round events to a running program.
func Sink(p *tea.Program) stream.Sink {
	return programSink{program: p}
}

func (s programSink) Send(ev stream.Event) error {
	s.program.Send(EventMsg{Event: ev})
	return nil
}
