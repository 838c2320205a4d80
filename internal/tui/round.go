package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/nodetree/internal/stream"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

// ItemStatus is the display state of one subproblem.
type ItemStatus int

const (
	StatusPending ItemStatus = iota
	StatusSolving
	StatusSolved
	StatusFailed
	StatusUnsaved
)

// String returns the label shown next to a subproblem.
func (s ItemStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSolving:
		return "solving"
	case StatusSolved:
		return "solved"
	case StatusFailed:
		return "failed"
	case StatusUnsaved:
		return "unsaved"
	default:
		return "unknown"
	}
}

// Item is one subproblem row.
type Item struct {
	SubProblemID string
	Title        string
	Status       ItemStatus
	NodeID       string
	Message      string
}

// RoundApp is the bubbletea model for one solve round.
type RoundApp struct {
	problem    string
	followUp   string
	sequential bool

	objective string
	items     []Item
	index     map[string]int

	spinner spinner.Model
	input   *InputField
	asking  bool
	next    string

	summary  *stream.Complete
	err      error
	done     bool
	quitting bool
	width    int

	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	solvedStyle  lipgloss.Style
	failedStyle  lipgloss.Style
	pendingStyle lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewRoundApp creates the view for a round. Sequential rounds solve one
// subproblem at a time, so only the next pending row shows a spinner.
func NewRoundApp(problem, followUp string, sequential bool) *RoundApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &RoundApp{
		problem:      problem,
		followUp:     followUp,
		sequential:   sequential,
		index:        make(map[string]int),
		spinner:      s,
		input:        NewInputField(),
		width:        80,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		labelStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		solvedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		failedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		hintStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
	}
}

// Init starts the spinner.
func (a *RoundApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update handles round events, key presses and spinner ticks.
func (a *RoundApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.input.SetWidth(msg.Width)
		return a, nil

	case FollowUpSubmittedMsg:
		a.next = msg.Question
		a.asking = false
		return a, tea.Quit

	case EventMsg:
		a.handleEvent(msg.Event)
		return a, nil

	case DoneMsg:
		a.done = true
		if msg.Err != nil && a.err == nil {
			a.err = msg.Err
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *RoundApp) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.quitting = true
		return a, tea.Quit
	}

	if a.asking {
		if msg.Type == tea.KeyEsc {
			a.asking = false
			a.input.Blur()
			return a, nil
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "q":
		if !a.done {
			a.quitting = true
		}
		return a, tea.Quit
	case "f":
		if a.done && a.err == nil {
			a.asking = true
			return a, a.input.Focus()
		}
	}
	return a, nil
}

func (a *RoundApp) handleEvent(ev stream.Event) {
	switch data := ev.Data.(type) {
	case *models.Breakdown:
		a.setBreakdown(data)

	case stream.SolverOutput:
		var title, nodeID string
		if data.Node != nil {
			title, nodeID = data.Title, data.ID
		}
		i := a.item(data.SubProblemID, title)
		a.settle(i)
		a.items[i].Status = StatusSolved
		a.items[i].NodeID = nodeID
		a.advance()

	case stream.SolverFailure:
		i := a.item(data.SubProblemID, data.Title)
		a.settle(i)
		a.items[i].Status = StatusFailed
		a.items[i].Message = data.Error
		a.advance()

	case stream.Complete:
		a.summary = &data
		// A row still in flight at completion was solved but never stored.
		for i := range a.items {
			if a.items[i].Status == StatusSolving {
				a.items[i].Status = StatusUnsaved
			}
		}
		a.done = true

	case stream.Error:
		a.err = errors.New(data.Error)
		a.done = true
	}
}

func (a *RoundApp) setBreakdown(b *models.Breakdown) {
	if b == nil {
		return
	}
	a.objective = b.MainObjective
	a.items = a.items[:0]
	a.index = make(map[string]int, len(b.SubProblems))
	for _, sp := range b.SubProblems {
		a.index[sp.ID] = len(a.items)
		a.items = append(a.items, Item{SubProblemID: sp.ID, Title: sp.Title})
	}
	if !a.sequential {
		for i := range a.items {
			a.items[i].Status = StatusSolving
		}
		return
	}
	a.advance()
}

// item returns the row for a subproblem, adding one when the breakdown was
// not shown.
func (a *RoundApp) item(id, title string) int {
	if i, ok := a.index[id]; ok {
		return i
	}
	a.index[id] = len(a.items)
	a.items = append(a.items, Item{SubProblemID: id, Title: title})
	return len(a.items) - 1
}

// settle marks rows still solving before row i as unsaved. Sequential rounds
// deliver in order and emit nothing for a solve that could not be stored.
func (a *RoundApp) settle(i int) {
	if !a.sequential {
		return
	}
	for j := 0; j < i; j++ {
		if a.items[j].Status == StatusSolving {
			a.items[j].Status = StatusUnsaved
		}
	}
}

// advance marks the first pending row as solving in sequential rounds.
func (a *RoundApp) advance() {
	if !a.sequential {
		return
	}
	for i := range a.items {
		switch a.items[i].Status {
		case StatusSolving:
			return
		case StatusPending:
			a.items[i].Status = StatusSolving
			return
		}
	}
}

// View renders the round.
func (a *RoundApp) View() string {
	var b strings.Builder

	b.WriteString(a.titleStyle.Render("nodetree"))
	b.WriteString("\n\n")
	b.WriteString(a.labelStyle.Render("Problem: "))
	b.WriteString(a.problem)
	b.WriteString("\n")
	if a.followUp != "" {
		b.WriteString(a.labelStyle.Render("Follow-up: "))
		b.WriteString(a.followUp)
		b.WriteString("\n")
	}
	if a.objective != "" {
		b.WriteString(a.labelStyle.Render("Objective: "))
		b.WriteString(a.objective)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(a.items) == 0 && !a.done {
		b.WriteString(a.spinner.View())
		b.WriteString(" Breaking the problem down...\n")
	}
	for _, it := range a.items {
		b.WriteString(a.renderItem(it))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.renderFooter())
	return b.String()
}

func (a *RoundApp) renderItem(it Item) string {
	var line string
	switch it.Status {
	case StatusSolving:
		line = fmt.Sprintf("%s %s", a.spinner.View(), it.Title)
	case StatusSolved:
		line = a.solvedStyle.Render("✓ "+it.Title) + a.labelStyle.Render("  "+it.NodeID)
	case StatusFailed:
		line = a.failedStyle.Render("✗ " + it.Title)
		if it.Message != "" {
			line += "\n    " + a.labelStyle.Render(it.Message)
		}
	case StatusUnsaved:
		line = a.failedStyle.Render("! "+it.Title) + a.labelStyle.Render("  solved, not saved")
	default:
		line = a.pendingStyle.Render("· " + it.Title)
	}
	return "  " + line
}

func (a *RoundApp) renderFooter() string {
	if a.err != nil {
		return a.failedStyle.Render("Error: "+a.err.Error()) + "\n" + a.hintStyle.Render("q quit")
	}
	if !a.done {
		return a.hintStyle.Render("ctrl+c cancel")
	}

	var b strings.Builder
	if a.summary != nil {
		s := a.summary
		summary := fmt.Sprintf("%d solved, %d failed", s.Solved, s.Failed)
		if s.Unsaved > 0 {
			summary += fmt.Sprintf(", %d not saved", s.Unsaved)
		}
		if s.Requested > s.Dispatched {
			summary += fmt.Sprintf(" (%d of %d subproblems dispatched)", s.Dispatched, s.Requested)
		}
		b.WriteString(summary)
		b.WriteString("\n")
	}
	if a.asking {
		b.WriteString(a.input.View())
		b.WriteString("\n")
		b.WriteString(a.hintStyle.Render("enter submit · esc back"))
		return b.String()
	}
	b.WriteString(a.hintStyle.Render("f follow-up · q quit"))
	return b.String()
}

// Items returns a copy of the subproblem rows.
func (a *RoundApp) Items() []Item {
	out := make([]Item, len(a.items))
	copy(out, a.items)
	return out
}

// FollowUp returns the follow-up question submitted after the round, or "".
func (a *RoundApp) FollowUp() string {
	return a.next
}

// Aborted reports whether the user quit before the round finished.
func (a *RoundApp) Aborted() bool {
	return a.quitting
}

// Err returns the round error, if any.
func (a *RoundApp) Err() error {
	return a.err
}
