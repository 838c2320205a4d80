package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/nodetree/internal/stream"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

func testBreakdown() *models.Breakdown {
	return &models.Breakdown{
		Problem:       "Build a to-do app tracker",
		MainObjective: "Ship a working tracker",
		SubProblems: []models.SubProblem{
			{ID: "s1", Title: "Data model"},
			{ID: "s2", Title: "API"},
			{ID: "s3", Title: "UI"},
		},
	}
}

func send(a *RoundApp, ev stream.Event) {
	a.Update(EventMsg{Event: ev})
}

func statuses(a *RoundApp) []ItemStatus {
	var out []ItemStatus
	for _, it := range a.Items() {
		out = append(out, it.Status)
	}
	return out
}

func equalStatuses(t *testing.T, got, want []ItemStatus) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}
}

func TestRoundApp_SequentialProgress(t *testing.T) {
	app := NewRoundApp("Build a to-do app tracker", "", true)

	send(app, stream.NewBreakdown(testBreakdown()))
	equalStatuses(t, statuses(app), []ItemStatus{StatusSolving, StatusPending, StatusPending})

	send(app, stream.NewSolverOutput(&models.Node{ID: "n1", Title: "Data model"}, "s1"))
	equalStatuses(t, statuses(app), []ItemStatus{StatusSolved, StatusSolving, StatusPending})

	send(app, stream.NewSolverFailure(models.SolverResult{SubProblemID: "s2", Title: "API", Content: "Solving \"API\" timed out."}))
	equalStatuses(t, statuses(app), []ItemStatus{StatusSolved, StatusFailed, StatusSolving})

	if got := app.Items()[0].NodeID; got != "n1" {
		t.Errorf("NodeID = %q, want n1", got)
	}
	if got := app.Items()[1].Message; !strings.Contains(got, "timed out") {
		t.Errorf("Message = %q", got)
	}
}

func TestRoundApp_SequentialUnsavedRow(t *testing.T) {
	app := NewRoundApp("p", "", true)
	send(app, stream.NewBreakdown(testBreakdown()))

	// s1 was solved but not stored, so the next event is for s2.
	send(app, stream.NewSolverOutput(&models.Node{ID: "n2", Title: "API"}, "s2"))
	equalStatuses(t, statuses(app), []ItemStatus{StatusUnsaved, StatusSolved, StatusSolving})
}

func TestRoundApp_BatchCompleteMarksUnsaved(t *testing.T) {
	app := NewRoundApp("p", "", false)
	send(app, stream.NewBreakdown(testBreakdown()))
	equalStatuses(t, statuses(app), []ItemStatus{StatusSolving, StatusSolving, StatusSolving})

	send(app, stream.NewSolverOutput(&models.Node{ID: "n3", Title: "UI"}, "s3"))
	send(app, stream.NewSolverOutput(&models.Node{ID: "n1", Title: "Data model"}, "s1"))
	send(app, stream.NewComplete(stream.Complete{Requested: 3, Dispatched: 3, Solved: 3, Unsaved: 1, Degraded: true}))

	equalStatuses(t, statuses(app), []ItemStatus{StatusSolved, StatusUnsaved, StatusSolved})
	view := app.View()
	if !strings.Contains(view, "3 solved, 0 failed, 1 not saved") {
		t.Errorf("View missing summary:\n%s", view)
	}
}

func TestRoundApp_EventWithoutBreakdownAddsRow(t *testing.T) {
	app := NewRoundApp("p", "", true)

	send(app, stream.NewSolverOutput(&models.Node{ID: "n1", Title: "Solution"}, "only"))

	items := app.Items()
	if len(items) != 1 || items[0].Title != "Solution" || items[0].Status != StatusSolved {
		t.Errorf("Items = %+v", items)
	}
}

func TestRoundApp_ErrorEvent(t *testing.T) {
	app := NewRoundApp("p", "", true)

	send(app, stream.NewError(errors.New("store unavailable"), "p", ""))

	if app.Err() == nil || app.Err().Error() != "store unavailable" {
		t.Fatalf("Err = %v", app.Err())
	}
	if !strings.Contains(app.View(), "Error: store unavailable") {
		t.Errorf("View missing error:\n%s", app.View())
	}

	// No follow-up after a failed round.
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if app.asking {
		t.Error("Follow-up prompt opened after an error")
	}
}

func TestRoundApp_QuitBeforeDoneIsAbort(t *testing.T) {
	app := NewRoundApp("p", "", true)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if !app.Aborted() {
		t.Error("ctrl+c during a round should abort")
	}
}

func TestRoundApp_QuitAfterDone(t *testing.T) {
	app := NewRoundApp("p", "", true)
	send(app, stream.NewComplete(stream.Complete{}))

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if app.Aborted() {
		t.Error("q after completion is not an abort")
	}
}

func TestRoundApp_FollowUpFlow(t *testing.T) {
	app := NewRoundApp("Build a to-do app tracker", "", true)
	send(app, stream.NewBreakdown(testBreakdown()))
	send(app, stream.NewComplete(stream.Complete{}))
	app.Update(DoneMsg{})

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if !app.asking {
		t.Fatal("f should open the follow-up prompt")
	}

	// Keys go to the input while asking, so q does not quit.
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if app.input.input.Value() != "q" {
		t.Errorf("Input value = %q, want q", app.input.input.Value())
	}

	_, cmd := app.Update(FollowUpSubmittedMsg{Question: "add auth"})
	if cmd == nil {
		t.Fatal("Submitting should quit the program")
	}
	if app.FollowUp() != "add auth" {
		t.Errorf("FollowUp = %q, want add auth", app.FollowUp())
	}
}

func TestRoundApp_EscLeavesPrompt(t *testing.T) {
	app := NewRoundApp("p", "", true)
	app.Update(DoneMsg{})
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if app.asking {
		t.Error("esc should close the prompt")
	}
}

func TestRoundApp_DoneMsgKeepsFirstError(t *testing.T) {
	app := NewRoundApp("p", "", true)
	send(app, stream.NewError(errors.New("round cancelled"), "p", ""))
	app.Update(DoneMsg{Err: errors.New("later")})

	if app.Err().Error() != "round cancelled" {
		t.Errorf("Err = %v", app.Err())
	}
}

func TestRoundApp_ViewHeader(t *testing.T) {
	app := NewRoundApp("Build a to-do app tracker", "add auth", true)
	view := app.View()
	for _, want := range []string{"Problem:", "Build a to-do app tracker", "Follow-up:", "add auth", "Breaking the problem down"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q:\n%s", want, view)
		}
	}

	send(app, stream.NewBreakdown(testBreakdown()))
	view = app.View()
	if !strings.Contains(view, "Ship a working tracker") || !strings.Contains(view, "Data model") {
		t.Errorf("View missing breakdown:\n%s", view)
	}
}

func TestItemStatus_String(t *testing.T) {
	tests := []struct {
		status ItemStatus
		want   string
	}{
		{StatusPending, "pending"},
		{StatusSolving, "solving"},
		{StatusSolved, "solved"},
		{StatusFailed, "failed"},
		{StatusUnsaved, "unsaved"},
		{ItemStatus(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
