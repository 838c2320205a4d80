package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewInputField(t *testing.T) {
	field := NewInputField()

	if field == nil {
		t.Fatal("NewInputField returned nil")
	}
	if field.width != 80 {
		t.Errorf("Default width = %d, want 80", field.width)
	}
}

func TestInputField_SetWidth(t *testing.T) {
	field := NewInputField()

	field.SetWidth(120)

	if field.width != 120 {
		t.Errorf("Width after SetWidth(120) = %d, want 120", field.width)
	}
	if field.input.Width != 116 {
		t.Errorf("Input width = %d, want 116", field.input.Width)
	}
}

func TestInputField_Update_Enter_EmptyInput(t *testing.T) {
	field := NewInputField()

	_, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		if _, ok := cmd().(FollowUpSubmittedMsg); ok {
			t.Error("Should not submit an empty question")
		}
	}
}

func TestInputField_Update_Enter_SubmitsTrimmedQuestion(t *testing.T) {
	field := NewInputField()
	field.Focus()
	field.input.SetValue("  what about auth?  ")

	updated, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Expected a command on enter")
	}
	msg, ok := cmd().(FollowUpSubmittedMsg)
	if !ok {
		t.Fatalf("Command returned %T, want FollowUpSubmittedMsg", cmd())
	}
	if msg.Question != "what about auth?" {
		t.Errorf("Question = %q, want %q", msg.Question, "what about auth?")
	}
	if updated.input.Value() != "" {
		t.Errorf("Input not reset, value = %q", updated.input.Value())
	}
}

func TestInputField_FocusBlur(t *testing.T) {
	field := NewInputField()

	field.Focus()
	if !field.input.Focused() {
		t.Error("Input should be focused after Focus()")
	}
	field.Blur()
	if field.input.Focused() {
		t.Error("Input should not be focused after Blur()")
	}
}
